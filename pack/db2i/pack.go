// Package db2i provides the SQL toolkit an agent uses to explore one
// Db2 for i schema: list tables, describe them and run queries.
package db2i

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ibmi-agents/db2i-go/domain/pack"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	idb "github.com/ibmi-agents/db2i-go/infrastructure/db2i"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// DefaultLimit is the row cap appended to queries without one.
const DefaultLimit = 10

// Instructions tell a model how to use the toolkit.
const Instructions = `Use these tools to interact with DB2 for IBM i database systems.
- Use list_tables() to get a list of available tables
- Use describe_table(table_name) to get schema and sample data for a table
- Use run_sql_query(query, limit) to execute SQL queries

DB2 for i specific notes:
- Use FETCH FIRST n ROWS ONLY instead of LIMIT for pagination
- Use proper DB2i functions for date handling and string operations
- Always use schema-qualified table names (SCHEMA.TABLE)`

// Database is the schema adapter the toolkit runs on.
type Database interface {
	UsableTableNames(ctx context.Context) []string
	TableInfoNoThrow(ctx context.Context, tables []string) string
	RunNoThrow(ctx context.Context, stmt string, opts idb.RunOptions) string
}

type options struct {
	listTables    bool
	describeTable bool
	runQuery      bool
}

// Option configures the toolkit.
type Option func(*options)

// WithoutListTables leaves out list_tables.
func WithoutListTables() Option {
	return func(o *options) { o.listTables = false }
}

// WithoutDescribeTable leaves out describe_table.
func WithoutDescribeTable() Option {
	return func(o *options) { o.describeTable = false }
}

// WithoutRunQuery leaves out run_sql_query.
func WithoutRunQuery() Option {
	return func(o *options) { o.runQuery = false }
}

// New creates the SQL toolkit over db.
func New(db Database, opts ...Option) (*pack.Pack, error) {
	if db == nil {
		return nil, errors.New("db2i: database is required")
	}
	o := options{listTables: true, describeTable: true, runQuery: true}
	for _, opt := range opts {
		opt(&o)
	}

	var tools []tool.Tool
	if o.listTables {
		tools = append(tools, listTablesTool(db))
	}
	if o.describeTable {
		tools = append(tools, describeTableTool(db))
	}
	if o.runQuery {
		tools = append(tools, runQueryTool(db))
	}

	return pack.NewBuilder("db2i").
		WithDescription("List, describe and query the tables of one schema").
		AddTools(tools...).
		Build()
}

func listTablesTool(db Database) tool.Tool {
	return tool.NewBuilder("list_tables").
		WithDescription("Use this function to get a list of table names in the database.").
		WithCategory("db2i").
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
			names := db.UsableTableNames(ctx)
			if names == nil {
				names = []string{}
			}
			logging.Debug().Add(logging.Int("tables", len(names))).Msg("listing tables")
			data, err := json.Marshal(names)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(string(data)), nil
		}).
		MustBuild()
}

type describeInput struct {
	TableName string `json:"table_name"`
}

func describeTableTool(db Database) tool.Tool {
	return tool.NewBuilder("describe_table").
		WithDescription("Use this function to describe a table: its DDL and sample rows.").
		WithCategory("db2i").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"table_name": tool.String("The name of the table to get the schema for"),
		}, "table_name")).
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[describeInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			table := strings.TrimSpace(in.TableName)
			if table == "" {
				return tool.Result{}, fmt.Errorf("%w: table_name is required", tool.ErrInvalidInput)
			}
			logging.Debug().Add(logging.Table(table)).Msg("describing table")
			return tool.TextResult(db.TableInfoNoThrow(ctx, []string{table})), nil
		}).
		MustBuild()
}

type queryInput struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

func runQueryTool(db Database) tool.Tool {
	return tool.NewBuilder("run_sql_query").
		WithDescription("Use this function to run a SQL query and return the result. Only SELECT statements are allowed.").
		WithCategory("db2i").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"query": tool.String("The query to run"),
			"limit": tool.Integer("The number of rows to return", DefaultLimit),
		}, "query")).
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[queryInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			if strings.TrimSpace(in.Query) == "" {
				return tool.Result{}, fmt.Errorf("%w: query is required", tool.ErrInvalidInput)
			}
			limit := DefaultLimit
			if in.Limit != nil {
				limit = *in.Limit
			}
			query := ApplyLimit(in.Query, limit)
			return tool.TextResult(db.RunNoThrow(ctx, query, idb.RunOptions{IncludeColumns: true})), nil
		}).
		MustBuild()
}

// ApplyLimit appends FETCH FIRST limit ROWS ONLY unless the query already
// limits its rows. A limit of zero or less leaves the query unchanged.
func ApplyLimit(query string, limit int) string {
	if limit <= 0 {
		return query
	}
	upper := strings.ToUpper(query)
	if strings.Contains(upper, "FETCH FIRST") || strings.Contains(upper, "LIMIT") {
		return query
	}
	return fmt.Sprintf("%s FETCH FIRST %d ROWS ONLY", strings.TrimRight(strings.TrimSpace(query), ";"), limit)
}
