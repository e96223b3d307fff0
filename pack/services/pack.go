// Package services provides tools that navigate the IBM i SQL services
// catalog in QSYS2.SERVICES_INFO.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ibmi-agents/db2i-go/domain/pack"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
)

// Category is a service category with its approximate service count.
type Category struct {
	Name  string
	Count int
}

// Categories lists the QSYS2.SERVICES_INFO categories.
var Categories = []Category{
	{"PTF", 8},
	{"SECURITY", 22},
	{"WORK MANAGEMENT", 35},
	{"MESSAGE HANDLING", 8},
	{"LIBRARIAN", 5},
	{"STORAGE", 17},
	{"BACKUP AND RECOVERY", 5},
	{"PRODUCT", 4},
	{"SPOOL", 9},
	{"SYSTEM HEALTH", 4},
	{"JOURNAL", 50},
	{"JAVA", 3},
	{"APPLICATION", 45},
	{"COMMUNICATION", 21},
	{"DATABASE-APPLICATION", 9},
	{"DATABASE-PERFORMANCE", 10},
	{"DATABASE-PLAN CACHE", 14},
	{"DATABASE-UTILITY", 18},
	{"MIRROR-COMMUNICATION", 8},
	{"MIRROR-PRODUCT", 27},
	{"MIRROR-REPLICATION", 8},
	{"MIRROR-RESYNCHRONIZATION", 5},
	{"MIRROR-SERVICEABILITY", 7},
	{"IFS", 12},
	{"MIRROR-RECLONE", 6},
	{"PERFORMANCE", 1},
	{"CONFIGURATION", 4},
	{"MIGRATE WHILE ACTIVE", 9},
}

const (
	// ByCategorySQL lists the services of one category.
	ByCategorySQL = `select * from qsys2.services_info where service_category = ?`

	// ByNameSQL returns the catalog row of one service.
	ByNameSQL = `select * from qsys2.services_info where service_name = ?`

	// GenerateSQL returns the DDL of a database object as SRCDTA rows.
	GenerateSQL = `CALL QSYS2.GENERATE_SQL(
    DATABASE_OBJECT_NAME => ?,
    DATABASE_OBJECT_LIBRARY_NAME => ?,
    DATABASE_OBJECT_TYPE => ?,
    CREATE_OR_REPLACE_OPTION => '1',
    PRIVILEGES_OPTION => '0',
    STATEMENT_FORMATTING_OPTION => '0',
    SOURCE_STREAM_FILE_END_OF_LINE => 'LF',
    SOURCE_STREAM_FILE_CCSID => 1208
)`
)

// ObjectTypes are the DATABASE_OBJECT_TYPE values GENERATE_SQL accepts.
var ObjectTypes = []string{
	"ALIAS", "CONSTRAINT", "FUNCTION", "INDEX", "MASK", "PERMISSION",
	"PROCEDURE", "SCHEMA", "SEQUENCE", "TABLE", "TRIGGER", "TYPE", "VARIABLE", "VIEW",
}

// ValidCategory reports whether name is a known category.
func ValidCategory(name string) bool {
	for _, c := range Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

func categoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = c.Name
	}
	return names
}

// New creates the SQL services pack.
func New(runner db2i.SQLRunner) (*pack.Pack, error) {
	if runner == nil {
		return nil, errors.New("services: runner is required")
	}

	return pack.NewBuilder("services").
		WithDescription("Discover IBM i SQL services and their definitions").
		AddTools(
			categoriesTool(),
			byCategoryTool(runner),
			infoTool(runner),
			generateTool(runner),
		).
		Build()
}

func categoriesTool() tool.Tool {
	return tool.NewBuilder("list_service_categories").
		WithDescription("List the IBM i SQL service categories with the number of services in each").
		WithCategory("services").
		ReadOnly().
		WithHandler(func(context.Context, json.RawMessage) (tool.Result, error) {
			lines := make([]string, len(Categories))
			for i, c := range Categories {
				lines[i] = fmt.Sprintf("%s: %d", c.Name, c.Count)
			}
			return tool.TextResult(strings.Join(lines, "\n")), nil
		}).
		MustBuild()
}

type categoryInput struct {
	Category string `json:"category"`
}

func byCategoryTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("get_services_by_category").
		WithDescription("List the available IBM i SQL services of one category").
		WithCategory("services").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"category": tool.Enum("Service category", categoryNames()...),
		}, "category")).
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[categoryInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			category := strings.ToUpper(strings.TrimSpace(in.Category))
			if !ValidCategory(category) {
				return tool.TextResult(fmt.Sprintf("Invalid category '%s'. Valid categories are: %s",
					in.Category, strings.Join(categoryNames(), ", "))), nil
			}
			out, err := runner.Run(ctx, ByCategorySQL, category)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type infoInput struct {
	ServiceName string `json:"service_name"`
}

func infoTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("get_service_info").
		WithDescription("Get the catalog entry of one IBM i SQL service, including its example").
		WithCategory("services").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"service_name": tool.String("Service name, e.g. ACTIVE_JOB_INFO"),
		}, "service_name")).
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[infoInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			name := strings.ToUpper(strings.TrimSpace(in.ServiceName))
			rs, err := runner.Query(ctx, ByNameSQL, name)
			if err != nil {
				return tool.Result{}, err
			}
			if rs.Len() == 0 {
				return tool.TextResult(fmt.Sprintf("Invalid Service name: %s", in.ServiceName)), nil
			}
			out, err := db2i.Format(rs)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type generateInput struct {
	Object  string `json:"object"`
	Library string `json:"library"`
	Type    string `json:"type"`
}

func generateTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("generate_sql_definition").
		WithDescription("Generate the DDL of a service or other database object with QSYS2.GENERATE_SQL").
		WithCategory("services").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"object":  tool.String("Object name, e.g. ACTIVE_JOB_INFO"),
			"library": tool.String("Library (schema) name, e.g. QSYS2"),
			"type":    tool.Enum("Object type", ObjectTypes...),
		}, "object", "library", "type")).
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[generateInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			object := strings.ToUpper(strings.TrimSpace(in.Object))
			library := strings.ToUpper(strings.TrimSpace(in.Library))
			objType := strings.ToUpper(strings.TrimSpace(in.Type))
			if object == "" || library == "" || objType == "" {
				return tool.Result{}, fmt.Errorf("%w: object, library and type are required", tool.ErrInvalidInput)
			}
			rs, err := runner.Query(ctx, GenerateSQL, object, library, objType)
			if err != nil {
				return tool.Result{}, err
			}
			lines := rs.Strings("SRCDTA")
			if len(lines) == 0 {
				return tool.TextResult(fmt.Sprintf("No generated sql for service: %s.%s of type: %s", library, object, objType)), nil
			}
			return tool.TextResult(strings.Join(lines, "\n")), nil
		}).
		MustBuild()
}
