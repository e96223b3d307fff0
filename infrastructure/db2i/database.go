package db2i

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

var (
	// ErrConflictingFilters is returned when both table filters are set.
	ErrConflictingFilters = errors.New("cannot specify both include_tables and ignore_tables")

	// ErrTablesNotPresent is matched by TablesNotPresentError.
	ErrTablesNotPresent = errors.New("tables not present in the schema")
)

// TablesNotPresentError names tables that are not usable.
type TablesNotPresentError struct {
	Tables []string
}

func (e *TablesNotPresentError) Error() string {
	return fmt.Sprintf("Tables [%s] are not present in the schema", strings.Join(e.Tables, ", "))
}

func (e *TablesNotPresentError) Unwrap() error { return ErrTablesNotPresent }

// Fetch selects how many rows Run reads.
type Fetch int

const (
	// FetchAll reads every row.
	FetchAll Fetch = 0
	// FetchOne reads the first row.
	FetchOne Fetch = -1
)

func (f Fetch) limit() int {
	if f == FetchOne {
		return 1
	}
	if f < 0 {
		return 0
	}
	return int(f)
}

// RunOptions control Run.
type RunOptions struct {
	// IncludeColumns renders rows as objects keyed by column.
	IncludeColumns bool
	Fetch          Fetch
	Args           []any
}

// Database answers schema questions and runs guarded queries for one schema.
type Database struct {
	db      *sql.DB
	schema  string
	dialect Dialect
	log     logging.Scoped

	include         []string
	ignore          []string
	customInfo      map[string]string
	sampleRows      int
	maxStringLength int
	timeout         time.Duration

	mu        sync.Mutex
	allTables []string
}

// Option configures a Database.
type Option func(*Database)

// WithIncludeTables restricts usable tables to names.
func WithIncludeTables(names ...string) Option {
	return func(d *Database) {
		d.include = nonEmpty(names)
	}
}

// WithIgnoreTables hides names from the usable tables.
func WithIgnoreTables(names ...string) Option {
	return func(d *Database) {
		d.ignore = nonEmpty(names)
	}
}

// WithCustomTableInfo prepends text to the description of specific tables.
func WithCustomTableInfo(info map[string]string) Option {
	return func(d *Database) {
		d.customInfo = info
	}
}

// WithSampleRows sets how many rows TableInfo samples. Zero disables sampling.
func WithSampleRows(n int) Option {
	return func(d *Database) {
		if n >= 0 {
			d.sampleRows = n
		}
	}
}

// WithMaxStringLength sets the truncation length for string values in Run.
func WithMaxStringLength(n int) Option {
	return func(d *Database) {
		d.maxStringLength = n
	}
}

// WithDialect replaces the Db2 for i catalog SQL.
func WithDialect(dialect Dialect) Option {
	return func(d *Database) {
		if dialect != nil {
			d.dialect = dialect
		}
	}
}

// WithLogger routes the adapter's logs to l.
func WithLogger(l *bolt.Logger) Option {
	return func(d *Database) {
		d.log = logging.For(l)
	}
}

// WithTimeout bounds each statement.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Database) {
		d.timeout = timeout
	}
}

// New creates a Database over db scoped to schema.
func New(db *sql.DB, schema string, opts ...Option) (*Database, error) {
	d := &Database{
		db:              db,
		schema:          schema,
		dialect:         Db2i{},
		sampleRows:      3,
		maxStringLength: 300,
		timeout:         30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.include) > 0 && len(d.ignore) > 0 {
		return nil, ErrConflictingFilters
	}
	return d, nil
}

// Schema returns the configured schema.
func (d *Database) Schema() string { return d.schema }

// UsableTableNames returns the sorted tables visible through the include
// and ignore filters. The schema listing is loaded once and cached; a
// failed load is logged and yields an empty list.
func (d *Database) UsableTableNames(ctx context.Context) []string {
	all, err := d.loadTables(ctx)
	if err != nil {
		d.log.Error().Add(logging.Schema(d.schema)).Add(logging.ErrorField(err)).Msg("error getting tables")
		return []string{}
	}

	present := make(map[string]bool, len(all))
	for _, t := range all {
		present[t] = true
	}

	var result []string
	switch {
	case len(d.include) > 0:
		var missing []string
		for _, t := range d.include {
			if present[t] {
				result = append(result, t)
			} else {
				missing = append(missing, t)
			}
		}
		if len(missing) > 0 {
			d.log.Warn().
				Add(logging.Schema(d.schema)).
				Add(logging.Str("missing", strings.Join(missing, ","))).
				Msg("tables not found in schema")
		}
	case len(d.ignore) > 0:
		ignored := make(map[string]bool, len(d.ignore))
		for _, t := range d.ignore {
			ignored[t] = true
		}
		for _, t := range all {
			if !ignored[t] {
				result = append(result, t)
			}
		}
	default:
		result = append(result, all...)
	}

	result = dedupe(result)
	sort.Strings(result)
	return result
}

func (d *Database) loadTables(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.allTables != nil {
		return d.allTables, nil
	}

	d.log.Info().Add(logging.Schema(d.schema)).Msg("loading tables from schema")
	query, args := d.dialect.ListTables(d.schema)
	rs, err := d.query(ctx, query, args, 0)
	if err != nil {
		return nil, err
	}
	tables := rs.Strings("NAME")
	if tables == nil {
		tables = []string{}
	}
	d.log.Debug().Add(logging.Int("tables", len(tables))).Msg("found tables in schema")
	d.allTables = tables
	return tables, nil
}

// TableInfo describes tables with their DDL and sample rows. A nil slice
// describes every usable table.
func (d *Database) TableInfo(ctx context.Context, tables []string) (string, error) {
	usable := d.UsableTableNames(ctx)
	targets := usable
	if tables != nil {
		known := make(map[string]bool, len(usable))
		for _, t := range usable {
			known[t] = true
		}
		var missing []string
		for _, t := range dedupe(tables) {
			if !known[t] {
				missing = append(missing, t)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return "", &TablesNotPresentError{Tables: missing}
		}
		targets = tables
	}

	blocks := make([]string, 0, len(targets))
	for _, table := range targets {
		if info, ok := d.customInfo[table]; ok {
			blocks = append(blocks, info)
		}

		def, err := d.tableDefinition(ctx, table)
		if err != nil {
			return "", fmt.Errorf("describe %s: %w", table, err)
		}
		info := strings.TrimRight(def, " \t\r\n")
		if d.sampleRows > 0 {
			info += "\n" + d.sampleBlock(ctx, table)
		}
		blocks = append(blocks, info)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (d *Database) tableDefinition(ctx context.Context, table string) (string, error) {
	query, args := d.dialect.TableDefinition(d.schema, table)
	rs, err := d.query(ctx, query, args, 0)
	if err != nil {
		return "", err
	}
	return strings.Join(rs.Strings(d.dialect.DefinitionColumn()), "\n"), nil
}

// sampleBlock renders sample rows; failures are logged and leave the
// column and row lines empty.
func (d *Database) sampleBlock(ctx context.Context, table string) string {
	var columns, rows string
	rs, err := d.query(ctx, d.dialect.SampleRows(d.schema, table, d.sampleRows), nil, d.sampleRows)
	if err != nil {
		d.log.Warn().Add(logging.Table(table)).Add(logging.ErrorField(err)).Msg("sample rows unavailable")
	} else if rs.Len() > 0 {
		columns = strings.Join(rs.Columns, "\t")
		lines := make([]string, 0, rs.Len())
		for _, row := range rs.Rows {
			values := make([]string, len(row))
			for i, v := range row {
				if v == nil {
					values[i] = "NULL"
					continue
				}
				values[i] = clip(fmt.Sprint(v), 100)
			}
			lines = append(lines, strings.Join(values, "\t"))
		}
		rows = strings.Join(lines, "\n")
	}
	return fmt.Sprintf("%d sample rows from %s:\n%s\n%s", d.sampleRows, table, columns, rows)
}

// Run guards and executes an ad-hoc query. Rows are rendered as a JSON
// array of arrays, or of objects with IncludeColumns; no rows yields "".
func (d *Database) Run(ctx context.Context, stmt string, opts RunOptions) (string, error) {
	cleaned, err := Guard(stmt)
	if err != nil {
		d.log.Warn().Add(logging.SQL(stmt)).Add(logging.ErrorField(err)).Msg("rejected statement")
		return "", err
	}

	rs, err := d.query(ctx, cleaned, opts.Args, opts.Fetch.limit())
	if err != nil {
		return "", err
	}
	if rs.Len() == 0 {
		return "", nil
	}
	for _, row := range rs.Rows {
		for i, v := range row {
			row[i] = truncateValue(v, d.maxStringLength)
		}
	}

	var data []byte
	if opts.IncludeColumns {
		data, err = rs.MarshalJSON()
	} else {
		data, err = rs.Values()
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RunNoThrow is Run with failures rendered as "Error: <message>".
func (d *Database) RunNoThrow(ctx context.Context, stmt string, opts RunOptions) string {
	out, err := d.Run(ctx, stmt, opts)
	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}

// TableInfoNoThrow is TableInfo with failures rendered as "Error: <message>".
func (d *Database) TableInfoNoThrow(ctx context.Context, tables []string) string {
	out, err := d.TableInfo(ctx, tables)
	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}

// query runs one statement on a pooled connection with the schema selected.
func (d *Database) query(ctx context.Context, query string, args []any, limit int) (*ResultSet, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.log.Debug().
		Add(logging.SQL(query)).
		Add(logging.Int("params", len(args))).
		Add(logging.Int("fetch", limit)).
		Msg("executing query")

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	defer conn.Close()

	if d.schema != "" {
		if set := d.dialect.SetSchema(d.schema); set != "" {
			if _, err := conn.ExecContext(ctx, set); err != nil {
				return nil, fmt.Errorf("set schema %s: %w", d.schema, err)
			}
		}
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		d.log.Error().Add(logging.ErrorField(err)).Add(logging.SQL(query)).Msg("query failed")
		return nil, err
	}
	rs, err := scanRows(rows, limit)
	if err != nil {
		return nil, err
	}
	d.log.Debug().Add(logging.Rows(rs.Len())).Msg("fetched rows")
	return rs, nil
}

func nonEmpty(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
