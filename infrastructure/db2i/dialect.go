package db2i

import (
	"strconv"
	"strings"
)

// Dialect produces the catalog SQL the Database adapter needs.
type Dialect interface {
	// ListTables returns a query yielding a NAME column of base tables.
	ListTables(schema string) (string, []any)

	// TableDefinition returns a statement yielding DDL lines in DefinitionColumn.
	TableDefinition(schema, table string) (string, []any)
	DefinitionColumn() string

	SampleRows(schema, table string, n int) string

	// SetSchema returns the statement that selects the current schema, or "".
	SetSchema(schema string) string
}

// Db2i is the Db2 for i dialect.
type Db2i struct{}

func (Db2i) ListTables(schema string) (string, []any) {
	return `SELECT TABLE_NAME AS NAME, TABLE_TYPE
FROM QSYS2.SYSTABLES
WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'T'
ORDER BY TABLE_NAME`, []any{schema}
}

func (Db2i) TableDefinition(schema, table string) (string, []any) {
	return `CALL QSYS2.GENERATE_SQL(
    DATABASE_OBJECT_NAME => ?,
    DATABASE_OBJECT_LIBRARY_NAME => ?,
    DATABASE_OBJECT_TYPE => 'TABLE',
    CREATE_OR_REPLACE_OPTION => '1',
    PRIVILEGES_OPTION => '0',
    STATEMENT_FORMATTING_OPTION => '0',
    SOURCE_STREAM_FILE_END_OF_LINE => 'LF',
    SOURCE_STREAM_FILE_CCSID => 1208
)`, []any{table, schema}
}

func (Db2i) DefinitionColumn() string { return "SRCDTA" }

func (Db2i) SampleRows(schema, table string, n int) string {
	return "SELECT * FROM " + QualifiedName(schema, table) + " FETCH FIRST " + strconv.Itoa(n) + " ROWS ONLY"
}

func (Db2i) SetSchema(schema string) string {
	return "SET CURRENT SCHEMA = '" + strings.ReplaceAll(schema, "'", "''") + "'"
}

// QuoteIdentifier delimits a name, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName renders schema.table with both parts delimited. An empty
// schema yields the bare table.
func QualifiedName(schema, table string) string {
	if schema == "" {
		return QuoteIdentifier(table)
	}
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}
