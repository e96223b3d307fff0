package db2i

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// ResultSet holds the rows of one query with their column order.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Maps returns each row keyed by column name.
func (r *ResultSet) Maps() []map[string]any {
	out := make([]map[string]any, 0, r.Len())
	for _, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			m[col] = row[i]
		}
		out = append(out, m)
	}
	return out
}

// Strings returns the values of one column rendered as text.
func (r *ResultSet) Strings(column string) []string {
	idx := -1
	for i, c := range r.Columns {
		if strings.EqualFold(c, column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]string, 0, r.Len())
	for _, row := range r.Rows {
		if row[idx] == nil {
			continue
		}
		out = append(out, strings.TrimRight(fmt.Sprint(row[idx]), " "))
	}
	return out
}

// MarshalJSON encodes the rows as an array of objects with keys in column order.
func (r *ResultSet) MarshalJSON() ([]byte, error) {
	return r.encode(true)
}

// Values encodes the rows as an array of arrays.
func (r *ResultSet) Values() ([]byte, error) {
	return r.encode(false)
}

func (r *ResultSet) encode(withColumns bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range r.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		open, close := byte('['), byte(']')
		if withColumns {
			open, close = '{', '}'
		}
		buf.WriteByte(open)
		for j, v := range row {
			if j > 0 {
				buf.WriteByte(',')
			}
			if withColumns {
				key, err := json.Marshal(r.Columns[j])
				if err != nil {
					return nil, err
				}
				buf.Write(key)
				buf.WriteByte(':')
			}
			val, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode column %s: %w", r.Columns[j], err)
			}
			buf.Write(val)
		}
		buf.WriteByte(close)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// scanRows reads at most limit rows (all when limit <= 0).
func scanRows(rows *sql.Rows, limit int) (*ResultSet, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	rs := &ResultSet{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if limit > 0 && len(rs.Rows) >= limit {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return rs, nil
}
