// Package frame holds small in-memory tabular results: CSV reads, query
// results and distributed-read partitions, with console renderers.
package frame

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Column describes a frame column
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Row holds one value per column; nil is a null value
type Row []any

// Frame is an ordered set of rows sharing the same columns
type Frame struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// New creates an empty frame with the named columns
func New(names ...string) *Frame {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name}
	}
	return &Frame{Columns: cols}
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.Rows)
}

// ColumnNames returns the column names in order
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, col := range f.Columns {
		names[i] = col.Name
	}
	return names
}

// Head returns a frame holding at most the first n rows
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	return &Frame{Columns: f.Columns, Rows: f.Rows[:n]}
}

// Append adds the rows of other. Both frames must have the same column names.
func (f *Frame) Append(other *Frame) error {
	if other == nil {
		return nil
	}
	if len(f.Columns) != len(other.Columns) {
		return fmt.Errorf("column count mismatch: %d != %d", len(f.Columns), len(other.Columns))
	}
	for i := range f.Columns {
		if !strings.EqualFold(f.Columns[i].Name, other.Columns[i].Name) {
			return fmt.Errorf("column %d mismatch: %s != %s", i, f.Columns[i].Name, other.Columns[i].Name)
		}
	}
	f.Rows = append(f.Rows, other.Rows...)
	return nil
}

// Records returns the rows as column name to value maps
func (f *Frame) Records() []map[string]any {
	records := make([]map[string]any, len(f.Rows))
	for i, row := range f.Rows {
		record := make(map[string]any, len(f.Columns))
		for j, col := range f.Columns {
			if j < len(row) {
				record[col.Name] = row[j]
			} else {
				record[col.Name] = nil
			}
		}
		records[i] = record
	}
	return records
}

// FromRows drains rows into a frame and closes them
func FromRows(rows *sql.Rows) (*Frame, error) {
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get column names: %w", err)
	}

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	f := &Frame{Columns: make([]Column, len(colNames))}
	for i, name := range colNames {
		typ := ""
		if i < len(colTypes) && colTypes[i] != nil {
			typ = strings.ToLower(colTypes[i].DatabaseTypeName())
		}
		f.Columns[i] = Column{Name: name, Type: typ}
	}

	for rows.Next() {
		values := make([]any, len(colNames))
		ptrs := make([]any, len(colNames))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range values {
			switch x := v.(type) {
			case []byte:
				values[i] = string(x)
			case time.Time:
				values[i] = x.Format(time.RFC3339Nano)
			}
		}
		f.Rows = append(f.Rows, Row(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return f, nil
}
