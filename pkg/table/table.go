// Package table provides the tabular dataset representation shared by every
// stage of the pipeline.
//
// A Table is an ordered list of column names plus rows keyed by column name.
// Values are one of string, float64, time.Time, bool or nil. Tables are treated
// as immutable by the pipeline: every transform returns a new Table.
package table

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Row maps column names to values.
// Example: {"geo": "DEU", "Time": "2000", "gdp": 1.2}
type Row map[string]any

// Table is a lightweight column-ordered table.
type Table struct {
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds a row. Keys that are not columns are ignored on output.
func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(column string) int {
	return slices.Index(t.Columns, column)
}

// HasColumn reports whether the column exists.
func (t *Table) HasColumn(column string) bool {
	return t.Index(column) >= 0
}

// Column returns the values of one column in row order.
func (t *Table) Column(column string) []any {
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[column]
	}
	return out
}

// Distinct returns the non-nil values of a column in order of first appearance.
func (t *Table) Distinct(column string) []any {
	seen := make(map[string]bool)
	var out []any
	for _, row := range t.Rows {
		v := row[column]
		if v == nil {
			continue
		}
		key := fmt.Sprintf("%T:%v", v, v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// Clone returns a deep copy of the table structure. Values are copied by assignment.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, row := range t.Rows {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Select returns a table restricted to the given columns, in that order.
func (t *Table) Select(columns ...string) (*Table, error) {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("column %q not found", c)
		}
	}
	out := &Table{Columns: slices.Clone(columns), Rows: make([]Row, len(t.Rows))}
	for i, row := range t.Rows {
		cp := make(Row, len(columns))
		for _, c := range columns {
			cp[c] = row[c]
		}
		out.Rows[i] = cp
	}
	return out, nil
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{Columns: slices.Clone(t.Columns)}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Drop returns a table without the given columns.
func (t *Table) Drop(columns ...string) *Table {
	keep := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !slices.Contains(columns, c) {
			keep = append(keep, c)
		}
	}
	out, _ := t.Select(keep...)
	return out
}

// Rename returns a table with column old renamed to new.
func (t *Table) Rename(old, new string) *Table {
	out := t.Clone()
	idx := out.Index(old)
	if idx < 0 || old == new {
		return out
	}
	out.Columns[idx] = new
	for _, row := range out.Rows {
		row[new] = row[old]
		delete(row, old)
	}
	return out
}

type jsonTable struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [...]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			m[c] = jsonValue(row[c])
		}
		rows[i] = m
	}
	return json.Marshal(jsonTable{Columns: t.Columns, Rows: rows})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
// Times come back as strings; ParseTime accepts them.
func (t *Table) UnmarshalJSON(data []byte) error {
	var jt jsonTable
	if err := json.Unmarshal(data, &jt); err != nil {
		return err
	}
	t.Columns = jt.Columns
	t.Rows = make([]Row, len(jt.Rows))
	for i, r := range jt.Rows {
		t.Rows[i] = Row(r)
	}
	return nil
}
