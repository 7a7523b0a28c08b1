// SPDX-License-Identifier: Apache-2.0

package table

import (
	"errors"
	"fmt"
	"slices"
)

// Value is a single string cell. The zero value is null.
type Value struct {
	S     string
	Valid bool
}

// Null is the null cell.
var Null = Value{}

func String(s string) Value {
	return Value{S: s, Valid: true}
}

// String returns the cell content, or the empty string for null cells.
func (v Value) String() string {
	return v.S
}

func (v Value) IsNull() bool {
	return !v.Valid
}

// Strings wraps the given strings into non null values.
func Strings(ss ...string) []Value {
	values := make([]Value, 0, len(ss))
	for _, s := range ss {
		values = append(values, String(s))
	}
	return values
}

// Nulls returns n null values.
func Nulls(n int) []Value {
	return make([]Value, n)
}

var (
	ErrDuplicateColumn  = errors.New("duplicate column")
	ErrColumnNotFound   = errors.New("column not found")
	ErrRowCountMismatch = errors.New("row count mismatch")
)

// Table is an ordered set of named columns of equal length.
type Table struct {
	Name    string
	columns []string
	data    map[string][]Value
	rows    int
}

func New(name string) *Table {
	return &Table{
		Name: name,
		data: map[string][]Value{},
	}
}

// AddColumn appends a new column. The first column added sets the row count
// of the table, every following column must match it.
func (t *Table) AddColumn(name string, values []Value) error {
	if _, found := t.data[name]; found {
		return fmt.Errorf("%s.%s: %w", t.Name, name, ErrDuplicateColumn)
	}
	if len(t.columns) > 0 && len(values) != t.rows {
		return fmt.Errorf("%s.%s has %d rows, table has %d: %w", t.Name, name, len(values), t.rows, ErrRowCountMismatch)
	}
	t.columns = append(t.columns, name)
	t.data[name] = values
	t.rows = len(values)
	return nil
}

// SetColumn replaces the values of an existing column, or appends it if it
// does not exist yet.
func (t *Table) SetColumn(name string, values []Value) error {
	if _, found := t.data[name]; !found {
		return t.AddColumn(name, values)
	}
	if len(values) != t.rows {
		return fmt.Errorf("%s.%s has %d rows, table has %d: %w", t.Name, name, len(values), t.rows, ErrRowCountMismatch)
	}
	t.data[name] = values
	return nil
}

func (t *Table) Column(name string) ([]Value, bool) {
	values, found := t.data[name]
	return values, found
}

func (t *Table) HasColumn(name string) bool {
	_, found := t.data[name]
	return found
}

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

func (t *Table) NumColumns() int {
	if t == nil {
		return 0
	}
	return len(t.columns)
}

// Row returns the values of row i keyed by column name.
func (t *Table) Row(i int) map[string]Value {
	row := make(map[string]Value, len(t.columns))
	for _, c := range t.columns {
		row[c] = t.data[c][i]
	}
	return row
}

// Rename renames the columns in the map on input. Columns not found are
// ignored.
func (t *Table) Rename(names map[string]string) error {
	renamed := make([]string, 0, len(t.columns))
	data := make(map[string][]Value, len(t.data))
	for _, c := range t.columns {
		newName := c
		if n, found := names[c]; found {
			newName = n
		}
		if _, found := data[newName]; found {
			return fmt.Errorf("renaming %s to %s in %s: %w", c, newName, t.Name, ErrDuplicateColumn)
		}
		renamed = append(renamed, newName)
		data[newName] = t.data[c]
	}
	t.columns = renamed
	t.data = data
	return nil
}

// Select returns a new table with the given columns, in the given order. The
// values are shared with the original table.
func (t *Table) Select(names ...string) (*Table, error) {
	selected := New(t.Name)
	selected.rows = t.rows
	for _, name := range names {
		values, found := t.data[name]
		if !found {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, name, ErrColumnNotFound)
		}
		if err := selected.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return selected, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := New(t.Name)
	c.rows = t.rows
	for _, name := range t.columns {
		c.columns = append(c.columns, name)
		c.data[name] = slices.Clone(t.data[name])
	}
	return c
}

// AppendColumns adds the columns of src to dst, side by side. Both tables
// must have the same row count unless dst has no columns yet.
func AppendColumns(dst, src *Table) error {
	if len(dst.columns) > 0 && len(src.columns) > 0 && dst.rows != src.rows {
		return fmt.Errorf("appending %d rows to %d rows in %s: %w", src.rows, dst.rows, dst.Name, ErrRowCountMismatch)
	}
	for _, name := range src.columns {
		if err := dst.AddColumn(name, src.data[name]); err != nil {
			return err
		}
	}
	return nil
}
