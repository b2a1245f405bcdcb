// Package table provides the in-memory table that data files are loaded into
// and that rules receive and return.
//
// A Table is immutable once constructed. Every accessor hands out copies and
// every derivation (Filter, Select, Head) builds a new Table, so a rule can
// never change the data another rule sees.
package table

import (
	"fmt"
	"strings"
)

// Value is a single scalar cell: nil, float64, string, bool or time.Time.
type Value = any

// Table is an ordered collection of named columns.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New builds a Table from column names and rows.
// Rows shorter than the header are padded with nil, longer rows are cut.
// Values are normalized (integers become float64).
func New(columns []string, rows [][]Value) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		rows:    make([][]Value, 0, len(rows)),
	}
	for i, c := range t.columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	for _, r := range rows {
		row := make([]Value, len(t.columns))
		for j := 0; j < len(row) && j < len(r); j++ {
			row[j] = Normalize(r[j])
		}
		t.rows = append(t.rows, row)
	}
	return t
}

// Empty returns a Table with the given columns and no rows.
func Empty(columns ...string) *Table {
	return New(columns, nil)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.columns)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Missing returns the names from required that are not columns of t,
// in the order given.
func (t *Table) Missing(required ...string) []string {
	var missing []string
	for _, name := range required {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Column returns a copy of every value in the named column.
// Returns nil if the column does not exist.
func (t *Table) Column(name string) []Value {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil
	}
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// Value returns the cell at row i in the named column.
// Out of range rows and unknown columns yield nil.
func (t *Table) Value(i int, column string) Value {
	j := t.ColumnIndex(column)
	if j < 0 || i < 0 || i >= t.Len() {
		return nil
	}
	return t.rows[i][j]
}

// Row returns a read-only view of row i.
func (t *Table) Row(i int) Row {
	return Row{t: t, i: i}
}

// Rows returns a copy of all rows.
func (t *Table) Rows() [][]Value {
	if t == nil {
		return nil
	}
	out := make([][]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]Value(nil), r...)
	}
	return out
}

// Filter returns a new Table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	var kept [][]Value
	for i := 0; i < t.Len(); i++ {
		if keep(t.Row(i)) {
			kept = append(kept, t.rows[i])
		}
	}
	return New(t.Columns(), kept)
}

// Select returns a new Table with only the named columns, in the order given.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for k, c := range columns {
		j := t.ColumnIndex(c)
		if j < 0 {
			return nil, fmt.Errorf("column not found: %q", c)
		}
		idx[k] = j
	}
	rows := make([][]Value, t.Len())
	for i := range rows {
		row := make([]Value, len(idx))
		for k, j := range idx {
			row[k] = t.rows[i][j]
		}
		rows[i] = row
	}
	return New(columns, rows), nil
}

// Head returns a new Table with at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > t.Len() {
		n = t.Len()
	}
	var rows [][]Value
	if t != nil {
		rows = t.rows[:n]
	}
	return New(t.Columns(), rows)
}

// Equal reports whether both tables have the same columns and cell values.
func (t *Table) Equal(o *Table) bool {
	if t.Width() != o.Width() || t.Len() != o.Len() {
		return false
	}
	for j := range t.columns {
		if t.columns[j] != o.columns[j] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if !ValuesEqual(t.rows[i][j], o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// String renders a short description, used in logs and messages.
func (t *Table) String() string {
	if t == nil {
		return "Table(nil)"
	}
	return fmt.Sprintf("Table(%d rows x [%s])", t.Len(), strings.Join(t.columns, ", "))
}

// Row is a read-only view of a single table row.
type Row struct {
	t *Table
	i int
}

// Index returns the zero-based row position in its table.
func (r Row) Index() int { return r.i }

// Get returns the value in the named column, or nil.
func (r Row) Get(column string) Value {
	return r.t.Value(r.i, column)
}

// Float returns the named value as a number.
// Numeric strings are parsed; ok is false for nil and non-numeric values.
func (r Row) Float(column string) (float64, bool) {
	return AsFloat(r.Get(column))
}

// String returns the named value formatted for display.
func (r Row) String(column string) string {
	return FormatValue(r.Get(column))
}

// Values returns a copy of the row's cells.
func (r Row) Values() []Value {
	if r.i < 0 || r.i >= r.t.Len() {
		return nil
	}
	return append([]Value(nil), r.t.rows[r.i]...)
}
