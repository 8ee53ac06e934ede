package dataset

import (
	"encoding/json"
	"fmt"
)

// Table is an immutable, column-ordered, row-major dataset. Readers get
// copies; nothing hands out the backing slices.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New builds a table. Column names must be unique and every row must have
// exactly one value per column.
func New(columns []string, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}

	copied := make([][]Value, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		copied[i] = append([]Value(nil), row...)
	}

	return &Table{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    copied,
	}, nil
}

// MustNew is New for fixtures and literals known to be well formed.
func MustNew(columns []string, rows [][]Value) *Table {
	t, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// FromStrings builds a table of string cells; "" becomes missing.
func FromStrings(columns []string, records [][]string) (*Table, error) {
	rows := make([][]Value, len(records))
	for i, rec := range records {
		row := make([]Value, len(columns))
		for j := range columns {
			if j < len(rec) && rec[j] != "" {
				row[j] = String(rec[j])
			}
		}
		rows[i] = row
	}
	return New(columns, rows)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// HasColumn reports whether name is a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Missing returns the names from required that are not columns, in order.
func (t *Table) Missing(required ...string) []string {
	var missing []string
	for _, c := range required {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// At returns the cell at row i in column name, or missing when either is
// out of range.
func (t *Table) At(i int, name string) Value {
	j, ok := t.index[name]
	if !ok || i < 0 || i >= len(t.rows) {
		return Missing()
	}
	return t.rows[i][j]
}

// Column returns a copy of a column.
func (t *Table) Column(name string) ([]Value, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, true
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []Value {
	return append([]Value(nil), t.rows[i]...)
}

// Head returns a table with the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	return &Table{columns: t.columns, index: t.index, rows: t.rows[:n:n]}
}

// Records renders rows as column-keyed maps.
func (t *Table) Records() []map[string]Value {
	out := make([]map[string]Value, len(t.rows))
	for i, row := range t.rows {
		rec := make(map[string]Value, len(t.columns))
		for j, c := range t.columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Strings renders every cell as text, missing as "".
func (t *Table) Strings() [][]string {
	out := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = v.String()
		}
		out[i] = rec
	}
	return out
}

type tableJSON struct {
	Columns []string           `json:"columns"`
	Rows    []map[string]Value `json:"rows"`
}

// MarshalJSON encodes the table as {columns, rows}; rows are objects so the
// payload reads like a records-oriented frame.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{Columns: t.columns, Rows: t.Records()})
}

// Sheet is a named table, the unit exporters write.
type Sheet struct {
	Name  string
	Table *Table
}
