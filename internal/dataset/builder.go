package dataset

// Builder accumulates rows for a fixed column set.
type Builder struct {
	columns []string
	rows    [][]Value
}

// NewBuilder starts a table with the given columns.
func NewBuilder(columns ...string) *Builder {
	return &Builder{columns: columns}
}

// Add appends a row. Short rows are padded with missing values and long rows
// are truncated.
func (b *Builder) Add(values ...Value) *Builder {
	row := make([]Value, len(b.columns))
	copy(row, values)
	b.rows = append(b.rows, row)
	return b
}

// Build returns the table. Builder column sets are fixed by callers, so a
// duplicate column is a programming error.
func (b *Builder) Build() *Table {
	return MustNew(b.columns, b.rows)
}
