package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field is one entry of a Schema.
type Field struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Schema is the ordered list of column names and types of a Dataset.
type Schema []Field

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether both schemas have the same names, order and types.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Name + ":" + f.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Column is an immutable typed vector. Exactly one of the backing slices
// is populated, chosen by Type.
type Column struct {
	name   string
	typ    Type
	valid  []bool
	ints   []int64
	floats []float64
	bools  []bool
	times  []time.Time
	strs   []string
}

func (c *Column) Name() string { return c.name }
func (c *Column) Type() Type { return c.typ }
func (c *Column) Len() int { return len(c.valid) }

// IsNull reports whether row i is missing.
func (c *Column) IsNull(i int) bool { return !c.valid[i] }

// NullCount returns the number of missing values.
func (c *Column) NullCount() int {
	n := 0
	for _, ok := range c.valid {
		if !ok {
			n++
		}
	}
	return n
}

// Value returns row i as a Value.
func (c *Column) Value(i int) Value {
	if !c.valid[i] {
		return NullValue(c.typ)
	}
	switch c.typ {
	case Integer:
		return IntValue(c.ints[i])
	case Float:
		return FloatValue(c.floats[i])
	case Boolean:
		return BoolValue(c.bools[i])
	case Timestamp:
		return TimeValue(c.times[i])
	default:
		return StringValue(c.strs[i])
	}
}

// Floats returns the non-null values of a numeric column with their row
// indexes. It returns nil slices for non-numeric columns.
func (c *Column) Floats() (vals []float64, rows []int) {
	if !c.typ.IsNumeric() {
		return nil, nil
	}
	for i, ok := range c.valid {
		if !ok {
			continue
		}
		if c.typ == Integer {
			vals = append(vals, float64(c.ints[i]))
		} else {
			vals = append(vals, c.floats[i])
		}
		rows = append(rows, i)
	}
	return vals, rows
}

// ColumnBuilder accumulates values for a new Column.
type ColumnBuilder struct {
	col Column
}

func NewColumnBuilder(name string, t Type) *ColumnBuilder {
	return &ColumnBuilder{col: Column{name: name, typ: t}}
}

// Append adds v. Integer values are widened into float columns; any other
// type mismatch is a programming error and panics.
func (b *ColumnBuilder) Append(v Value) {
	if v.Null {
		b.AppendNull()
		return
	}
	c := &b.col
	if v.Type != c.typ && !(c.typ == Float && v.Type == Integer) {
		panic(fmt.Sprintf("dataset: append %s value to %s column %q", v.Type, c.typ, c.name))
	}
	c.valid = append(c.valid, true)
	switch c.typ {
	case Integer:
		c.ints = append(c.ints, v.Int)
	case Float:
		c.floats = append(c.floats, v.asFloat())
	case Boolean:
		c.bools = append(c.bools, v.Bool)
	case Timestamp:
		c.times = append(c.times, v.Time)
	default:
		c.strs = append(c.strs, v.Str)
	}
}

// AppendNull adds a missing value.
func (b *ColumnBuilder) AppendNull() {
	c := &b.col
	c.valid = append(c.valid, false)
	switch c.typ {
	case Integer:
		c.ints = append(c.ints, 0)
	case Float:
		c.floats = append(c.floats, 0)
	case Boolean:
		c.bools = append(c.bools, false)
	case Timestamp:
		c.times = append(c.times, time.Time{})
	default:
		c.strs = append(c.strs, "")
	}
}

// Build returns the column. The builder must not be used afterwards.
func (b *ColumnBuilder) Build() *Column {
	c := b.col
	if c.valid == nil {
		c.valid = []bool{}
	}
	return &c
}

// Dataset is an immutable, in-memory typed table.
type Dataset struct {
	name    string
	columns []*Column
	index   map[string]int
	rows    int
}

// New assembles a Dataset. Columns must have unique names and equal lengths.
func New(name string, cols ...*Column) (*Dataset, error) {
	d := &Dataset{name: name, columns: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := d.index[c.name]; dup {
			return nil, Invalid("duplicate column name %q", c.name)
		}
		d.index[c.name] = i
		if i == 0 {
			d.rows = c.Len()
		} else if c.Len() != d.rows {
			return nil, Invalid("column %q has %d values, want %d", c.name, c.Len(), d.rows)
		}
	}
	return d, nil
}

func (d *Dataset) Name() string { return d.name }
func (d *Dataset) NumRows() int { return d.rows }
func (d *Dataset) NumCols() int { return len(d.columns) }
func (d *Dataset) ColumnAt(i int) *Column { return d.columns[i] }

// Columns returns the columns in order. The slice must not be modified.
func (d *Dataset) Columns() []*Column { return d.columns }

// Column looks up a column by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Schema derives the ordered name/type list.
func (d *Dataset) Schema() Schema {
	s := make(Schema, len(d.columns))
	for i, c := range d.columns {
		s[i] = Field{Name: c.name, Type: c.typ}
	}
	return s
}

// NumericColumns returns the names of integer and float columns in order.
func (d *Dataset) NumericColumns() []string {
	var out []string
	for _, c := range d.columns {
		if c.typ.IsNumeric() {
			out = append(out, c.name)
		}
	}
	return out
}

// Row returns row i as values in column order.
func (d *Dataset) Row(i int) []Value {
	out := make([]Value, len(d.columns))
	for j, c := range d.columns {
		out[j] = c.Value(i)
	}
	return out
}

// RowKey returns an injective encoding of row i across all columns.
func (d *Dataset) RowKey(i int) string {
	return RowKey(d.Row(i))
}

// RowKey encodes a tuple of values so that equal tuples, and only equal
// tuples, share a key.
func RowKey(vals []Value) string {
	var b strings.Builder
	for _, v := range vals {
		k := v.Key()
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}

// Table is the serializable form of a Dataset.
type Table struct {
	Name    string  `json:"name,omitempty"`
	Columns Schema  `json:"columns"`
	Rows    [][]any `json:"rows"`
}

// Table renders d with JSON-friendly cell values.
func (d *Dataset) Table() *Table {
	t := &Table{Name: d.name, Columns: d.Schema(), Rows: make([][]any, d.rows)}
	for i := 0; i < d.rows; i++ {
		row := make([]any, len(d.columns))
		for j, c := range d.columns {
			row[j] = c.Value(i).Interface()
		}
		t.Rows[i] = row
	}
	return t
}

// FromValues builds a Dataset from a schema and row tuples. It is used by
// operations that produce tables.
func FromValues(name string, schema Schema, rows [][]Value) (*Dataset, error) {
	builders := make([]*ColumnBuilder, len(schema))
	for j, f := range schema {
		builders[j] = NewColumnBuilder(f.Name, f.Type)
	}
	for i, row := range rows {
		if len(row) != len(schema) {
			return nil, Invalid("row %d has %d values, want %d", i, len(row), len(schema))
		}
		for j, v := range row {
			builders[j].Append(v)
		}
	}
	cols := make([]*Column, len(builders))
	for j, b := range builders {
		cols[j] = b.Build()
	}
	return New(name, cols...)
}

// Markdown renders t as a pipe table. Rows beyond limit are elided when
// limit > 0.
func (t *Table) Markdown(limit int) string {
	var b strings.Builder
	names := t.Columns.Names()
	b.WriteString("| " + strings.Join(names, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(names)) + "\n")
	for i, row := range t.Rows {
		if limit > 0 && i == limit {
			b.WriteString(fmt.Sprintf("\n... %d more rows\n", len(t.Rows)-limit))
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				cells[j] = ""
				continue
			}
			cells[j] = strings.ReplaceAll(fmt.Sprint(v), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}
