package dataset

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/BaSui01/distiset/types"
)

// Column is one named column of a Table.
type Column struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// Table is an ordered collection of named columns with the same length.
// Tables are immutable by convention: every method that changes data returns
// a new Table.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// NewTable builds a Table from columns, validating that names are unique
// and non-empty and that every column has the same length.
func NewTable(cols ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, 0, len(cols)),
		index:   make(map[string]int, len(cols)),
	}

	for i, c := range cols {
		if c.Name == "" {
			return nil, types.Errorf(types.ErrInvalidArgument, "column %d has an empty name", i)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, types.Errorf(types.ErrInvalidArgument, "duplicate column %q", c.Name)
		}
		if i == 0 {
			t.rows = len(c.Values)
		} else if len(c.Values) != t.rows {
			return nil, types.Errorf(types.ErrInvalidArgument,
				"column %q has %d values, expected %d", c.Name, len(c.Values), t.rows)
		}

		values := make([]any, len(c.Values))
		for j, v := range c.Values {
			values[j] = Normalize(v)
		}
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, Column{Name: c.Name, Values: values})
	}

	return t, nil
}

// MustNewTable is NewTable that panics on invalid input. Intended for tests
// and literals.
func MustNewTable(cols ...Column) *Table {
	t, err := NewTable(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromMap builds a Table from a column map. Column order is the sorted key
// order since Go maps carry none.
func FromMap(data map[string][]any) (*Table, error) {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]Column, 0, len(names))
	for _, name := range names {
		cols = append(cols, Column{Name: name, Values: data[name]})
	}
	return NewTable(cols...)
}

func (t *Table) isLeaf() {}

// Kind implements Leaf.
func (t *Table) Kind() LeafKind { return KindTable }

// NumRows implements Leaf.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the values of the named column.
func (t *Table) Column(name string) ([]any, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]any, t.rows)
	copy(out, t.columns[i].Values)
	return out, true
}

// Columns returns the columns in order. The value slices are shared and must
// not be modified.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Row returns row i as a column name -> value map.
func (t *Table) Row(i int) map[string]any {
	if i < 0 || i >= t.rows {
		return nil
	}
	row := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Rows returns every row. Used for display and card samples.
func (t *Table) Rows() []map[string]any {
	rows := make([]map[string]any, t.rows)
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// Select returns a new Table holding the given rows in the given order.
func (t *Table) Select(indices []int) (*Table, error) {
	out := &Table{
		columns: make([]Column, len(t.columns)),
		index:   make(map[string]int, len(t.columns)),
		rows:    len(indices),
	}
	for ci, c := range t.columns {
		values := make([]any, len(indices))
		for ri, idx := range indices {
			if idx < 0 || idx >= t.rows {
				return nil, types.Errorf(types.ErrInvalidArgument, "row index %d out of range [0,%d)", idx, t.rows)
			}
			values[ri] = c.Values[idx]
		}
		out.columns[ci] = Column{Name: c.Name, Values: values}
		out.index[c.Name] = ci
	}
	return out, nil
}

// WithColumn returns a new Table where the named column is replaced by
// values, or appended if it does not exist yet.
func (t *Table) WithColumn(name string, values []any) (*Table, error) {
	cols := t.Columns()
	if i, ok := t.index[name]; ok {
		cols[i] = Column{Name: name, Values: values}
	} else {
		cols = append(cols, Column{Name: name, Values: values})
	}
	if len(t.columns) > 0 && len(values) != t.rows {
		return nil, types.Errorf(types.ErrInvalidArgument,
			"column %q has %d values, expected %d", name, len(values), t.rows)
	}
	return NewTable(cols...)
}

// Equal reports whether both tables have the same columns, in the same
// order, holding deeply equal values.
func (t *Table) Equal(other *Table) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || t.rows != other.rows || len(t.columns) != len(other.columns) {
		return false
	}
	for i := range t.columns {
		if t.columns[i].Name != other.columns[i].Name {
			return false
		}
		if !reflect.DeepEqual(t.columns[i].Values, other.columns[i].Values) {
			return false
		}
	}
	return true
}

// Normalize maps a Go value onto the canonical cell representation.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64, float64, []byte:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUint(x)
	case float32:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[keyString(k)] = Normalize(e)
		}
		return out
	default:
		return normalizeContainer(x)
	}
}

// normalizeContainer rewrites typed slices, arrays and maps into []any and
// map[string]any. image.Image and anything else the codecs do not know stay
// as they are.
func normalizeContainer(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[keyString(iter.Key().Interface())] = Normalize(iter.Value().Interface())
		}
		return out
	default:
		return v
	}
}

func normalizeUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}
