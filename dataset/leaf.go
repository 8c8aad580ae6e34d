package dataset

import "fmt"

// LeafKind tags the variant held by a Leaf.
type LeafKind int

const (
	KindTable LeafKind = iota + 1
	KindSplitGroup
)

func (k LeafKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindSplitGroup:
		return "split_group"
	default:
		return fmt.Sprintf("LeafKind(%d)", int(k))
	}
}

// Leaf is the value stored under one step name: either a *Table or a
// *SplitGroup. The interface is sealed.
type Leaf interface {
	Kind() LeafKind
	NumRows() int
	isLeaf()
}

var (
	_ Leaf = (*Table)(nil)
	_ Leaf = (*SplitGroup)(nil)
)

// TableFunc transforms one table of a leaf. split is "" for a flat Table.
type TableFunc func(split string, t *Table) (*Table, error)

// MapTables applies fn to every table of leaf and rebuilds a leaf of the same
// variant. If fn returns every table unchanged, leaf itself is returned.
func MapTables(leaf Leaf, fn TableFunc) (Leaf, error) {
	switch l := leaf.(type) {
	case *Table:
		out, err := fn("", l)
		if err != nil {
			return nil, err
		}
		return out, nil

	case *SplitGroup:
		changed := false
		group := NewSplitGroup()
		for _, name := range l.names {
			t := l.splits[name]
			out, err := fn(name, t)
			if err != nil {
				return nil, err
			}
			if out != t {
				changed = true
			}
			group.Set(name, out)
		}
		if !changed {
			return l, nil
		}
		return group, nil

	default:
		return nil, fmt.Errorf("unknown leaf type %T", leaf)
	}
}

// ForEachTable calls fn for every table of leaf, stopping at the first error.
func ForEachTable(leaf Leaf, fn func(split string, t *Table) error) error {
	_, err := MapTables(leaf, func(split string, t *Table) (*Table, error) {
		return t, fn(split, t)
	})
	return err
}

// SampleTable returns the table used to show an example record for leaf: the
// table itself, or the "train" split (first split if there is none).
func SampleTable(leaf Leaf) *Table {
	switch l := leaf.(type) {
	case *Table:
		return l
	case *SplitGroup:
		if t, ok := l.Split(TrainSplit); ok {
			return t
		}
		if len(l.names) > 0 {
			return l.splits[l.names[0]]
		}
	}
	return nil
}

// ColumnNames returns the columns of leaf. For a SplitGroup the columns of
// the sample table are returned.
func ColumnNames(leaf Leaf) []string {
	if t := SampleTable(leaf); t != nil {
		return t.ColumnNames()
	}
	return nil
}
