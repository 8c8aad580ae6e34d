package dataset

// SplitGroup maps split names to tables, keeping insertion order.
type SplitGroup struct {
	names  []string
	splits map[string]*Table
}

// NewSplitGroup returns an empty SplitGroup.
func NewSplitGroup() *SplitGroup {
	return &SplitGroup{splits: make(map[string]*Table)}
}

func (g *SplitGroup) isLeaf() {}

// Kind implements Leaf.
func (g *SplitGroup) Kind() LeafKind { return KindSplitGroup }

// NumRows implements Leaf and returns the row count summed over splits.
func (g *SplitGroup) NumRows() int {
	n := 0
	for _, t := range g.splits {
		n += t.NumRows()
	}
	return n
}

// Set adds or replaces a split. A replaced split keeps its position.
func (g *SplitGroup) Set(name string, t *Table) *SplitGroup {
	if _, ok := g.splits[name]; !ok {
		g.names = append(g.names, name)
	}
	g.splits[name] = t
	return g
}

// Split returns the named split.
func (g *SplitGroup) Split(name string) (*Table, bool) {
	t, ok := g.splits[name]
	return t, ok
}

// Names returns the split names in insertion order.
func (g *SplitGroup) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Len returns the number of splits.
func (g *SplitGroup) Len() int { return len(g.names) }

// Equal reports whether both groups hold the same splits in the same order
// with equal tables.
func (g *SplitGroup) Equal(other *SplitGroup) bool {
	if g == other {
		return true
	}
	if g == nil || other == nil || len(g.names) != len(other.names) {
		return false
	}
	for i, name := range g.names {
		if other.names[i] != name || !g.splits[name].Equal(other.splits[name]) {
			return false
		}
	}
	return true
}

// LeafEqual compares two leaves of any variant.
func LeafEqual(a, b Leaf) bool {
	switch x := a.(type) {
	case *Table:
		y, ok := b.(*Table)
		return ok && x.Equal(y)
	case *SplitGroup:
		y, ok := b.(*SplitGroup)
		return ok && x.Equal(y)
	default:
		return a == nil && b == nil
	}
}
