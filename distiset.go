// Package distiset is the container for the output of a data-generation
// pipeline: an ordered mapping from step name to the tabular data the step
// produced, plus pointers to the pipeline config, the execution log and the
// artifacts the run left behind.
//
// Usage:
//
//	ds := distiset.New()
//	_ = ds.Set("text_generation", table)
//	split, err := ds.TrainTestSplit(0.8)
//	err = split.SaveToDisk(ctx, "/data/runs/my-dataset")
//	loaded, err := distiset.LoadFromDisk(ctx, "redis://datasets/my-dataset")
package distiset

import (
	"math"
	"sort"
	"strings"

	"github.com/BaSui01/distiset/artifacts"
	"github.com/BaSui01/distiset/dataset"
	"github.com/BaSui01/distiset/provenance"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/types"
)

// Distiset maps step names to leaves in insertion order.
type Distiset struct {
	steps  []string
	leaves map[string]dataset.Leaf

	// ConfigPath points at the pipeline.yaml that produced the data.
	ConfigPath *storage.Path
	// LogPath points at the pipeline execution log.
	LogPath *storage.Path
	// ArtifactsPath points at the artifacts/<step>/<artifact> tree.
	ArtifactsPath *storage.Path
}

// New returns an empty Distiset.
func New() *Distiset {
	return &Distiset{leaves: make(map[string]dataset.Leaf)}
}

// FromMap builds a Distiset from m, in sorted step order.
func FromMap(m map[string]dataset.Leaf) (*Distiset, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	d := New()
	for _, name := range names {
		if err := d.Set(name, m[name]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ValidateStepName reports whether name can be used as a step: it becomes a
// directory on save, so it must be a single visible path element other than
// the reserved artifacts folder.
func ValidateStepName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return types.Errorf(types.ErrInvalidArgument, "invalid step name %q", name)
	case strings.ContainsAny(name, `/\`):
		return types.Errorf(types.ErrInvalidArgument, "step name %q contains a path separator", name)
	case strings.HasPrefix(name, "."):
		return types.Errorf(types.ErrInvalidArgument, "step name %q is hidden", name)
	case name == artifacts.FolderName, name == provenance.FolderName:
		return types.Errorf(types.ErrInvalidArgument, "step name %q is reserved", name)
	}
	return nil
}

// Set stores leaf under step. A new step is appended; an existing one keeps
// its position.
func (d *Distiset) Set(step string, leaf dataset.Leaf) error {
	if err := ValidateStepName(step); err != nil {
		return err
	}
	if leaf == nil {
		return types.NewError(types.ErrInvalidArgument, "leaf is nil").WithStep(step)
	}
	if _, ok := d.leaves[step]; !ok {
		d.steps = append(d.steps, step)
	}
	d.leaves[step] = leaf
	return nil
}

// Get returns the leaf of step, or KEY_NOT_FOUND.
func (d *Distiset) Get(step string) (dataset.Leaf, error) {
	leaf, ok := d.leaves[step]
	if !ok {
		return nil, types.NewError(types.ErrKeyNotFound, "unknown step").WithStep(step)
	}
	return leaf, nil
}

// Table returns the leaf of step as a Table.
func (d *Distiset) Table(step string) (*dataset.Table, error) {
	leaf, err := d.Get(step)
	if err != nil {
		return nil, err
	}
	t, ok := leaf.(*dataset.Table)
	if !ok {
		return nil, types.Errorf(types.ErrUnsupportedShape, "step holds a %s, not a table", leaf.Kind()).WithStep(step)
	}
	return t, nil
}

// SplitGroup returns the leaf of step as a SplitGroup.
func (d *Distiset) SplitGroup(step string) (*dataset.SplitGroup, error) {
	leaf, err := d.Get(step)
	if err != nil {
		return nil, err
	}
	g, ok := leaf.(*dataset.SplitGroup)
	if !ok {
		return nil, types.Errorf(types.ErrUnsupportedShape, "step holds a %s, not a split group", leaf.Kind()).WithStep(step)
	}
	return g, nil
}

// Delete removes step and reports whether it was present.
func (d *Distiset) Delete(step string) bool {
	if _, ok := d.leaves[step]; !ok {
		return false
	}
	delete(d.leaves, step)
	for i, s := range d.steps {
		if s == step {
			d.steps = append(d.steps[:i], d.steps[i+1:]...)
			break
		}
	}
	return true
}

// Steps returns the step names in order.
func (d *Distiset) Steps() []string {
	out := make([]string, len(d.steps))
	copy(out, d.steps)
	return out
}

// Len returns the number of steps.
func (d *Distiset) Len() int { return len(d.steps) }

// IsSplit reports whether every leaf is a SplitGroup. An empty Distiset is
// not split.
func (d *Distiset) IsSplit() bool {
	if len(d.steps) == 0 {
		return false
	}
	for _, s := range d.steps {
		if d.leaves[s].Kind() != dataset.KindSplitGroup {
			return false
		}
	}
	return true
}

// withLeaves returns a Distiset with the same side pointers and step order,
// holding the given leaves.
func (d *Distiset) withLeaves(leaves map[string]dataset.Leaf) *Distiset {
	return &Distiset{
		steps:         d.Steps(),
		leaves:        leaves,
		ConfigPath:    d.ConfigPath,
		LogPath:       d.LogPath,
		ArtifactsPath: d.ArtifactsPath,
	}
}

// TrainTestSplit splits every leaf into train and test. The receiver is
// left untouched. Fails with UNSUPPORTED_SHAPE when a leaf is already split.
func (d *Distiset) TrainTestSplit(trainSize float64, opts ...dataset.SplitOption) (*Distiset, error) {
	if math.IsNaN(trainSize) || trainSize <= 0 || trainSize >= 1 {
		return nil, types.Errorf(types.ErrInvalidArgument, "train size must be in (0, 1), got %v", trainSize)
	}
	leaves := make(map[string]dataset.Leaf, len(d.steps))
	for _, step := range d.steps {
		g, err := dataset.SplitLeaf(d.leaves[step], trainSize, opts...)
		if err != nil {
			return nil, withStep(err, step)
		}
		leaves[step] = g
	}
	return d.withLeaves(leaves), nil
}

// TransformColumnToImage decodes column into images in every leaf that has
// it. Leaves without the column are shared with the receiver unchanged.
func (d *Distiset) TransformColumnToImage(column string) (*Distiset, error) {
	leaves := make(map[string]dataset.Leaf, len(d.steps))
	for _, step := range d.steps {
		leaf, err := dataset.TransformColumnToImage(d.leaves[step], column)
		if err != nil {
			return nil, withStep(err, step)
		}
		leaves[step] = leaf
	}
	return d.withLeaves(leaves), nil
}

func withStep(err error, step string) error {
	if e, ok := types.AsError(err); ok {
		return e.WithStep(step)
	}
	return err
}
