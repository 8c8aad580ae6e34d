package distiset

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/distiset/dataset"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/testutil"
	"github.com/BaSui01/distiset/testutil/fixtures"
	"github.com/BaSui01/distiset/types"
)

// newTestDistiset mirrors the two-step fixture used throughout: leaf_step_1
// with column a (3 rows) and leaf_step_2 with columns a, b (4 rows).
func newTestDistiset(t *testing.T) *Distiset {
	t.Helper()
	one, err := dataset.FromMap(map[string][]any{"a": {1, 2, 3}})
	require.NoError(t, err)
	two, err := dataset.FromMap(map[string][]any{"a": {1, 2, 3, 4}, "b": {5, 6, 7, 8}})
	require.NoError(t, err)

	d, err := FromMap(map[string]dataset.Leaf{"leaf_step_2": two, "leaf_step_1": one})
	require.NoError(t, err)
	return d
}

// =============================================================================
// 🧪 container
// =============================================================================

func TestDistiset_SetGetOrder(t *testing.T) {
	d := newTestDistiset(t)
	assert.Equal(t, []string{"leaf_step_1", "leaf_step_2"}, d.Steps())
	assert.Equal(t, 2, d.Len())

	extra := fixtures.InstructionTable(2)
	require.NoError(t, d.Set("a_step", extra))
	assert.Equal(t, []string{"leaf_step_1", "leaf_step_2", "a_step"}, d.Steps())

	// re-setting keeps the position
	require.NoError(t, d.Set("leaf_step_1", extra))
	assert.Equal(t, []string{"leaf_step_1", "leaf_step_2", "a_step"}, d.Steps())

	leaf, err := d.Get("leaf_step_1")
	require.NoError(t, err)
	assert.Same(t, extra, leaf)
}

func TestDistiset_GetUnknown(t *testing.T) {
	d := newTestDistiset(t)

	_, err := d.Get("missing")
	testutil.AssertErrorCode(t, err, types.ErrKeyNotFound)
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "missing", e.Step)
}

func TestDistiset_Delete(t *testing.T) {
	d := newTestDistiset(t)

	assert.True(t, d.Delete("leaf_step_1"))
	assert.False(t, d.Delete("leaf_step_1"))
	assert.Equal(t, []string{"leaf_step_2"}, d.Steps())

	_, err := d.Get("leaf_step_1")
	testutil.AssertErrorCode(t, err, types.ErrKeyNotFound)
}

func TestDistiset_StepsIsACopy(t *testing.T) {
	d := newTestDistiset(t)
	steps := d.Steps()
	steps[0] = "mutated"
	assert.Equal(t, "leaf_step_1", d.Steps()[0])
}

func TestValidateStepName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"text_generation", true},
		{"step-1.v2", true},
		{"", false},
		{".", false},
		{"..", false},
		{"a/b", false},
		{`a\b`, false},
		{".hidden", false},
		{".distiset", false},
		{"artifacts", false},
	}

	for _, tt := range tests {
		err := ValidateStepName(tt.name)
		if tt.valid {
			assert.NoError(t, err, tt.name)
		} else {
			testutil.AssertErrorCode(t, err, types.ErrInvalidArgument)
		}
	}

	testutil.AssertErrorCode(t, New().Set("ok", nil), types.ErrInvalidArgument)
}

func TestDistiset_TypedAccessors(t *testing.T) {
	d := newTestDistiset(t)

	tbl, err := d.Table("leaf_step_2")
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.NumRows())

	_, err = d.SplitGroup("leaf_step_2")
	testutil.AssertErrorCode(t, err, types.ErrUnsupportedShape)

	split, err := d.TrainTestSplit(0.8)
	require.NoError(t, err)
	g, err := split.SplitGroup("leaf_step_2")
	require.NoError(t, err)
	assert.Equal(t, []string{"train", "test"}, g.Names())

	_, err = split.Table("leaf_step_2")
	testutil.AssertErrorCode(t, err, types.ErrUnsupportedShape)

	_, err = split.Table("nope")
	testutil.AssertErrorCode(t, err, types.ErrKeyNotFound)
}

// =============================================================================
// 🧪 TrainTestSplit
// =============================================================================

func TestDistiset_TrainTestSplit(t *testing.T) {
	d := newTestDistiset(t)
	cfg := storage.Local(t.TempDir()).Join("pipeline.yaml")
	d.ConfigPath = &cfg

	split, err := d.TrainTestSplit(0.8)
	require.NoError(t, err)
	assert.Equal(t, 2, split.Len())
	assert.True(t, split.IsSplit())
	assert.False(t, d.IsSplit())
	assert.Same(t, d.ConfigPath, split.ConfigPath)

	tests := []struct {
		step        string
		train, test int
	}{
		{"leaf_step_1", 2, 1},
		{"leaf_step_2", 3, 1},
	}
	for _, tt := range tests {
		g, err := split.SplitGroup(tt.step)
		require.NoError(t, err)
		train, _ := g.Split("train")
		test, _ := g.Split("test")
		assert.Equal(t, tt.train, train.NumRows(), tt.step)
		assert.Equal(t, tt.test, test.NumRows(), tt.step)
	}

	// receiver untouched
	_, err = d.Table("leaf_step_1")
	assert.NoError(t, err)
}

func TestDistiset_TrainTestSplitDeterministic(t *testing.T) {
	d, err := FromMap(map[string]dataset.Leaf{"s": fixtures.InstructionTable(50)})
	require.NoError(t, err)

	a, err := d.TrainTestSplit(0.7, dataset.WithSeed(7))
	require.NoError(t, err)
	b, err := d.TrainTestSplit(0.7, dataset.WithSeed(7))
	require.NoError(t, err)

	la, _ := a.Get("s")
	lb, _ := b.Get("s")
	testutil.AssertLeafEqual(t, la, lb)
}

func TestDistiset_TrainTestSplitErrors(t *testing.T) {
	d := newTestDistiset(t)
	split, err := d.TrainTestSplit(0.8)
	require.NoError(t, err)

	_, err = split.TrainTestSplit(0.5)
	testutil.AssertErrorCode(t, err, types.ErrUnsupportedShape)
	e, _ := types.AsError(err)
	assert.Equal(t, "leaf_step_1", e.Step)

	for _, size := range []float64{0, 1, -0.1, 1.5} {
		_, err := New().TrainTestSplit(size)
		testutil.AssertErrorCode(t, err, types.ErrInvalidArgument)
	}

	empty, err := New().TrainTestSplit(0.5)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.IsSplit())
}

// =============================================================================
// 🧪 TransformColumnToImage
// =============================================================================

func imageDistiset(t *testing.T) *Distiset {
	t.Helper()
	withExtra, err := fixtures.EncodedImageTable(4).WithColumn("column", []any{5, 6, 7, 8})
	require.NoError(t, err)

	d, err := FromMap(map[string]dataset.Leaf{
		"leaf_step_1": fixtures.EncodedImageTable(3),
		"leaf_step_2": withExtra,
		"no_images":   fixtures.InstructionTable(2),
	})
	require.NoError(t, err)
	return d
}

func assertImages(t *testing.T, tbl *dataset.Table) {
	t.Helper()
	values, ok := tbl.Column("image")
	require.True(t, ok)
	for i, v := range values {
		_, isImage := v.(image.Image)
		assert.True(t, isImage, "row %d holds %T", i, v)
	}
}

func TestDistiset_TransformColumnToImage(t *testing.T) {
	d := imageDistiset(t)

	out, err := d.TransformColumnToImage("image")
	require.NoError(t, err)

	for _, step := range []string{"leaf_step_1", "leaf_step_2"} {
		tbl, err := out.Table(step)
		require.NoError(t, err)
		assertImages(t, tbl)
	}

	before, _ := d.Get("no_images")
	after, _ := out.Get("no_images")
	assert.Same(t, before, after)

	// receiver keeps encoded strings
	src, _ := d.Table("leaf_step_1")
	values, _ := src.Column("image")
	assert.IsType(t, "", values[0])
}

func TestDistiset_TransformColumnToImageSplit(t *testing.T) {
	split, err := imageDistiset(t).TrainTestSplit(0.8)
	require.NoError(t, err)

	out, err := split.TransformColumnToImage("image")
	require.NoError(t, err)

	for _, step := range []string{"leaf_step_1", "leaf_step_2"} {
		g, err := out.SplitGroup(step)
		require.NoError(t, err)
		for _, name := range g.Names() {
			tbl, _ := g.Split(name)
			assertImages(t, tbl)
		}
	}
}

func TestDistiset_TransformColumnToImageDecodeError(t *testing.T) {
	bad := dataset.MustNewTable(dataset.Column{Name: "image", Values: []any{"not-an-image"}})
	d, err := FromMap(map[string]dataset.Leaf{"broken": bad})
	require.NoError(t, err)

	_, err = d.TransformColumnToImage("image")
	testutil.AssertErrorCode(t, err, types.ErrDecode)
	e, _ := types.AsError(err)
	assert.Equal(t, "broken", e.Step)
}
