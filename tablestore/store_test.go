package tablestore

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/distiset/dataset"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/types"
)

func sampleTable() *dataset.Table {
	return dataset.MustNewTable(
		dataset.Column{Name: "id", Values: []any{1, 2, 3}},
		dataset.Column{Name: "score", Values: []any{0.5, 1.0, -2.25}},
		dataset.Column{Name: "text", Values: []any{"a", "", "日本"}},
		dataset.Column{Name: "flag", Values: []any{true, false, nil}},
		dataset.Column{Name: "raw", Values: []any{[]byte{1, 2}, nil, []byte{3}}},
		dataset.Column{Name: "nested", Values: []any{
			map[string]any{"k": []any{1, "x"}},
			[]any{},
			map[string]any{},
		}},
	)
}

func newStore(t *testing.T, codec Codec, comp Compression) *Store {
	t.Helper()
	s, err := New(Config{Codec: string(codec), Compression: string(comp)}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestStore_TableRoundTrip(t *testing.T) {
	tests := []struct {
		codec Codec
		comp  Compression
		file  string
	}{
		{CodecCBOR, CompressionNone, "data.cbor"},
		{CodecCBOR, CompressionZstd, "data.cbor.zst"},
		{CodecCBOR, CompressionLZ4, "data.cbor.lz4"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			ctx := context.Background()
			dir := storage.Local(t.TempDir()).Join("step")
			s := newStore(t, tt.codec, tt.comp)
			original := sampleTable()

			require.NoError(t, s.Save(ctx, dir, original))

			entries, err := dir.ReadDir(ctx)
			require.NoError(t, err)
			assert.Equal(t, []storage.Entry{{Name: tt.file}, {Name: MetaFile}}, entries)

			kind, err := s.Probe(ctx, dir)
			require.NoError(t, err)
			assert.Equal(t, dataset.KindTable, kind)

			// reading follows meta.json, not the reader's config
			loaded, err := Default().Load(ctx, dir)
			require.NoError(t, err)
			assert.True(t, dataset.LeafEqual(original, loaded), "loaded %v", loaded)
		})
	}
}

func TestStore_JSONCodec(t *testing.T) {
	ctx := context.Background()
	dir := storage.Local(t.TempDir())
	s := newStore(t, CodecJSON, CompressionNone)

	table := dataset.MustNewTable(
		dataset.Column{Name: "i", Values: []any{1, -7}},
		dataset.Column{Name: "f", Values: []any{1.5, 2.0}},
		dataset.Column{Name: "s", Values: []any{"x", nil}},
	)
	require.NoError(t, s.Save(ctx, dir, table))

	loaded, err := s.Load(ctx, dir)
	require.NoError(t, err)
	lt := loaded.(*dataset.Table)

	ints, _ := lt.Column("i")
	assert.Equal(t, []any{int64(1), int64(-7)}, ints)
	floats, _ := lt.Column("f")
	// whole-number floats come back as integers with JSON
	assert.Equal(t, []any{1.5, int64(2)}, floats)
	strs, _ := lt.Column("s")
	assert.Equal(t, []any{"x", nil}, strs)
}

func TestStore_TypedContainersRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecCBOR, CodecJSON} {
		t.Run(string(codec), func(t *testing.T) {
			ctx := context.Background()
			dir := storage.Local(t.TempDir())
			s := newStore(t, codec, CompressionNone)

			table := dataset.MustNewTable(
				dataset.Column{Name: "tags", Values: []any{[]string{"x", "y"}, []string{}}},
				dataset.Column{Name: "meta", Values: []any{
					map[string]string{"k": "v"},
					map[string][]bool{"flags": {true, false}},
				}},
			)
			require.NoError(t, s.Save(ctx, dir, table))

			loaded, err := s.Load(ctx, dir)
			require.NoError(t, err)
			assert.True(t, dataset.LeafEqual(table, loaded), "loaded %v", loaded)

			tags, _ := loaded.(*dataset.Table).Column("tags")
			assert.Equal(t, []any{[]any{"x", "y"}, []any{}}, tags)
		})
	}
}

func TestStore_SplitGroupRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := storage.Local(t.TempDir())
	s := Default()

	group := dataset.NewSplitGroup().
		Set("train", dataset.MustNewTable(dataset.Column{Name: "a", Values: []any{1, 2}})).
		Set("test", dataset.MustNewTable(dataset.Column{Name: "a", Values: []any{3}})).
		Set("validation", dataset.MustNewTable(dataset.Column{Name: "a", Values: []any{}}))

	require.NoError(t, s.Save(ctx, dir, group))

	kind, err := Probe(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, dataset.KindSplitGroup, kind)

	loaded, err := s.Load(ctx, dir)
	require.NoError(t, err)
	lg, ok := loaded.(*dataset.SplitGroup)
	require.True(t, ok)
	assert.Equal(t, []string{"train", "test", "validation"}, lg.Names())
	assert.True(t, group.Equal(lg))
}

func TestStore_ImageColumn(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{R: uint8(60 * x), G: uint8(80 * y), B: 7, A: 255})
		}
	}

	for _, codec := range []Codec{CodecCBOR, CodecJSON} {
		t.Run(string(codec), func(t *testing.T) {
			ctx := context.Background()
			dir := storage.Local(t.TempDir())
			s := newStore(t, codec, CompressionNone)

			table := dataset.MustNewTable(
				dataset.Column{Name: "image", Values: []any{img, nil}},
				dataset.Column{Name: "n", Values: []any{1, 2}},
			)
			require.NoError(t, s.Save(ctx, dir, table))

			raw, err := dir.Join(MetaFile).ReadFile(ctx)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `"feature": "image"`)

			loaded, err := s.Load(ctx, dir)
			require.NoError(t, err)
			cells, _ := loaded.(*dataset.Table).Column("image")
			require.Len(t, cells, 2)
			assert.Nil(t, cells[1])

			got, ok := cells[0].(image.Image)
			require.True(t, ok)
			require.Equal(t, img.Bounds(), got.Bounds())
			for x := 0; x < 4; x++ {
				for y := 0; y < 3; y++ {
					r1, g1, b1, a1 := img.At(x, y).RGBA()
					r2, g2, b2, a2 := got.At(x, y).RGBA()
					assert.Equal(t, []uint32{r1, g1, b1, a1}, []uint32{r2, g2, b2, a2})
				}
			}
		})
	}
}

func TestStore_MixedImageColumnRejected(t *testing.T) {
	table := dataset.MustNewTable(dataset.Column{Name: "image", Values: []any{
		image.NewRGBA(image.Rect(0, 0, 1, 1)), "text",
	}})

	err := Default().Save(context.Background(), storage.Local(t.TempDir()), table)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidArgument))
}

func TestStore_CorruptLayouts(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		files map[string]string
	}{
		{"empty directory", map[string]string{}},
		{"unrelated files", map[string]string{"notes.txt": "hi"}},
		{"garbage meta", map[string]string{MetaFile: "{nope"}},
		{"missing data", map[string]string{MetaFile: `{"version":1,"codec":"cbor","compression":"none","row_count":0,"columns":[]}`}},
		{"unknown codec", map[string]string{MetaFile: `{"version":1,"codec":"arrow","row_count":0,"columns":[]}`}},
		{"future version", map[string]string{MetaFile: `{"version":99,"codec":"json","row_count":0,"columns":[]}`}},
		{"column count mismatch", map[string]string{
			MetaFile:    `{"version":1,"codec":"json","compression":"none","row_count":1,"columns":[{"name":"a"},{"name":"b"}]}`,
			"data.json": `[[1]]`,
		}},
		{"row count mismatch", map[string]string{
			MetaFile:    `{"version":1,"codec":"json","compression":"none","row_count":3,"columns":[{"name":"a"}]}`,
			"data.json": `[[1]]`,
		}},
		{"garbage data", map[string]string{
			MetaFile:        `{"version":1,"codec":"cbor","compression":"zstd","row_count":1,"columns":[{"name":"a"}]}`,
			"data.cbor.zst": "not zstd",
		}},
		{"garbage registry", map[string]string{SplitRegistryFile: "]"}},
		{"registry names missing split", map[string]string{SplitRegistryFile: `{"splits":["train"]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := storage.Local(t.TempDir())
			for name, content := range tt.files {
				require.NoError(t, dir.Join(name).WriteFile(ctx, []byte(content)))
			}

			_, err := Default().Load(ctx, dir)
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrCorruptLayout), "got %v", err)
		})
	}
}

func TestStore_RedisBackend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	root := storage.Path{FS: storage.NewRedisFS(client, "tables", 0, nil), Name: "ds"}

	s := newStore(t, CodecCBOR, CompressionZstd)
	group, err := dataset.TrainTestSplit(sampleTable(), 0.67)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, root.Join("step"), group))
	loaded, err := s.Load(ctx, root.Join("step"))
	require.NoError(t, err)
	assert.True(t, dataset.LeafEqual(group, loaded))
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Codec: "parquet"}, nil)
	assert.True(t, types.IsCode(err, types.ErrInvalidArgument))

	_, err = New(Config{Compression: "brotli"}, nil)
	assert.True(t, types.IsCode(err, types.ErrInvalidArgument))

	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Codec: "x"}.Validate())
}

func TestSave_InvalidSplitName(t *testing.T) {
	group := dataset.NewSplitGroup().Set("../escape", dataset.MustNewTable())
	err := Default().Save(context.Background(), storage.Local(t.TempDir()), group)
	assert.True(t, types.IsCode(err, types.ErrInvalidArgument))
}
