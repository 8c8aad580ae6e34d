package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/testutil"
	"github.com/BaSui01/distiset/testutil/fixtures"
)

func writeSources(t *testing.T) Sources {
	t.Helper()
	ctx := testutil.TestContext(t)
	dir := storage.Local(t.TempDir())

	pipeline := dir.Join("pipeline.yaml")
	log := dir.Join("pipeline.log")
	require.NoError(t, pipeline.WriteFile(ctx, []byte(fixtures.PipelineYAML)))
	require.NoError(t, log.WriteFile(ctx, []byte(fixtures.PipelineLog)))
	return Sources{Pipeline: &pipeline, Log: &log}
}

func TestCopy(t *testing.T) {
	tests := []struct {
		name        string
		sel         Selection
		dropLog     bool
		wantFolder  bool
		wantEntries []string
	}{
		{name: "both", sel: SelectAll(), wantFolder: true, wantEntries: []string{LogFile, PipelineFile}},
		{name: "pipeline only", sel: Selection{Pipeline: true}, wantFolder: true, wantEntries: []string{PipelineFile}},
		{name: "log source missing", sel: SelectAll(), dropLog: true, wantFolder: true, wantEntries: []string{PipelineFile}},
		{name: "nothing selected", sel: Selection{}, wantFolder: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			src := writeSources(t)
			if tt.dropLog {
				require.NoError(t, src.Log.RemoveAll(ctx))
			}
			root := storage.Local(t.TempDir())

			bundle, err := Copy(ctx, src, root, tt.sel)
			require.NoError(t, err)

			ok, err := Dir(root).Exists(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFolder, ok)
			if !tt.wantFolder {
				assert.True(t, bundle.Empty())
				return
			}

			entries, err := Dir(root).ReadDir(ctx)
			require.NoError(t, err)
			var names []string
			for _, e := range entries {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.wantEntries, names)

			require.NotNil(t, bundle.Pipeline)
			data, err := bundle.Pipeline.ReadFile(ctx)
			require.NoError(t, err)
			assert.Equal(t, fixtures.PipelineYAML, string(data))
		})
	}
}

func TestCopy_UnsetSources(t *testing.T) {
	ctx := testutil.TestContext(t)
	root := storage.Local(t.TempDir())

	bundle, err := Copy(ctx, Sources{}, root, SelectAll())
	require.NoError(t, err)
	assert.True(t, bundle.Empty())

	ok, err := Dir(root).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCopy_ToRedis(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := writeSources(t)
	_, root := testutil.RedisRoot(t, "bucket", "ds")

	bundle, err := Copy(ctx, src, root, SelectAll())
	require.NoError(t, err)
	require.NotNil(t, bundle.Log)

	found, err := Discover(ctx, root)
	require.NoError(t, err)
	require.NotNil(t, found.Pipeline)
	require.NotNil(t, found.Log)
	assert.Equal(t, bundle.Log.String(), found.Log.String())

	data, err := found.Log.ReadFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, fixtures.PipelineLog, string(data))
}

func TestDiscover_Absent(t *testing.T) {
	found, err := Discover(testutil.TestContext(t), storage.Local(t.TempDir()))
	require.NoError(t, err)
	assert.True(t, found.Empty())
}

func TestPipelineTagsAndName(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantTags []string
		wantName string
	}{
		{name: "fixture", content: fixtures.PipelineYAML, wantTags: []string{"cooking", "synthetic"}, wantName: "pipe-name"},
		{name: "dedupe and trim", content: "pipeline:\n  name: ' p '\n  tags: [a, ' a', '', b]\n", wantTags: []string{"a", "b"}, wantName: "p"},
		{name: "no tags", content: "pipeline:\n  name: p\n", wantName: "p"},
		{name: "empty file", content: ""},
		{name: "invalid yaml", content: "pipeline: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			p := storage.Local(t.TempDir()).Join(PipelineFile)
			require.NoError(t, p.WriteFile(ctx, []byte(tt.content)))

			assert.Equal(t, tt.wantTags, PipelineTags(ctx, p))
			assert.Equal(t, tt.wantName, PipelineName(ctx, p))
		})
	}
}

func TestPipelineTags_MissingFile(t *testing.T) {
	ctx := testutil.TestContext(t)
	p := storage.Local(t.TempDir()).Join("missing.yaml")

	assert.Nil(t, PipelineTags(ctx, p))
	assert.Empty(t, PipelineName(ctx, p))

	_, err := ReadPipeline(ctx, p)
	assert.ErrorIs(t, err, storage.ErrNotExist)
}
