package distiset

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/distiset/artifacts"
	"github.com/BaSui01/distiset/card"
	"github.com/BaSui01/distiset/dataset"
	"github.com/BaSui01/distiset/internal/metrics"
	"github.com/BaSui01/distiset/provenance"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/tablestore"
	"github.com/BaSui01/distiset/testutil"
	"github.com/BaSui01/distiset/testutil/fixtures"
	"github.com/BaSui01/distiset/types"
)

// addConfig writes a pipeline.yaml and pipeline.log below folder and points
// the distiset at them.
func addConfig(t *testing.T, d *Distiset, folder string) {
	t.Helper()
	ctx := testutil.TestContext(t)
	dir := storage.Local(folder).Join(provenance.FolderName)

	cfg := dir.Join(provenance.PipelineFile)
	log := dir.Join(provenance.LogFile)
	require.NoError(t, cfg.WriteFile(ctx, []byte(fixtures.PipelineYAML)))
	require.NoError(t, log.WriteFile(ctx, []byte(fixtures.PipelineLog)))
	d.ConfigPath, d.LogPath = &cfg, &log
}

// addArtifacts creates one empty-metadata artifact per step below folder.
func addArtifacts(t *testing.T, d *Distiset, folder string) {
	t.Helper()
	ctx := testutil.TestContext(t)
	root := storage.Local(folder).Join(artifacts.FolderName)

	m := artifacts.NewManager(artifacts.DefaultManagerConfig(), zaptest.NewLogger(t))
	for _, step := range []string{"leaf_step_1", "leaf_step_2"} {
		_, err := m.Create(ctx, root, step, "artifact", map[string]any{}, nil)
		require.NoError(t, err)
	}
	d.ArtifactsPath = &root
}

func entryNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

type saveCase struct {
	name          string
	split         bool
	withConfig    bool
	withArtifacts bool
	storageOpts   storage.Options
}

func saveCases() []saveCase {
	var out []saveCase
	for _, split := range []bool{false, true} {
		for _, withConfig := range []bool{false, true} {
			for _, withArtifacts := range []bool{false, true} {
				for _, opts := range []storage.Options{nil, {"project": "experiments"}} {
					out = append(out, saveCase{
						name:          fmt.Sprintf("split=%v/config=%v/artifacts=%v/opts=%v", split, withConfig, withArtifacts, opts != nil),
						split:         split,
						withConfig:    withConfig,
						withArtifacts: withArtifacts,
						storageOpts:   opts,
					})
				}
			}
		}
	}
	return out
}

func (c saveCase) build(t *testing.T, folder string) *Distiset {
	t.Helper()
	d := newTestDistiset(t)
	if c.split {
		var err error
		d, err = d.TrainTestSplit(0.8)
		require.NoError(t, err)
	}
	if c.withConfig {
		addConfig(t, d, folder)
	}
	if c.withArtifacts {
		addArtifacts(t, d, folder)
	}
	return d
}

// =============================================================================
// 🧪 SaveToDisk
// =============================================================================

func TestSaveToDisk_Layout(t *testing.T) {
	for _, c := range saveCases() {
		t.Run(c.name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			tmp := t.TempDir()
			folder := filepath.Join(tmp, "distiset_folder")
			another := filepath.Join(tmp, "another_distiset_folder")
			d := c.build(t, folder)

			err := d.SaveToDisk(ctx, another,
				WithCard(c.withConfig),
				WithPipelineConfig(c.withConfig),
				WithPipelineLog(c.withConfig),
				WithStorageOptions(c.storageOpts),
				WithLogger(zaptest.NewLogger(t)),
			)
			require.NoError(t, err)

			want := []string{"leaf_step_1", "leaf_step_2"}
			if c.withConfig {
				want = append(want, provenance.FolderName, ReadmeFile, CardYAMLFile)
			}
			if c.withArtifacts {
				want = append(want, artifacts.FolderName)
			}
			sort.Strings(want)
			assert.Equal(t, want, entryNames(t, another))

			if c.withConfig {
				assert.Equal(t, []string{provenance.LogFile, provenance.PipelineFile},
					entryNames(t, filepath.Join(another, provenance.FolderName)))
			}
			if c.withArtifacts {
				assert.Equal(t, []string{"leaf_step_1", "leaf_step_2"},
					entryNames(t, filepath.Join(another, artifacts.FolderName)))
				assert.FileExists(t, filepath.Join(another, artifacts.FolderName, "leaf_step_2", "artifact", artifacts.MetadataFile))
			}
		})
	}
}

func TestSaveToDisk_DefaultsWriteCardWithoutSources(t *testing.T) {
	ctx := testutil.TestContext(t)
	target := filepath.Join(t.TempDir(), "out")

	require.NoError(t, newTestDistiset(t).SaveToDisk(ctx, target))
	// nothing to bundle: no .distiset folder
	assert.Equal(t, []string{ReadmeFile, CardYAMLFile, "leaf_step_1", "leaf_step_2"}, entryNames(t, target))

	raw, err := os.ReadFile(filepath.Join(target, CardYAMLFile))
	require.NoError(t, err)
	var meta card.Metadata
	require.NoError(t, yaml.Unmarshal(raw, &meta))
	assert.Equal(t, card.Metadata{SizeCategories: "n<1K", Tags: card.BaseTags}, meta)
}

func TestSaveToDisk_TargetExists(t *testing.T) {
	ctx := testutil.TestContext(t)
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "keep.txt"), []byte("x"), 0o644))

	err := newTestDistiset(t).SaveToDisk(ctx, target)
	testutil.AssertErrorCode(t, err, types.ErrTargetExists)
	assert.FileExists(t, filepath.Join(target, "keep.txt"))

	require.NoError(t, newTestDistiset(t).SaveToDisk(ctx, target, WithOverwrite(true)))
	assert.NoFileExists(t, filepath.Join(target, "keep.txt"))
	assert.DirExists(t, filepath.Join(target, "leaf_step_1"))
}

func TestSaveToDisk_EmptyTargetReused(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, newTestDistiset(t).SaveToDisk(testutil.TestContext(t), target, WithCard(false)))
	assert.Equal(t, []string{"leaf_step_1", "leaf_step_2"}, entryNames(t, target))
}

func TestSaveToDisk_OverwriteRefusesOwnSources(t *testing.T) {
	ctx := testutil.TestContext(t)
	target := t.TempDir()
	d := newTestDistiset(t)
	addConfig(t, d, target)

	err := d.SaveToDisk(ctx, target, WithOverwrite(true))
	testutil.AssertErrorCode(t, err, types.ErrInvalidArgument)
	assert.FileExists(t, d.ConfigPath.Name)
}

func TestSaveToDisk_OverwriteRefusesOwnSourcesRelativeTarget(t *testing.T) {
	ctx := testutil.TestContext(t)
	work := t.TempDir()
	d := newTestDistiset(t)
	addConfig(t, d, filepath.Join(work, "out"))

	t.Chdir(work)
	err := d.SaveToDisk(ctx, "out", WithOverwrite(true))
	testutil.AssertErrorCode(t, err, types.ErrInvalidArgument)
	assert.FileExists(t, d.ConfigPath.Name)
	assert.FileExists(t, d.LogPath.Name)
}

func TestSaveToDisk_MissingArtifactsSource(t *testing.T) {
	ctx := testutil.TestContext(t)
	d := newTestDistiset(t)
	missing := storage.Local(t.TempDir()).Join("nope")
	d.ArtifactsPath = &missing

	err := d.SaveToDisk(ctx, filepath.Join(t.TempDir(), "out"))
	testutil.AssertErrorCode(t, err, types.ErrArtifactCopy)
}

func TestSaveToDisk_StepFailureNamesStep(t *testing.T) {
	ctx := testutil.TestContext(t)
	mixed := dataset.MustNewTable(dataset.Column{
		Name:   "image",
		Values: []any{fixtures.SolidImage(1, 1, color.RGBA{A: 255}), "not an image"},
	})
	d := newTestDistiset(t)
	require.NoError(t, d.Set("mixed", mixed))

	err := d.SaveToDisk(ctx, filepath.Join(t.TempDir(), "out"))
	testutil.AssertErrorCode(t, err, types.ErrInvalidArgument)
	e, _ := types.AsError(err)
	assert.Equal(t, "mixed", e.Step)
}

func TestSaveToDisk_Metrics(t *testing.T) {
	ctx := testutil.TestContext(t)
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegisterer("ds", reg, nil)

	require.NoError(t, newTestDistiset(t).SaveToDisk(ctx, filepath.Join(t.TempDir(), "out"), WithMetrics(collector)))

	expected := `
# HELP ds_operations_total Total number of distiset operations
# TYPE ds_operations_total counter
ds_operations_total{operation="card",status="success"} 1
ds_operations_total{operation="save",status="success"} 1
# HELP ds_rows_total Total number of rows written or read
# TYPE ds_rows_total counter
ds_rows_total{operation="save"} 7
`
	assert.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"ds_operations_total", "ds_rows_total"))
}

func TestSaveLoad_LogsRunID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := ContextWithRunID(testutil.TestContext(t), "run-42")
	target := filepath.Join(t.TempDir(), "out")

	require.NoError(t, newTestDistiset(t).SaveToDisk(ctx, target, WithLogger(logger)))
	_, err := LoadFromDisk(ctx, target, WithLoadLogger(logger))
	require.NoError(t, err)

	for _, msg := range []string{"distiset saved", "distiset loaded"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		fields := entries[0].ContextMap()
		assert.Equal(t, "run-42", fields["run_id"], msg)
		assert.Equal(t, "distiset", fields["component"], msg)
	}
}

// =============================================================================
// 🧪 LoadFromDisk
// =============================================================================

func TestLoadFromDisk_RoundTrip(t *testing.T) {
	for _, c := range saveCases() {
		t.Run(c.name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			tmp := t.TempDir()
			folder := filepath.Join(tmp, "distiset_folder")
			another := filepath.Join(tmp, "another_distiset_folder")
			d := c.build(t, folder)

			require.NoError(t, d.SaveToDisk(ctx, another,
				WithCard(c.withConfig),
				WithPipelineConfig(c.withConfig),
				WithPipelineLog(c.withConfig),
				WithStorageOptions(c.storageOpts),
			))

			loaded, err := LoadFromDisk(ctx, another, WithLoadStorageOptions(c.storageOpts))
			require.NoError(t, err)
			assert.Equal(t, []string{"leaf_step_1", "leaf_step_2"}, loaded.Steps())
			assert.Equal(t, c.split, loaded.IsSplit())

			for _, step := range d.Steps() {
				want, _ := d.Get(step)
				got, err := loaded.Get(step)
				require.NoError(t, err)
				testutil.AssertLeafEqual(t, want, got)
			}

			if c.withConfig {
				require.NotNil(t, loaded.ConfigPath)
				require.NotNil(t, loaded.LogPath)
				assert.FileExists(t, loaded.ConfigPath.Name)
				assert.FileExists(t, loaded.LogPath.Name)
			} else {
				assert.Nil(t, loaded.ConfigPath)
				assert.Nil(t, loaded.LogPath)
			}

			if c.withArtifacts {
				require.NotNil(t, loaded.ArtifactsPath)
				assert.DirExists(t, loaded.ArtifactsPath.Name)
			} else {
				assert.Nil(t, loaded.ArtifactsPath)
			}
		})
	}
}

func TestLoadFromDisk_CorruptStep(t *testing.T) {
	ctx := testutil.TestContext(t)
	target := filepath.Join(t.TempDir(), "out")
	require.NoError(t, newTestDistiset(t).SaveToDisk(ctx, target))
	require.NoError(t, os.MkdirAll(filepath.Join(target, "stray"), 0o755))

	_, err := LoadFromDisk(ctx, target)
	testutil.AssertErrorCode(t, err, types.ErrCorruptLayout)
	e, _ := types.AsError(err)
	assert.Equal(t, "stray", e.Step)
}

func TestLoadFromDisk_NotADirectory(t *testing.T) {
	ctx := testutil.TestContext(t)
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	for _, source := range []string{file, filepath.Join(t.TempDir(), "missing")} {
		_, err := LoadFromDisk(ctx, source)
		testutil.AssertErrorCode(t, err, types.ErrCorruptLayout)
	}
}

func TestLoadFromDisk_IgnoresHiddenAndFiles(t *testing.T) {
	ctx := testutil.TestContext(t)
	target := filepath.Join(t.TempDir(), "out")
	require.NoError(t, newTestDistiset(t).SaveToDisk(ctx, target))
	require.NoError(t, os.MkdirAll(filepath.Join(target, ".cache", "x"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "notes.txt"), []byte("x"), 0o644))

	loaded, err := LoadFromDisk(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestSaveLoad_Redis(t *testing.T) {
	ctx := testutil.TestContext(t)
	mr, _ := testutil.NewRedisFS(t, "unused")
	opts := testutil.RedisOptions(t, mr)

	d, err := newTestDistiset(t).TrainTestSplit(0.8)
	require.NoError(t, err)
	addConfig(t, d, t.TempDir())
	addArtifacts(t, d, t.TempDir())

	target := "redis://datasets/runs/first"
	require.NoError(t, d.SaveToDisk(ctx, target, WithStorageOptions(opts), WithRepoID("runs/first")))

	err = d.SaveToDisk(ctx, target, WithStorageOptions(opts))
	testutil.AssertErrorCode(t, err, types.ErrTargetExists)

	loaded, err := LoadFromDisk(ctx, target, WithLoadStorageOptions(opts))
	require.NoError(t, err)
	assert.True(t, loaded.IsSplit())
	require.NotNil(t, loaded.ConfigPath)
	assert.Equal(t, "redis://datasets/runs/first/.distiset/pipeline.yaml", loaded.ConfigPath.String())
	require.NotNil(t, loaded.ArtifactsPath)

	readme, err := storage.MustResolve(target+"/"+ReadmeFile, opts).ReadFile(ctx)
	require.NoError(t, err)
	parsed, err := card.Parse(string(readme))
	require.NoError(t, err)
	assert.Equal(t, []string{"synthetic", "distilabel", "rlaif", "cooking"}, parsed.Metadata.Tags)
	assert.Contains(t, parsed.Body, "# Dataset Card for first")
	assert.Contains(t, parsed.Body, "* **Step**: `leaf_step_1`")
}

func TestLoadFromDisk_DownloadDir(t *testing.T) {
	ctx := testutil.TestContext(t)
	mr, _ := testutil.NewRedisFS(t, "unused")
	opts := testutil.RedisOptions(t, mr)

	d := newTestDistiset(t)
	addConfig(t, d, t.TempDir())
	target := "redis://datasets/mirror-me"
	require.NoError(t, d.SaveToDisk(ctx, target, WithStorageOptions(opts)))

	dir := t.TempDir()
	loaded, err := LoadFromDisk(ctx, target, WithLoadStorageOptions(opts), WithDownloadDir(dir))
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())

	require.NotNil(t, loaded.ConfigPath)
	assert.False(t, loaded.ConfigPath.FS.IsRemote())
	assert.Equal(t, filepath.Join(dir, provenance.FolderName, provenance.PipelineFile), loaded.ConfigPath.Name)
	assert.FileExists(t, filepath.Join(dir, "leaf_step_1", tablestore.MetaFile))
}

// =============================================================================
// 🧪 GetCard
// =============================================================================

func TestGetCard(t *testing.T) {
	ctx := testutil.TestContext(t)
	d := newTestDistiset(t)

	c, err := d.GetCard(ctx, "repo_name_or_path")
	require.NoError(t, err)
	assert.Equal(t, card.Metadata{SizeCategories: "n<1K", Tags: []string{"synthetic", "distilabel", "rlaif"}}, c.Metadata)
	assert.Contains(t, c.Body, "was not bundled")
	assert.Contains(t, c.Body, `"b": 5`)

	addConfig(t, d, t.TempDir())
	c, err = d.GetCard(ctx, "repo_name_or_path")
	require.NoError(t, err)
	assert.Equal(t, []string{"synthetic", "distilabel", "rlaif", "cooking"}, c.Metadata.Tags)
	assert.Contains(t, c.Body, "pipeline `pipe-name`")
	assert.Contains(t, c.Body, "distilabel pipeline run")
}

func TestGetCard_SplitSize(t *testing.T) {
	ctx := testutil.TestContext(t)
	d, err := FromMap(map[string]dataset.Leaf{"big": fixtures.InstructionTable(1_500)})
	require.NoError(t, err)
	split, err := d.TrainTestSplit(0.5)
	require.NoError(t, err)

	c, err := split.GetCard(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "1K<n<10K", c.Metadata.SizeCategories)
	assert.Contains(t, c.Body, "- Splits: `train` (750) `test` (750)")
}
