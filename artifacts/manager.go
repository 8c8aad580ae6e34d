package artifacts

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/BaSui01/distiset/internal/metrics"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/types"
)

// Artifact is one artifacts/<step>/<name> folder.
type Artifact struct {
	Step     string         `json:"step"`
	Name     string         `json:"name"`
	Path     storage.Path   `json:"-"`
	Metadata map[string]any `json:"metadata,omitempty"`
	// Files are the payload files relative to the artifact folder,
	// metadata.json excluded.
	Files []string `json:"files,omitempty"`
}

// ManagerConfig configures the artifact manager.
type ManagerConfig struct {
	// VerifyChecksums re-reads every relocated file and compares its
	// BLAKE3 digest with the source.
	VerifyChecksums bool `yaml:"verify_checksums" json:"verify_checksums" env:"VERIFY_CHECKSUMS"`

	// StagingDir is the parent of temporary staging directories used when
	// relocating between two remote backends. Empty means the OS temp dir.
	StagingDir string `yaml:"staging_dir" json:"staging_dir" env:"STAGING_DIR"`
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{VerifyChecksums: true}
}

// Manager handles artifact trees.
type Manager struct {
	config  ManagerConfig
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewManager creates a new artifact manager.
func NewManager(config ManagerConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config: config,
		logger: logger.With(zap.String("component", "artifact_manager")),
	}
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(c *metrics.Collector) *Manager {
	m.metrics = c
	return m
}

// =============================================================================
// create / enumerate
// =============================================================================

// Create materialises artifacts/<step>/<name> below root: every payload
// file, then metadata.json. payload keys are slash separated paths relative
// to the artifact folder.
func (m *Manager) Create(ctx context.Context, root storage.Path, step, name string, metadata map[string]any, payload map[string][]byte) (*Artifact, error) {
	if err := validateName("step", step); err != nil {
		return nil, err
	}
	if err := validateName("artifact", name); err != nil {
		return nil, err.(*types.Error).WithStep(step)
	}

	dir := root.Join(step, name)
	files := make([]string, 0, len(payload))
	for rel := range payload {
		clean := path.Clean(rel)
		if rel == "" || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." || path.IsAbs(clean) || clean == MetadataFile {
			return nil, types.Errorf(types.ErrInvalidArgument, "invalid payload file name %q", rel).
				WithStep(step).WithArtifact(name)
		}
		files = append(files, clean)
	}
	sort.Strings(files)

	for _, rel := range files {
		target := dir.Join(strings.Split(rel, "/")...)
		if err := target.WriteFile(ctx, payload[rel]); err != nil {
			return nil, types.NewError(types.ErrArtifactCopy, "cannot write artifact file").
				WithStep(step).WithArtifact(name).WithPath(target.String()).WithCause(err)
		}
	}
	if err := WriteMetadata(ctx, dir, metadata); err != nil {
		return nil, err
	}

	m.logger.Info("artifact created",
		zap.String("step", step),
		zap.String("artifact", name),
		zap.Int("files", len(files)),
	)

	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Artifact{Step: step, Name: name, Path: dir, Metadata: metadata, Files: files}, nil
}

func validateName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return types.Errorf(types.ErrInvalidArgument, "invalid %s name %q", kind, name)
	}
	return nil
}

func hidden(name string) bool { return strings.HasPrefix(name, ".") }

// List returns every step/artifact folder below root, sorted by step then
// name. Hidden entries and loose files are skipped. A missing root yields
// no artifacts.
func (m *Manager) List(ctx context.Context, root storage.Path) ([]Artifact, error) {
	ok, err := root.IsDir(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	steps, err := root.ReadDir(ctx)
	if err != nil {
		return nil, err
	}

	var out []Artifact
	for _, s := range steps {
		if !s.IsDir || hidden(s.Name) {
			continue
		}
		entries, err := root.Join(s.Name).ReadDir(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir || hidden(e.Name) {
				continue
			}
			a, err := m.describe(ctx, root, s.Name, e.Name)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Manager) describe(ctx context.Context, root storage.Path, step, name string) (Artifact, error) {
	dir := root.Join(step, name)
	meta, err := ReadMetadata(ctx, dir)
	if err != nil {
		if e, ok := types.AsError(err); ok {
			e.WithStep(step).WithArtifact(name)
		}
		return Artifact{}, err
	}

	var files []string
	err = storage.Walk(ctx, dir, func(rel string, e storage.Entry) error {
		if !e.IsDir && rel != MetadataFile {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Step: step, Name: name, Path: dir, Metadata: meta, Files: files}, nil
}

// Summary groups artifact metadata per step, as rendered on the dataset
// card: each entry is the metadata with "name" set to the artifact name.
func (m *Manager) Summary(ctx context.Context, root storage.Path) (map[string][]map[string]any, error) {
	list, err := m.List(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	out := make(map[string][]map[string]any)
	for _, a := range list {
		entry := make(map[string]any, len(a.Metadata)+1)
		for k, v := range a.Metadata {
			entry[k] = v
		}
		entry["name"] = a.Name
		out[a.Step] = append(out[a.Step], entry)
	}
	return out, nil
}

// =============================================================================
// relocate
// =============================================================================

// RelocateResult summarises a relocation.
type RelocateResult struct {
	Artifacts int
	Files     int
	Bytes     int64
	// Digests maps each copied file, relative to the artifacts root, to its
	// BLAKE3 digest.
	Digests map[string]Digest
}

// Relocate copies the whole tree at src to dst. Files inside an artifact
// folder are hashed while read and, with VerifyChecksums, re-hashed on
// dst. The first failure aborts with ARTIFACT_COPY_ERROR; files already
// copied stay.
func (m *Manager) Relocate(ctx context.Context, src, dst storage.Path) (res RelocateResult, err error) {
	ctx, span := otel.Tracer("github.com/BaSui01/distiset/artifacts").Start(ctx, "artifacts.relocate")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			attribute.Int("artifacts", res.Artifacts),
			attribute.Int("files", res.Files),
			attribute.Int64("bytes", res.Bytes),
		)
		span.End()
	}()
	done := m.metrics.Track(metrics.OpRelocate)
	defer func() { done(err) }()

	start := time.Now()
	res.Digests = make(map[string]Digest)

	ok, err := src.IsDir(ctx)
	if err != nil {
		return res, copyError(err, src).WithPath(src.String())
	}
	if !ok {
		return res, types.NewError(types.ErrArtifactCopy, "artifacts source is not a directory").WithPath(src.String())
	}
	if err := dst.MkdirAll(ctx); err != nil {
		return res, copyError(err, dst)
	}

	steps, err := src.ReadDir(ctx)
	if err != nil {
		return res, copyError(err, src)
	}
	for _, s := range steps {
		if !s.IsDir {
			if err := m.relocateLoose(ctx, src, dst, s.Name, &res); err != nil {
				return res, err
			}
			continue
		}
		entries, err := src.Join(s.Name).ReadDir(ctx)
		if err != nil {
			return res, copyError(err, src.Join(s.Name)).WithStep(s.Name)
		}
		if err := dst.Join(s.Name).MkdirAll(ctx); err != nil {
			return res, copyError(err, dst.Join(s.Name)).WithStep(s.Name)
		}
		for _, e := range entries {
			rel := s.Name + "/" + e.Name
			if !e.IsDir {
				if err := m.relocateLoose(ctx, src, dst, rel, &res); err != nil {
					return res, err.(*types.Error).WithStep(s.Name)
				}
				continue
			}
			if err := m.relocateArtifact(ctx, src, dst, s.Name, e.Name, &res); err != nil {
				return res, err
			}
		}
	}

	m.metrics.RecordArtifactCopy(res.Files, res.Bytes)
	m.logger.Info("artifacts relocated",
		zap.String("from", src.String()),
		zap.String("to", dst.String()),
		zap.Int("artifacts", res.Artifacts),
		zap.Int("files", res.Files),
		zap.Int64("bytes", res.Bytes),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (m *Manager) relocateArtifact(ctx context.Context, src, dst storage.Path, step, name string, res *RelocateResult) error {
	from := src.Join(step, name)
	to := dst.Join(step, name)

	hashers := make(map[string]*blake3.Hasher)
	stats, err := storage.CopyTree(ctx, from, to,
		storage.WithStagingDir(m.config.StagingDir),
		storage.WithTee(func(rel string) io.Writer {
			h := blake3.New()
			hashers[rel] = h
			return h
		}),
	)
	if err != nil {
		return copyError(err, from).WithStep(step).WithArtifact(name)
	}

	for rel, h := range hashers {
		want := digestOf(h)
		if m.config.VerifyChecksums {
			got, err := HashFile(ctx, to.Join(rel))
			if err != nil {
				return copyError(err, to).WithStep(step).WithArtifact(name)
			}
			if got != want {
				return types.Errorf(types.ErrArtifactCopy, "checksum mismatch for %s", rel).
					WithStep(step).WithArtifact(name).WithPath(to.String())
			}
		}
		res.Digests[path.Join(step, name, rel)] = want
	}

	res.Artifacts++
	res.Files += stats.Files
	res.Bytes += stats.Bytes
	m.logger.Debug("artifact relocated",
		zap.String("step", step),
		zap.String("artifact", name),
		zap.Int("files", stats.Files),
	)
	return nil
}

func (m *Manager) relocateLoose(ctx context.Context, src, dst storage.Path, rel string, res *RelocateResult) error {
	from, to := src.Join(rel), dst.Join(rel)
	h := blake3.New()
	n, err := storage.CopyFileTee(ctx, from, to, h)
	if err != nil {
		return copyError(err, from)
	}
	want := digestOf(h)
	if m.config.VerifyChecksums {
		got, err := HashFile(ctx, to)
		if err != nil {
			return copyError(err, to)
		}
		if got != want {
			return types.Errorf(types.ErrArtifactCopy, "checksum mismatch for %s", rel).WithPath(to.String())
		}
	}
	res.Digests[rel] = want
	res.Files++
	res.Bytes += n
	return nil
}

func copyError(err error, p storage.Path) *types.Error {
	return types.NewError(types.ErrArtifactCopy, fmt.Sprintf("cannot copy %s", p)).WithCause(err)
}
