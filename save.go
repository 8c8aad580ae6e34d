package distiset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/distiset/artifacts"
	"github.com/BaSui01/distiset/internal/ctxkeys"
	"github.com/BaSui01/distiset/internal/metrics"
	"github.com/BaSui01/distiset/provenance"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/types"
)

// Root-level files written next to the step directories.
const (
	ReadmeFile   = "README.md"
	CardYAMLFile = "dataset_card.yaml"
)

const instrumentationName = "github.com/BaSui01/distiset"

func tracer() trace.Tracer { return otel.Tracer(instrumentationName) }

// ContextWithRunID tags ctx with a run id. SaveToDisk and LoadFromDisk add
// it to their log lines and spans.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return ctxkeys.WithRunID(ctx, id)
}

// annotate adds the run id and command carried by ctx to logger and span.
func annotate(ctx context.Context, logger *zap.Logger, span trace.Span) *zap.Logger {
	if id, ok := ctxkeys.RunID(ctx); ok {
		logger = logger.With(zap.String("run_id", id))
		span.SetAttributes(attribute.String("run_id", id))
	}
	if cmd, ok := ctxkeys.Command(ctx); ok {
		logger = logger.With(zap.String("command", cmd))
		span.SetAttributes(attribute.String("command", cmd))
	}
	return logger
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// SaveToDisk writes the distiset below target:
//
//	<target>/<step>/...            one directory per step
//	<target>/.distiset/...         pipeline.yaml and pipeline.log, if bundled
//	<target>/artifacts/...         relocated artifacts, if any
//	<target>/README.md             dataset card
//	<target>/dataset_card.yaml     card metadata
//
// A non-empty existing target fails with TARGET_EXISTS unless WithOverwrite
// is set.
func (d *Distiset) SaveToDisk(ctx context.Context, target string, opts ...SaveOption) (err error) {
	o := defaultSaveOptions()
	for _, opt := range opts {
		opt(o)
	}
	o.complete()
	logger := o.logger.With(zap.String("component", "distiset"))

	ctx, span := tracer().Start(ctx, "distiset.save", trace.WithAttributes(
		attribute.String("target", target),
		attribute.Int("steps", d.Len()),
	))
	defer func() { endSpan(span, err) }()
	logger = annotate(ctx, logger, span)
	done := o.metrics.Track(metrics.OpSave)
	defer func() { done(err) }()

	start := time.Now()
	root, err := storage.Resolve(target, o.storageOptions)
	if err != nil {
		return err
	}
	if err := d.prepareTarget(ctx, root, o.overwrite); err != nil {
		return err
	}

	if err := d.saveSteps(ctx, root, o); err != nil {
		return err
	}

	saved := &Distiset{steps: d.steps, leaves: d.leaves}

	bundle, err := provenance.Copy(ctx, provenance.Sources{Pipeline: d.ConfigPath, Log: d.LogPath}, root,
		provenance.Selection{Pipeline: o.pipelineConfig, Log: o.pipelineLog})
	if err != nil {
		return fmt.Errorf("bundle pipeline config: %w", err)
	}
	saved.ConfigPath, saved.LogPath = bundle.Pipeline, bundle.Log

	if d.ArtifactsPath != nil {
		dst := root.Join(artifacts.FolderName)
		res, err := o.artifacts.Relocate(ctx, *d.ArtifactsPath, dst)
		if err != nil {
			return err
		}
		saved.ArtifactsPath = &dst
		span.SetAttributes(attribute.Int("artifacts", res.Artifacts))
	}

	if o.card {
		repoID := o.repoID
		if repoID == "" {
			repoID = root.Base()
		}
		if err := saved.writeCard(ctx, root, repoID, o.metrics); err != nil {
			return err
		}
	}

	logger.Info("distiset saved",
		zap.String("target", root.String()),
		zap.Strings("steps", d.Steps()),
		zap.Bool("pipeline_config", bundle.Pipeline != nil),
		zap.Bool("pipeline_log", bundle.Log != nil),
		zap.Bool("artifacts", saved.ArtifactsPath != nil),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// prepareTarget applies the collision policy and creates root.
func (d *Distiset) prepareTarget(ctx context.Context, root storage.Path, overwrite bool) error {
	info, err := root.Stat(ctx)
	switch {
	case errors.Is(err, storage.ErrNotExist):
		return root.MkdirAll(ctx)
	case err != nil:
		return err
	}

	if info.IsDir {
		entries, err := root.ReadDir(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
	}

	if !overwrite {
		return types.NewError(types.ErrTargetExists, "save target already exists").WithPath(root.String())
	}
	for _, p := range []*storage.Path{d.ConfigPath, d.LogPath, d.ArtifactsPath} {
		if p != nil && root.Contains(*p) {
			return types.NewError(types.ErrInvalidArgument, "cannot overwrite a target holding the distiset's own sources").
				WithPath(p.String())
		}
	}
	if err := root.RemoveAll(ctx); err != nil {
		return fmt.Errorf("remove existing target: %w", err)
	}
	return root.MkdirAll(ctx)
}

func (d *Distiset) saveSteps(ctx context.Context, root storage.Path, o *saveOptions) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, step := range d.steps {
		leaf := d.leaves[step]
		g.Go(func() error {
			if err := o.store.Save(gctx, root.Join(step), leaf); err != nil {
				if e, ok := types.AsError(err); ok {
					return e.WithStep(step)
				}
				return fmt.Errorf("save step %q: %w", step, err)
			}
			o.metrics.RecordStep(metrics.OpSave, leaf.NumRows())
			return nil
		})
	}
	return g.Wait()
}

func (d *Distiset) writeCard(ctx context.Context, root storage.Path, repoID string, m *metrics.Collector) (err error) {
	done := m.Track(metrics.OpCard)
	defer func() { done(err) }()

	c, err := d.GetCard(ctx, repoID)
	if err != nil {
		return err
	}
	if err := root.Join(ReadmeFile).WriteFile(ctx, []byte(c.String())); err != nil {
		return fmt.Errorf("write dataset card: %w", err)
	}
	header, err := c.Metadata.YAML()
	if err != nil {
		return err
	}
	if err := root.Join(CardYAMLFile).WriteFile(ctx, []byte(header)); err != nil {
		return fmt.Errorf("write dataset card metadata: %w", err)
	}
	return nil
}
