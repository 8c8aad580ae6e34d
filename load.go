package distiset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/distiset/artifacts"
	"github.com/BaSui01/distiset/dataset"
	"github.com/BaSui01/distiset/internal/metrics"
	"github.com/BaSui01/distiset/provenance"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/types"
)

// LoadFromDisk reads a distiset written by SaveToDisk. Every visible
// subdirectory other than artifacts is a step; steps are inserted in name
// order. The pipeline config, log and artifacts are referenced, not read.
func LoadFromDisk(ctx context.Context, source string, opts ...LoadOption) (_ *Distiset, err error) {
	o := newLoadOptions(opts)
	logger := o.logger.With(zap.String("component", "distiset"))

	ctx, span := tracer().Start(ctx, "distiset.load", trace.WithAttributes(
		attribute.String("source", source),
	))
	defer func() { endSpan(span, err) }()
	logger = annotate(ctx, logger, span)
	done := o.metrics.Track(metrics.OpLoad)
	defer func() { done(err) }()

	start := time.Now()
	root, err := storage.Resolve(source, o.storageOptions)
	if err != nil {
		return nil, err
	}

	if o.downloadDir != "" && root.FS.IsRemote() {
		local, err := storage.Mirror(ctx, root, o.downloadDir)
		if err != nil {
			return nil, err
		}
		logger.Info("distiset mirrored",
			zap.String("source", root.String()),
			zap.String("dir", o.downloadDir),
		)
		root = local
	}

	ok, err := root.IsDir(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.ErrCorruptLayout, "distiset source is not a directory").WithPath(root.String())
	}

	entries, err := root.ReadDir(ctx)
	if err != nil {
		return nil, err
	}
	var steps []string
	for _, e := range entries {
		if !e.IsDir || strings.HasPrefix(e.Name, ".") || e.Name == artifacts.FolderName {
			continue
		}
		steps = append(steps, e.Name)
	}

	leaves, err := loadSteps(ctx, root, steps, o)
	if err != nil {
		return nil, err
	}

	d := New()
	for i, step := range steps {
		if err := d.Set(step, leaves[i]); err != nil {
			return nil, err
		}
	}

	bundle, err := provenance.Discover(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("discover pipeline config: %w", err)
	}
	d.ConfigPath, d.LogPath = bundle.Pipeline, bundle.Log

	artifactsDir := root.Join(artifacts.FolderName)
	if ok, err := artifactsDir.IsDir(ctx); err != nil {
		return nil, err
	} else if ok {
		d.ArtifactsPath = &artifactsDir
	}

	span.SetAttributes(attribute.Int("steps", d.Len()))
	logger.Info("distiset loaded",
		zap.String("source", root.String()),
		zap.Strings("steps", steps),
		zap.Bool("pipeline_config", d.ConfigPath != nil),
		zap.Bool("artifacts", d.ArtifactsPath != nil),
		zap.Duration("took", time.Since(start)),
	)
	return d, nil
}

func loadSteps(ctx context.Context, root storage.Path, steps []string, o *loadOptions) ([]dataset.Leaf, error) {
	leaves := make([]dataset.Leaf, len(steps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, step := range steps {
		g.Go(func() error {
			leaf, err := o.store.Load(gctx, root.Join(step))
			if err != nil {
				if e, ok := types.AsError(err); ok {
					return e.WithStep(step)
				}
				return fmt.Errorf("load step %q: %w", step, err)
			}
			leaves[i] = leaf
			o.metrics.RecordStep(metrics.OpLoad, leaf.NumRows())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return leaves, nil
}
