package distiset

import (
	"go.uber.org/zap"

	"github.com/BaSui01/distiset/artifacts"
	"github.com/BaSui01/distiset/internal/metrics"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/tablestore"
)

// DefaultConcurrency bounds how many steps are written or read at once.
const DefaultConcurrency = 4

// =============================================================================
// save options
// =============================================================================

// SaveOption configures SaveToDisk.
type SaveOption func(*saveOptions)

type saveOptions struct {
	card           bool
	pipelineConfig bool
	pipelineLog    bool
	storageOptions storage.Options
	overwrite      bool
	repoID         string
	concurrency    int
	store          *tablestore.Store
	artifacts      *artifacts.Manager
	logger         *zap.Logger
	metrics        *metrics.Collector
}

func defaultSaveOptions() *saveOptions {
	return &saveOptions{
		card:           true,
		pipelineConfig: true,
		pipelineLog:    true,
		concurrency:    DefaultConcurrency,
	}
}

// WithCard toggles writing README.md and dataset_card.yaml. Default true.
func WithCard(enabled bool) SaveOption {
	return func(o *saveOptions) { o.card = enabled }
}

// WithPipelineConfig toggles bundling pipeline.yaml. Default true.
func WithPipelineConfig(enabled bool) SaveOption {
	return func(o *saveOptions) { o.pipelineConfig = enabled }
}

// WithPipelineLog toggles bundling pipeline.log. Default true.
func WithPipelineLog(enabled bool) SaveOption {
	return func(o *saveOptions) { o.pipelineLog = enabled }
}

// WithStorageOptions forwards backend options to every path resolution.
func WithStorageOptions(opts storage.Options) SaveOption {
	return func(o *saveOptions) { o.storageOptions = opts }
}

// WithOverwrite replaces a non-empty target instead of failing with
// TARGET_EXISTS.
func WithOverwrite(overwrite bool) SaveOption {
	return func(o *saveOptions) { o.overwrite = overwrite }
}

// WithRepoID sets the identifier shown on the card. Default: base name of
// the target.
func WithRepoID(id string) SaveOption {
	return func(o *saveOptions) { o.repoID = id }
}

// WithConcurrency bounds how many steps are written at once.
func WithConcurrency(n int) SaveOption {
	return func(o *saveOptions) { o.concurrency = n }
}

// WithTableStore sets the store used to write each step.
func WithTableStore(s *tablestore.Store) SaveOption {
	return func(o *saveOptions) { o.store = s }
}

// WithArtifactManager sets the manager used to relocate artifacts.
func WithArtifactManager(m *artifacts.Manager) SaveOption {
	return func(o *saveOptions) { o.artifacts = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SaveOption {
	return func(o *saveOptions) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) SaveOption {
	return func(o *saveOptions) { o.metrics = c }
}

func (o *saveOptions) complete() {
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultConcurrency
	}
	if o.store == nil {
		o.store = tablestore.Default()
	}
	if o.artifacts == nil {
		o.artifacts = artifacts.NewManager(artifacts.DefaultManagerConfig(), o.logger).WithMetrics(o.metrics)
	}
}

// =============================================================================
// load options
// =============================================================================

// LoadOption configures LoadFromDisk.
type LoadOption func(*loadOptions)

type loadOptions struct {
	storageOptions storage.Options
	downloadDir    string
	concurrency    int
	store          *tablestore.Store
	logger         *zap.Logger
	metrics        *metrics.Collector
}

// WithLoadStorageOptions forwards backend options to path resolution.
func WithLoadStorageOptions(opts storage.Options) LoadOption {
	return func(o *loadOptions) { o.storageOptions = opts }
}

// WithDownloadDir mirrors a remote source into dir before loading. The side
// pointers of the result refer to the local copy. Ignored for local sources.
func WithDownloadDir(dir string) LoadOption {
	return func(o *loadOptions) { o.downloadDir = dir }
}

// WithLoadConcurrency bounds how many steps are read at once.
func WithLoadConcurrency(n int) LoadOption {
	return func(o *loadOptions) { o.concurrency = n }
}

// WithLoadTableStore sets the store used to read each step.
func WithLoadTableStore(s *tablestore.Store) LoadOption {
	return func(o *loadOptions) { o.store = s }
}

// WithLoadLogger sets the logger.
func WithLoadLogger(l *zap.Logger) LoadOption {
	return func(o *loadOptions) { o.logger = l }
}

// WithLoadMetrics sets the metrics collector.
func WithLoadMetrics(c *metrics.Collector) LoadOption {
	return func(o *loadOptions) { o.metrics = c }
}

func newLoadOptions(opts []LoadOption) *loadOptions {
	o := &loadOptions{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultConcurrency
	}
	if o.store == nil {
		o.store = tablestore.Default()
	}
	return o
}
