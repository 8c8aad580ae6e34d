package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/BaSui01/distiset"
	"github.com/BaSui01/distiset/artifacts"
	"github.com/BaSui01/distiset/config"
	"github.com/BaSui01/distiset/internal/metrics"
	"github.com/BaSui01/distiset/internal/pool"
	"github.com/BaSui01/distiset/internal/server"
	"github.com/BaSui01/distiset/internal/telemetry"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/tablestore"
)

// commonFlags are accepted by every data subcommand.
type commonFlags struct {
	configPath     string
	storageOptions []string
	metricsAddr    string
	metricsWait    bool
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "Path to config file (YAML)")
	fs.StringArrayVar(&c.storageOptions, "storage-option", nil, "Storage backend option key=value (repeatable)")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.BoolVar(&c.metricsWait, "metrics-wait", false, "Keep serving metrics after the command until interrupted")
}

// app is the per-invocation runtime: configuration, logger, metrics and
// telemetry.
type app struct {
	cfg            *config.Config
	logger         *zap.Logger
	storageOptions storage.Options
	registry       *prometheus.Registry
	metrics        *metrics.Collector
	server         *server.Manager
	telemetry      *telemetry.Providers
	metricsWait    bool
}

func newApp(flags *commonFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.metricsAddr != "" {
		cfg.Metrics.Addr = flags.metricsAddr
	}

	opts := cfg.Storage.StorageOptions()
	for _, kv := range flags.storageOptions {
		k, v, err := config.ParseOption(kv)
		if err != nil {
			return nil, err
		}
		opts[k] = v
	}

	logger := initLogger(cfg.Log)
	storage.SetLogger(logger)

	a := &app{
		cfg:            cfg,
		logger:         logger,
		storageOptions: opts,
		metricsWait:    flags.metricsWait,
	}

	if cfg.Metrics.Enabled || cfg.Metrics.Addr != "" {
		ns := cfg.Metrics.Namespace
		if ns == "" {
			ns = config.DefaultMetricsConfig().Namespace
		}
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.NewCollectorWithRegisterer(ns, a.registry, logger)
	}
	if cfg.Metrics.Addr != "" {
		scfg := server.DefaultConfig()
		scfg.Addr = cfg.Metrics.Addr
		a.server = server.NewManager(server.MetricsHandler(a.registry), scfg, logger)
		if err := a.server.Start(); err != nil {
			return nil, err
		}
	}

	a.telemetry, err = telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	return a, nil
}

// close waits for the metrics server when asked to, then releases every
// resource held by the app.
func (a *app) close(ctx context.Context) {
	if a.server != nil && a.server.IsRunning() {
		if a.metricsWait {
			a.logger.Info("serving metrics until interrupted", zap.String("addr", a.server.Addr()))
			a.server.WaitForShutdown(ctx)
		} else if err := a.server.Shutdown(context.Background()); err != nil {
			a.logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	if err := storage.CloseAll(); err != nil {
		a.logger.Warn("closing storage backends failed", zap.Error(err))
	}
	stats := pool.ByteBufferPool.Stats()
	a.logger.Debug("buffer pool",
		zap.Int64("gets", stats.Gets),
		zap.Int64("allocations", stats.News),
		zap.Float64("hit_rate", stats.HitRate()),
	)
	_ = a.logger.Sync()
}

// saveOptions maps the configuration onto SaveToDisk options. Explicit
// command line toggles are appended by the caller and win.
func (a *app) saveOptions() ([]distiset.SaveOption, error) {
	store, err := tablestore.New(a.cfg.TableStore, a.logger)
	if err != nil {
		return nil, fmt.Errorf("table store: %w", err)
	}
	manager := artifacts.NewManager(a.cfg.Artifacts, a.logger).WithMetrics(a.metrics)

	return []distiset.SaveOption{
		distiset.WithStorageOptions(a.storageOptions),
		distiset.WithCard(a.cfg.Save.Card),
		distiset.WithPipelineConfig(a.cfg.Save.PipelineConfig),
		distiset.WithPipelineLog(a.cfg.Save.PipelineLog),
		distiset.WithOverwrite(a.cfg.Save.Overwrite),
		distiset.WithConcurrency(a.cfg.Save.Concurrency),
		distiset.WithTableStore(store),
		distiset.WithArtifactManager(manager),
		distiset.WithLogger(a.logger),
		distiset.WithMetrics(a.metrics),
	}, nil
}

func (a *app) loadOptions(downloadDir string) []distiset.LoadOption {
	opts := []distiset.LoadOption{
		distiset.WithLoadStorageOptions(a.storageOptions),
		distiset.WithLoadConcurrency(a.cfg.Save.Concurrency),
		distiset.WithLoadLogger(a.logger),
		distiset.WithLoadMetrics(a.metrics),
	}
	if downloadDir != "" {
		opts = append(opts, distiset.WithDownloadDir(downloadDir))
	}
	return opts
}
