// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Operation names used as the "operation" label.
const (
	OpSave     = "save"
	OpLoad     = "load"
	OpRelocate = "relocate"
	OpCard     = "card"
	OpSplit    = "split"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器. A nil *Collector is valid and records nothing.
type Collector struct {
	// 操作指标
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	rowsTotal         *prometheus.CounterVec
	stepsTotal        *prometheus.CounterVec

	// 产物指标
	artifactFilesTotal prometheus.Counter
	artifactBytesTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器, registering on the default registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegisterer(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegisterer 创建指标收集器 on reg.
func NewCollectorWithRegisterer(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.operationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of distiset operations",
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Distiset operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	c.rowsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Total number of rows written or read",
		},
		[]string{"operation"},
	)

	c.stepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of steps written or read",
		},
		[]string{"operation"},
	)

	c.artifactFilesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_files_total",
			Help:      "Total number of artifact files relocated",
		},
	)

	c.artifactBytesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Total number of artifact bytes relocated",
		},
	)

	return c
}

// =============================================================================
// 🎯 记录方法
// =============================================================================

// RecordOperation 记录一次操作
func (c *Collector) RecordOperation(operation string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	c.operationsTotal.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStep 记录一个 step 的行数
func (c *Collector) RecordStep(operation string, rows int) {
	if c == nil {
		return
	}
	c.stepsTotal.WithLabelValues(operation).Inc()
	c.rowsTotal.WithLabelValues(operation).Add(float64(rows))
}

// RecordArtifactCopy 记录产物复制
func (c *Collector) RecordArtifactCopy(files int, bytes int64) {
	if c == nil {
		return
	}
	c.artifactFilesTotal.Add(float64(files))
	c.artifactBytesTotal.Add(float64(bytes))
}

// Track returns a func that records operation with its elapsed time. Meant
// for defer with a named error result.
func (c *Collector) Track(operation string) func(err error) {
	start := time.Now()
	return func(err error) {
		c.RecordOperation(operation, err, time.Since(start))
	}
}
