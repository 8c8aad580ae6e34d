package metrics

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.operationsTotal)
	assert.NotNil(t, collector.operationDuration)
	assert.NotNil(t, collector.rowsTotal)
	assert.NotNil(t, collector.artifactFilesTotal)
}

func TestCollector_RecordOperation(t *testing.T) {
	collector := NewCollectorWithRegisterer(nextTestNamespace(), prometheus.NewRegistry(), nil)

	collector.RecordOperation(OpSave, nil, 100*time.Millisecond)
	collector.RecordOperation(OpSave, nil, 50*time.Millisecond)
	collector.RecordOperation(OpSave, errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.operationsTotal.WithLabelValues(OpSave, StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.operationsTotal.WithLabelValues(OpSave, StatusError)))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.operationDuration))
}

func TestCollector_RecordStep(t *testing.T) {
	collector := NewCollectorWithRegisterer(nextTestNamespace(), prometheus.NewRegistry(), nil)

	collector.RecordStep(OpLoad, 10)
	collector.RecordStep(OpLoad, 5)

	assert.Equal(t, 15.0, testutil.ToFloat64(collector.rowsTotal.WithLabelValues(OpLoad)))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.stepsTotal.WithLabelValues(OpLoad)))
}

func TestCollector_RecordArtifactCopy(t *testing.T) {
	collector := NewCollectorWithRegisterer(nextTestNamespace(), prometheus.NewRegistry(), nil)

	collector.RecordArtifactCopy(3, 1024)

	assert.Equal(t, 3.0, testutil.ToFloat64(collector.artifactFilesTotal))
	assert.Equal(t, 1024.0, testutil.ToFloat64(collector.artifactBytesTotal))
}

func TestCollector_Track(t *testing.T) {
	collector := NewCollectorWithRegisterer(nextTestNamespace(), prometheus.NewRegistry(), nil)

	done := collector.Track(OpRelocate)
	done(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.operationsTotal.WithLabelValues(OpRelocate, StatusSuccess)))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordOperation(OpSave, nil, time.Second)
		collector.RecordStep(OpSave, 1)
		collector.RecordArtifactCopy(1, 1)
		collector.Track(OpLoad)(nil)
	})
}

func TestCollector_RegistryIsolation(t *testing.T) {
	reg := prometheus.NewRegistry()
	ns := nextTestNamespace()
	NewCollectorWithRegisterer(ns, reg, nil)

	// same namespace on the same registry collides
	require.Panics(t, func() { NewCollectorWithRegisterer(ns, reg, nil) })
	// a fresh registry does not
	require.NotPanics(t, func() { NewCollectorWithRegisterer(ns, prometheus.NewRegistry(), nil) })
}
