package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordCacheHit("worker")
	m.RecordCacheHit("worker")
	m.RecordCacheMiss("worker")
	m.RecordInvalidation("location", "list")
	m.RecordWrite("service", "created")
	m.RecordTransfer("partial", "completed", 3, 1)
	m.ObserveOperation("worker", "get", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("worker")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("worker")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheInvalidations.WithLabelValues("location", "list")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntityWrites.WithLabelValues("service", "created")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TransferredWorkers.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransferredWorkers.WithLabelValues("failed")))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCacheHit("worker")
		m.RecordCacheError("get")
		m.RecordTransfer("atomic", "failed", 0, 1)
		m.ObserveOperation("worker", "get", time.Now())
	})
}
