package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the directory module: cache effectiveness,
// entity writes, operation latency and worker transfers.
// All methods are safe on a nil receiver so collaborators can run without metrics.
type Metrics struct {
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheErrors        *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	EntityWrites       *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	TransferBatches    *prometheus.CounterVec
	TransferredWorkers *prometheus.CounterVec
}

// New registers the directory metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_cache_hits_total",
			Help: "Result cache hits by entity kind",
		}, []string{"kind"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_cache_misses_total",
			Help: "Result cache misses by entity kind",
		}, []string{"kind"}),
		CacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_cache_errors_total",
			Help: "Result cache backend failures by operation",
		}, []string{"op"}),
		CacheInvalidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_cache_invalidations_total",
			Help: "Result cache invalidations by entity kind and scope (entity, list, all)",
		}, []string{"kind", "scope"}),
		EntityWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_entity_writes_total",
			Help: "Committed entity writes by kind and action",
		}, []string{"kind", "action"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "directory_operation_duration_seconds",
			Help:    "Duration of directory service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind", "op"}),
		TransferBatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_transfer_batches_total",
			Help: "Worker transfer batches by mode (atomic, partial) and outcome",
		}, []string{"mode", "outcome"}),
		TransferredWorkers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_transferred_workers_total",
			Help: "Workers processed by transfer batches by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordCacheHit(kind string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCacheMiss(kind string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCacheError(op string) {
	if m == nil {
		return
	}
	m.CacheErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordInvalidation(kind, scope string) {
	if m == nil {
		return
	}
	m.CacheInvalidations.WithLabelValues(kind, scope).Inc()
}

func (m *Metrics) RecordWrite(kind, action string) {
	if m == nil {
		return
	}
	m.EntityWrites.WithLabelValues(kind, action).Inc()
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(kind, op string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(kind, op).Observe(time.Since(start).Seconds())
}

// RecordTransfer records one batch and its per-worker outcomes.
func (m *Metrics) RecordTransfer(mode, outcome string, succeeded, failed int) {
	if m == nil {
		return
	}
	m.TransferBatches.WithLabelValues(mode, outcome).Inc()
	m.TransferredWorkers.WithLabelValues("succeeded").Add(float64(succeeded))
	m.TransferredWorkers.WithLabelValues("failed").Add(float64(failed))
}
