package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the bookkeeping service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	mutationsTotal    *prometheus.CounterVec
	recomputeDuration *prometheus.HistogramVec
	recomputeSkipped  *prometheus.CounterVec
	probeResults      *prometheus.CounterVec
	undosTotal        *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	storeErrors       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		mutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budg_mutations_total",
				Help: "Durable mutations by collection and outcome.",
			},
			[]string{"collection", "outcome"},
		),
		recomputeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "budg_recompute_duration_seconds",
				Help:    "Duration of derived-balance recomputations by entity kind.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		recomputeSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budg_recompute_skipped_total",
				Help: "Recomputations skipped because the parent vanished mid-operation.",
			},
			[]string{"kind"},
		),
		probeResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budg_schema_probe_results_total",
				Help: "Soft-delete capability probe results by collection and strategy.",
			},
			[]string{"collection", "strategy"},
		),
		undosTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budg_undo_total",
				Help: "Undo token applications by outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budg_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budg_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budg_store_errors_total",
				Help: "Backing-store failures surfaced during recomputation, by entity kind.",
			},
			[]string{"kind"},
		),
	}
}

// IncrMutation increments the mutation counter for a collection.
// Outcome is one of committed, failed.
func (m *Metrics) IncrMutation(collection, outcome string) {
	m.mutationsTotal.WithLabelValues(collection, outcome).Inc()
}

// RecordRecompute records the duration of one balance recomputation.
func (m *Metrics) RecordRecompute(kind string, d time.Duration) {
	m.recomputeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncrRecomputeSkipped increments the skipped-recompute counter.
func (m *Metrics) IncrRecomputeSkipped(kind string) {
	m.recomputeSkipped.WithLabelValues(kind).Inc()
}

// RecordProbe records a capability probe outcome.
func (m *Metrics) RecordProbe(collection, strategy string) {
	m.probeResults.WithLabelValues(collection, strategy).Inc()
}

// IncrUndo increments the undo counter. Outcome is one of applied, stale.
func (m *Metrics) IncrUndo(outcome string) {
	m.undosTotal.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrStoreError increments the store error counter for a balance kind.
func (m *Metrics) IncrStoreError(kind string) {
	m.storeErrors.WithLabelValues(kind).Inc()
}

// MutationCount returns the current value of the mutation counter for a
// collection/outcome pair. Used by the health endpoint snapshot.
func (m *Metrics) MutationCount(collection, outcome string) float64 {
	return getCounterValue(m.mutationsTotal, collection, outcome)
}

// getCounterValue extracts the current float64 value from a CounterVec.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	pb := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(pb); err != nil {
		return 0
	}
	if pb.Counter != nil && pb.Counter.Value != nil {
		return *pb.Counter.Value
	}
	return 0
}
