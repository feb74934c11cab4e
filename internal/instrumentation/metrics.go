// Package instrumentation defines the Prometheus metrics exported by each
// of the three services.
package instrumentation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors shared across the
// coordinator, worker, and aggregator binaries. Not every field is
// populated by every binary; an unused collector simply never observes.
type Metrics struct {
	DetectionLatencyMs   prometheus.Histogram
	SequencesFoundTotal  *prometheus.CounterVec
	WorkerDispatchTotal  *prometheus.CounterVec
	WorkerRetriesTotal   prometheus.Counter
	IdempotencyHitsTotal prometheus.Counter
	AggregationErrors    *prometheus.CounterVec
	EventsProcessedTotal prometheus.Counter
}

// NewMetrics creates and registers all collectors against the default
// registry. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		DetectionLatencyMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "surveillance_detection_latency_ms",
			Help:    "Time to run a detector over one dispatch's events in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),

		SequencesFoundTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "surveillance_sequences_found_total",
			Help: "Total number of suspicious sequences detected, by algorithm",
		}, []string{"algorithm"}),

		WorkerDispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "surveillance_worker_dispatch_total",
			Help: "Total number of coordinator-to-worker dispatches, by outcome",
		}, []string{"outcome"}),

		WorkerRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "surveillance_worker_retries_total",
			Help: "Total number of worker dispatch retries issued by the coordinator",
		}),

		IdempotencyHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "surveillance_idempotency_cache_hits_total",
			Help: "Total number of worker requests served from the idempotency cache",
		}),

		AggregationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "surveillance_aggregation_errors_total",
			Help: "Total number of aggregation failures, by reason",
		}, []string{"reason"}),

		EventsProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "surveillance_events_processed_total",
			Help: "Total number of transaction events processed across all dispatches",
		}),
	}
}

func (m *Metrics) RecordDetection(latencyMs float64, algorithm string, sequencesFound int) {
	m.DetectionLatencyMs.Observe(latencyMs)
	m.SequencesFoundTotal.WithLabelValues(algorithm).Add(float64(sequencesFound))
}

func (m *Metrics) RecordDispatch(outcome string) {
	m.WorkerDispatchTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRetry() {
	m.WorkerRetriesTotal.Inc()
}

func (m *Metrics) RecordIdempotencyHit() {
	m.IdempotencyHitsTotal.Inc()
}

func (m *Metrics) RecordAggregationError(reason string) {
	m.AggregationErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordEventsProcessed(count int) {
	m.EventsProcessedTotal.Add(float64(count))
}
