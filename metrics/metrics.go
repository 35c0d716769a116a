// Package metrics bundles the Prometheus collectors for crawl and enrichment.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for crawl, enrichment and reconcile.
type Metrics struct {
	Registry            *prometheus.Registry
	PagesTotal          *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RowsAggregatedTotal prometheus.Counter
	RowsSkippedTotal    prometheus.Counter
	ChunksTotal         *prometheus.CounterVec
	RateLimitedTotal    prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
	ReconciledTotal     *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdb_pages_total",
			Help: "Listing pages processed, by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sdb_request_duration_seconds",
			Help:    "Outbound request latency, by phase.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	rowsAggregated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sdb_rows_aggregated_total",
			Help: "Listing rows folded into the aggregate.",
		},
	)
	rowsSkipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sdb_rows_skipped_total",
			Help: "Listing rows skipped because extraction failed.",
		},
	)
	chunks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdb_enrich_chunk_attempts_total",
			Help: "Metadata batch attempts, by outcome.",
		},
		[]string{"outcome"},
	)
	rateLimited := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sdb_rate_limited_total",
			Help: "Metadata batches answered with a rate limit.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdb_errors_total",
			Help: "Errors by type.",
		},
		[]string{"error_type"},
	)
	reconciled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdb_reconciled_items_total",
			Help: "Snapshot items touched by reconciliation, by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(pages, requestDuration, rowsAggregated, rowsSkipped, chunks, rateLimited, errorsTotal, reconciled)

	return &Metrics{
		Registry:            registry,
		PagesTotal:          pages,
		RequestDuration:     requestDuration,
		RowsAggregatedTotal: rowsAggregated,
		RowsSkippedTotal:    rowsSkipped,
		ChunksTotal:         chunks,
		RateLimitedTotal:    rateLimited,
		ErrorsTotal:         errorsTotal,
		ReconciledTotal:     reconciled,
	}
}

// IncPage increments the page counter for an outcome.
func (m *Metrics) IncPage(outcome string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records an outbound request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// AddRows increments the aggregated rows counter.
func (m *Metrics) AddRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsAggregatedTotal.Add(float64(n))
}

// IncRowSkipped increments the skipped rows counter.
func (m *Metrics) IncRowSkipped() {
	if m == nil {
		return
	}
	m.RowsSkippedTotal.Inc()
}

// IncChunk increments the chunk attempt counter for an outcome.
func (m *Metrics) IncChunk(outcome string) {
	if m == nil {
		return
	}
	m.ChunksTotal.WithLabelValues(outcome).Inc()
}

// IncRateLimited increments the rate limit counter.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddReconciled records how many snapshot items were adjusted or dropped.
func (m *Metrics) AddReconciled(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReconciledTotal.WithLabelValues(result).Add(float64(n))
}
