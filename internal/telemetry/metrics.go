// Package telemetry provides Prometheus metrics and in-memory query
// statistics for the snippet index. Nothing is reported externally; metrics
// are only served when an address is configured.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codesnip"

// Result types for search_queries_total.
const (
	ResultHit        = "hit"
	ResultZeroResult = "zero_result"
	ResultError      = "error"
)

// Metrics holds the Prometheus collectors. All methods are safe on a nil
// receiver so callers can leave metrics disabled.
type Metrics struct {
	registry *prometheus.Registry

	IndexOperationsTotal *prometheus.CounterVec
	IndexDuration        prometheus.Histogram
	ChunksIndexedTotal   prometheus.Counter
	EvictionsTotal       prometheus.Counter
	EvictedChunksTotal   prometheus.Counter
	IndexedChunks        prometheus.Gauge
	IndexedDocuments     prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        prometheus.Histogram
	SearchResultsCount   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IndexOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_operations_total",
				Help:      "Total document range index operations by status.",
			},
			[]string{"status"},
		),
		IndexDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_duration_seconds",
				Help:      "Latency of a document range index operation, eviction included.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		ChunksIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_indexed_total",
				Help:      "Total chunks inserted into the engine.",
			},
		),
		EvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evictions_total",
				Help:      "Total documents evicted to stay within capacity.",
			},
		),
		EvictedChunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evicted_chunks_total",
				Help:      "Total chunks removed by eviction.",
			},
		),
		IndexedChunks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "indexed_chunks",
				Help:      "Chunks currently in the engine.",
			},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "indexed_documents",
				Help:      "Documents currently tracked by the range index.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Search latency in seconds.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Number of results returned per search query.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
	}

	m.registry.MustRegister(
		m.IndexOperationsTotal,
		m.IndexDuration,
		m.ChunksIndexedTotal,
		m.EvictionsTotal,
		m.EvictedChunksTotal,
		m.IndexedChunks,
		m.IndexedDocuments,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordIndex records one index operation.
func (m *Metrics) RecordIndex(d time.Duration, chunks int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.IndexOperationsTotal.WithLabelValues(status).Inc()
	m.IndexDuration.Observe(d.Seconds())
	if err == nil {
		m.ChunksIndexedTotal.Add(float64(chunks))
	}
}

// RecordEviction records one evicted document.
func (m *Metrics) RecordEviction(chunks int) {
	if m == nil {
		return
	}
	m.EvictionsTotal.Inc()
	m.EvictedChunksTotal.Add(float64(chunks))
}

// SetIndexSize updates the size gauges.
func (m *Metrics) SetIndexSize(documents, chunks int) {
	if m == nil {
		return
	}
	m.IndexedDocuments.Set(float64(documents))
	m.IndexedChunks.Set(float64(chunks))
}

// RecordSearch records one search.
func (m *Metrics) RecordSearch(d time.Duration, results int, err error) {
	if m == nil {
		return
	}
	resultType := ResultHit
	switch {
	case err != nil:
		resultType = ResultError
	case results == 0:
		resultType = ResultZeroResult
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.Observe(d.Seconds())
	if err == nil {
		m.SearchResultsCount.Observe(float64(results))
	}
}
