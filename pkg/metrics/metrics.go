// Package metrics defines the Prometheus collectors for index opens and live
// queries and exposes an HTTP handler for scraping.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/bastiangx/pantry/pkg/index"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for pantry.
type Metrics struct {
	registry *prometheus.Registry

	IndexOpensTotal    *prometheus.CounterVec
	IndexOpenDuration  *prometheus.HistogramVec
	IndexTokens        prometheus.Gauge
	IndexWriteFailures prometheus.Counter
	CorpusRowsSkipped  prometheus.Counter
	QueriesTotal       *prometheus.CounterVec
	QueryLatency       *prometheus.HistogramVec
	SuggestionsCount   prometheus.Histogram
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IndexOpensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pantry_index_opens_total",
				Help: "Index opens by freshness state and source (corpus, persisted, empty).",
			},
			[]string{"state", "source"},
		),
		IndexOpenDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pantry_index_open_duration_seconds",
				Help:    "Time to load or build the index.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		IndexTokens: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pantry_index_tokens",
				Help: "Distinct tokens in the loaded index.",
			},
		),
		IndexWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pantry_index_write_failures_total",
				Help: "Freshly built indexes that could not be persisted.",
			},
		),
		CorpusRowsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pantry_corpus_rows_skipped_total",
				Help: "Corpus rows skipped as malformed during builds.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pantry_queries_total",
				Help: "Queries by kind (suggest, validate) and outcome (hit, miss, rejected).",
			},
			[]string{"kind", "outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pantry_query_latency_seconds",
				Help:    "Query latency in seconds.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
			},
			[]string{"kind"},
		),
		SuggestionsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pantry_suggestions_count",
				Help:    "Number of suggestions returned per query.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 64},
			},
		),
	}

	m.registry.MustRegister(
		m.IndexOpensTotal,
		m.IndexOpenDuration,
		m.IndexTokens,
		m.IndexWriteFailures,
		m.CorpusRowsSkipped,
		m.QueriesTotal,
		m.QueryLatency,
		m.SuggestionsCount,
	)
	return m
}

// IndexOpened records a gate open. It satisfies index.Observer.
func (m *Metrics) IndexOpened(r index.Report) {
	m.IndexOpensTotal.WithLabelValues(r.State.String(), string(r.Source)).Inc()
	m.IndexOpenDuration.WithLabelValues(string(r.Source)).Observe(r.Elapsed.Seconds())
	m.IndexTokens.Set(float64(r.Tokens))
	m.CorpusRowsSkipped.Add(float64(r.Corpus.Skipped))
	var werr *index.WriteError
	if errors.As(r.Err, &werr) {
		m.IndexWriteFailures.Inc()
	}
}

// ObserveQuery records one query of kind with its outcome and duration.
func (m *Metrics) ObserveQuery(kind, outcome string, elapsed time.Duration) {
	m.QueriesTotal.WithLabelValues(kind, outcome).Inc()
	m.QueryLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveSuggestions records how many suggestions a query returned.
func (m *Metrics) ObserveSuggestions(n int) {
	m.SuggestionsCount.Observe(float64(n))
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
