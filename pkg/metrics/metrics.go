// Package metrics defines the Prometheus collectors used by the crawler,
// indexer and query services and the Server that exposes them for scraping.
//
// The recording helpers are safe to call on a nil *Metrics so library code
// can run without a registry (tests, one-shot CLIs).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the search engine.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	PagesCrawledTotal      prometheus.Counter
	FetchFailuresTotal     *prometheus.CounterVec
	DuplicatesSkippedTotal prometheus.Counter
	FrontierSize           prometheus.Gauge

	IndexBuildsTotal       *prometheus.CounterVec
	IndexBuildDuration     prometheus.Histogram
	IndexTaskFailuresTotal *prometheus.CounterVec
	IndexedDocuments       prometheus.Gauge
	IndexedTerms           prometheus.Gauge

	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	FeedbackRoundsTotal prometheus.Counter
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in services and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PagesCrawledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_pages_crawled_total",
				Help: "Pages fetched, parsed and stored by the crawler.",
			},
		),
		FetchFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_failures_total",
				Help: "Pages skipped by the crawler, by reason (fetch, parse, store).",
			},
			[]string{"reason"},
		),
		DuplicatesSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_duplicates_skipped_total",
				Help: "Pages skipped because the same title and url were already stored.",
			},
		),
		FrontierSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_frontier_size",
				Help: "URLs waiting in the crawl frontier.",
			},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_builds_total",
				Help: "Index builds by status (success, incomplete, error).",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexer_build_duration_seconds",
				Help:    "Wall-clock duration of a full index build.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		IndexTaskFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_task_failures_total",
				Help: "Failed index tasks by phase (postings, lengths).",
			},
			[]string{"phase"},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_documents",
				Help: "Documents in the most recent successful index.",
			},
		),
		IndexedTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_terms",
				Help: "Distinct terms in the most recent successful index.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, not_ready, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		FeedbackRoundsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_feedback_rounds_total",
				Help: "Relevance feedback refinements performed.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PagesCrawledTotal,
		m.FetchFailuresTotal,
		m.DuplicatesSkippedTotal,
		m.FrontierSize,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.IndexTaskFailuresTotal,
		m.IndexedDocuments,
		m.IndexedTerms,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.FeedbackRoundsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

func (m *Metrics) PageCrawled() {
	if m == nil {
		return
	}
	m.PagesCrawledTotal.Inc()
}

func (m *Metrics) FetchFailed(reason string) {
	if m == nil {
		return
	}
	m.FetchFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) DuplicateSkipped() {
	if m == nil {
		return
	}
	m.DuplicatesSkippedTotal.Inc()
}

func (m *Metrics) SetFrontierSize(n int) {
	if m == nil {
		return
	}
	m.FrontierSize.Set(float64(n))
}

func (m *Metrics) IndexTaskFailed(phase string) {
	if m == nil {
		return
	}
	m.IndexTaskFailuresTotal.WithLabelValues(phase).Inc()
}

// IndexBuilt records the outcome of one build. Document and term gauges
// only move on success.
func (m *Metrics) IndexBuilt(status string, took time.Duration, documents, terms int) {
	if m == nil {
		return
	}
	m.IndexBuildsTotal.WithLabelValues(status).Inc()
	m.IndexBuildDuration.Observe(took.Seconds())
	if status == "success" {
		m.IndexedDocuments.Set(float64(documents))
		m.IndexedTerms.Set(float64(terms))
	}
}

func (m *Metrics) SearchServed(resultType, cacheStatus string, took time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(took.Seconds())
	m.SearchResultsCount.Observe(float64(results))
}

func (m *Metrics) FeedbackRound() {
	if m == nil {
		return
	}
	m.FeedbackRoundsTotal.Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
