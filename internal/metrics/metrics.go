package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Research session metrics
	ResearchSessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_sessions_started_total",
			Help: "Total number of research sessions started",
		},
	)

	ResearchSessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_sessions_completed_total",
			Help: "Total number of research sessions completed",
		},
		[]string{"status"},
	)

	ResearchSessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_session_duration_seconds",
			Help:    "End-to-end research session duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	ResearchIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_session_iterations",
			Help:    "Number of search iterations per research session",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
	)

	// Phase metrics
	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepresearch_phase_duration_seconds",
			Help:    "Phase execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	PhaseFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_phase_fallbacks_total",
			Help: "Total number of fallback structures substituted for malformed oracle output",
		},
		[]string{"phase", "reason"},
	)

	// Oracle metrics
	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_oracle_requests_total",
			Help: "Total number of oracle completion requests",
		},
		[]string{"status"},
	)

	OracleRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_oracle_request_duration_seconds",
			Help:    "Oracle completion request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Retriever metrics
	RetrieverSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_retriever_searches_total",
			Help: "Total number of retriever searches",
		},
		[]string{"status"},
	)

	RetrieverDocuments = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_retriever_documents_returned",
			Help:    "Number of documents returned per retriever search",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
		},
	)

	// Session store metrics
	StoreAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_store_appends_total",
			Help: "Total number of research results appended to the session store",
		},
		[]string{"backend", "status"},
	)

	// Streaming metrics
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deepresearch_stream_subscribers",
			Help: "Number of active event stream subscribers",
		},
	)

	StreamEventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_stream_events_published_total",
			Help: "Total number of research events published",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deepresearch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips to open",
		},
		[]string{"name"},
	)

	// Rate control metrics
	RateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_rate_limit_waits_total",
			Help: "Total number of oracle requests delayed by the rate limiter",
		},
	)
)

// RecordOracleRequest records one oracle call outcome with its duration.
func RecordOracleRequest(status string, seconds float64) {
	OracleRequests.WithLabelValues(status).Inc()
	if seconds > 0 {
		OracleRequestDuration.Observe(seconds)
	}
}

// RecordRetrieverSearch records one retriever call outcome and result size.
func RecordRetrieverSearch(status string, docs int) {
	RetrieverSearches.WithLabelValues(status).Inc()
	if status == "ok" {
		RetrieverDocuments.Observe(float64(docs))
	}
}
