// Package metrics provides Prometheus metrics for the warranty risk service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer

	// Scoring metrics
	scoringRequests  *prometheus.CounterVec // by final label
	scoringLatency   prometheus.Histogram
	scoringFallbacks prometheus.Counter
	scoringUnknown   prometheus.Counter
	behaviourDelta   prometheus.Histogram

	// Model state: 0 unloaded, 1 ready, 2 failed
	modelState prometheus.Gauge

	// Signal reads that degraded to defaults
	signalReadFailures *prometheus.CounterVec // by signal source

	// Ingest metrics
	ingestAccepted   prometheus.Counter
	ingestDuplicates prometheus.Counter
	ingestRejected   prometheus.Counter
	ingestErrors     prometheus.Counter
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "warden",
		subsystem: "risk",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scoringRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_requests_total",
		Help:      "Scoring calls by final risk label.",
	}, []string{"label"})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_latency_ms",
		Help:      "End-to-end scoring latency in milliseconds.",
		Buckets:   prometheus.DefBuckets,
	})

	m.scoringFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_fallbacks_total",
		Help:      "Scoring calls served by the heuristic fallback path.",
	})

	m.scoringUnknown = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_unknown_total",
		Help:      "Scoring calls that returned UNKNOWN due to model unavailability.",
	})

	m.behaviourDelta = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "behaviour_delta",
		Help:      "Distribution of behaviour deltas applied to base scores.",
		Buckets:   []float64{-0.25, -0.15, -0.05, 0, 0.05, 0.15, 0.25},
	})

	m.modelState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_state",
		Help:      "Classifier state: 0 unloaded, 1 ready, 2 failed.",
	})

	m.signalReadFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "signal_read_failures_total",
		Help:      "Signal reads that degraded to defaults, by source.",
	}, []string{"source"})

	m.ingestAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "events_accepted_total",
		Help:      "Telemetry events accepted for processing.",
	})

	m.ingestDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "events_duplicate_total",
		Help:      "Telemetry events dropped as duplicates.",
	})

	m.ingestRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "events_rejected_total",
		Help:      "Telemetry events rejected due to queue backpressure.",
	})

	m.ingestErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "events_errors_total",
		Help:      "Telemetry events that failed to persist.",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_size",
		Help:      "Current number of queued telemetry events.",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_capacity",
		Help:      "Configured capacity of the telemetry queue.",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status"})
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level recording helpers against the global manager.

// RecordScoringRequest counts a completed scoring call by final label.
func RecordScoringRequest(label string) {
	globalManager.scoringRequests.WithLabelValues(label).Inc()
}

// RecordScoringLatency observes end-to-end scoring latency in milliseconds.
func RecordScoringLatency(ms float64) {
	globalManager.scoringLatency.Observe(ms)
}

// RecordScoringFallback counts a heuristic-fallback scoring outcome.
func RecordScoringFallback() {
	globalManager.scoringFallbacks.Inc()
}

// RecordScoringUnknown counts an UNKNOWN scoring outcome.
func RecordScoringUnknown() {
	globalManager.scoringUnknown.Inc()
}

// RecordBehaviourDelta observes the behaviour delta applied to a base score.
func RecordBehaviourDelta(delta float64) {
	globalManager.behaviourDelta.Observe(delta)
}

// UpdateModelState publishes the classifier state (0 unloaded, 1 ready, 2 failed).
func UpdateModelState(state float64) {
	globalManager.modelState.Set(state)
}

// RecordSignalReadFailure counts a signal read that degraded to defaults.
func RecordSignalReadFailure(source string) {
	globalManager.signalReadFailures.WithLabelValues(source).Inc()
}

// RecordIngestAccepted counts an accepted telemetry event.
func RecordIngestAccepted() { globalManager.ingestAccepted.Inc() }

// RecordIngestDuplicate counts a duplicate telemetry event.
func RecordIngestDuplicate() { globalManager.ingestDuplicates.Inc() }

// RecordIngestRejected counts a backpressure rejection.
func RecordIngestRejected() { globalManager.ingestRejected.Inc() }

// RecordIngestError counts a persistence failure.
func RecordIngestError() { globalManager.ingestErrors.Inc() }

// UpdateQueueSize publishes the current queue depth.
func UpdateQueueSize(n int) { globalManager.queueSize.Set(float64(n)) }

// UpdateQueueCapacity publishes the configured queue capacity.
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration observes HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}
