// Package metrics provides Prometheus metrics for the mapty workout tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the tracker.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Store
	workoutsTotal   prometheus.Gauge
	storeOperations *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec

	// Controller
	validationErrors *prometheus.CounterVec
	editConflicts    prometheus.Counter

	// Persistence
	persistenceLatency *prometheus.HistogramVec
	persistenceErrors  *prometheus.CounterVec
	persistenceCorrupt prometheus.Counter

	// Dispatch queue and dispatcher
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	dispatched       *prometheus.CounterVec
	dispatchLatency  prometheus.Histogram
	intentDuplicates prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mapty",
		subsystem:        "workouts",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.workoutsTotal = auto.NewGauge(m.gaugeOpts("total", "Number of workouts currently held by the store"))
	m.storeOperations = auto.NewCounterVec(m.counterOpts("store_operations_total", "Store operations by operation and result"),
		[]string{"op", "result"})
	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds"),
		[]string{"op"})

	m.validationErrors = auto.NewCounterVec(m.counterOpts("validation_errors_total", "Rejected form submissions by intent"),
		[]string{"intent"})
	m.editConflicts = auto.NewCounter(m.counterOpts("edit_conflicts_total", "Edit requests that had to close a previous edit first"))

	m.persistenceLatency = auto.NewHistogramVec(m.histogramOpts("persistence_latency_milliseconds", "Save and load latency in milliseconds"),
		[]string{"op"})
	m.persistenceErrors = auto.NewCounterVec(m.counterOpts("persistence_errors_total", "Failed saves and loads"),
		[]string{"op"})
	m.persistenceCorrupt = auto.NewCounter(m.counterOpts("persistence_corrupt_total", "Loads that found malformed stored data"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Intents waiting in the dispatch queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the dispatch queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Intents accepted by the dispatch queue"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Intents handed to the dispatcher"))
	m.queueRejected = auto.NewCounterVec(m.counterOpts("queue_rejected_total", "Intents refused by the dispatch queue"),
		[]string{"reason"})
	m.dispatched = auto.NewCounterVec(m.counterOpts("dispatched_total", "Handled intents by kind and result"),
		[]string{"kind", "result"})
	m.dispatchLatency = auto.NewHistogram(m.histogramOpts("dispatch_latency_milliseconds", "Time spent handling one intent"))
	m.intentDuplicates = auto.NewCounter(m.counterOpts("intent_duplicates_total", "Intents dropped as duplicates"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"})
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}
}

// Store metrics.

func UpdateWorkoutsTotal(count int) { globalManager.workoutsTotal.Set(float64(count)) }

func RecordStoreOperation(op, result string) {
	globalManager.storeOperations.WithLabelValues(op, result).Inc()
}

func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// Controller metrics.

func RecordValidationError(intent string) { globalManager.validationErrors.WithLabelValues(intent).Inc() }

func RecordEditConflict() { globalManager.editConflicts.Inc() }

// Persistence metrics.

func RecordPersistenceLatency(op string, latencyMs float64) {
	globalManager.persistenceLatency.WithLabelValues(op).Observe(latencyMs)
}

func RecordPersistenceError(op string) { globalManager.persistenceErrors.WithLabelValues(op).Inc() }

func RecordPersistenceCorrupt() { globalManager.persistenceCorrupt.Inc() }

// Queue and dispatcher metrics.

func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

func RecordQueueRejected(reason string) { globalManager.queueRejected.WithLabelValues(reason).Inc() }

func RecordDispatch(kind, result string) { globalManager.dispatched.WithLabelValues(kind, result).Inc() }

func RecordDispatchLatency(latencyMs float64) { globalManager.dispatchLatency.Observe(latencyMs) }

func RecordIntentDuplicate() { globalManager.intentDuplicates.Inc() }

// HTTP metrics.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
