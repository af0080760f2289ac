// Package metrics provides Prometheus metrics for the gigbook service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the gigbook service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Booking lifecycle
	transitionsApplied  *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	rollbacks           *prometheus.CounterVec
	remoteWriteLatency  *prometheus.HistogramVec

	// Reconciler cache and subscriptions
	refetches   *prometheus.CounterVec
	cachedViews prometheus.Gauge
	subscribers prometheus.Gauge

	// Store
	storeRecords *prometheus.GaugeVec
	storeLatency *prometheus.HistogramVec

	// Refetch queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Refetch workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Fan-out to redis and rabbitmq
	publishes *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gigbook",
		subsystem:        "bookings",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)
	if !m.enabled {
		// Still build collectors so recording stays nil-safe, but keep them
		// off every registry.
		auto = promauto.With(nil)
	}
	labels := prometheus.Labels(m.customLabels)

	m.transitionsApplied = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "transitions_applied_total",
		Help: "Booking transitions committed to the store, by action",
	}, []string{"action"})

	m.transitionsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "transitions_rejected_total",
		Help: "Booking transitions refused before any write, by action and reason",
	}, []string{"action", "reason"})

	m.rollbacks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "rollbacks_total",
		Help: "Optimistic local changes restored after a failed remote write",
	}, []string{"operation"})

	m.remoteWriteLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "remote_write_latency_milliseconds",
		Help:    "Latency of booking store writes issued by the reconciler",
		Buckets: m.histogramBuckets,
	}, []string{"operation", "outcome"})

	m.refetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "refetches_total",
		Help: "Venue refetches by outcome (applied, discarded, failed)",
	}, []string{"outcome"})

	m.cachedViews = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "cached_views",
		Help: "Venue views held in the reconciler cache",
	})

	m.subscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "subscribers",
		Help: "Open venue view subscriptions",
	})

	m.storeRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "store_records",
		Help: "Records held by the in-memory store, by kind",
	}, []string{"kind"})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "store_latency_milliseconds",
		Help:    "Latency of booking store operations",
		Buckets: m.histogramBuckets,
	}, []string{"driver", "operation"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "refetch_queue_size",
		Help: "Refetch jobs waiting in the queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "refetch_queue_capacity",
		Help: "Capacity of the refetch queue",
	})

	m.queueEnqueue = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "refetch_queue_enqueued_total",
		Help: "Refetch jobs enqueued",
	})

	m.queueDequeue = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "refetch_queue_dequeued_total",
		Help: "Refetch jobs dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "refetch_queue_enqueue_errors_total",
		Help: "Refetch jobs dropped because the queue was full or closed",
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "refetch_workers_active",
		Help: "Refetch workers currently running a job",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "refetch_worker_latency_milliseconds",
		Help:    "Time a worker spends on one refetch job, excluding the scheduled delay",
		Buckets: m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "refetch_worker_errors_total",
		Help: "Refetch jobs that returned an error",
	})

	m.publishes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "publishes_total",
		Help: "Messages published to downstream sinks, by sink and outcome",
	}, []string{"sink", "outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "errors_total",
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})
}

// RecordTransitionApplied counts a committed booking transition.
func RecordTransitionApplied(action string) {
	globalManager.transitionsApplied.WithLabelValues(action).Inc()
}

// RecordTransitionRejected counts a transition refused before any write.
func RecordTransitionRejected(action, reason string) {
	globalManager.transitionsRejected.WithLabelValues(action, reason).Inc()
}

// RecordRollback counts a restored optimistic change.
func RecordRollback(operation string) {
	globalManager.rollbacks.WithLabelValues(operation).Inc()
}

// RecordRemoteWriteLatency records store write latency in milliseconds.
func RecordRemoteWriteLatency(operation, outcome string, latencyMs float64) {
	globalManager.remoteWriteLatency.WithLabelValues(operation, outcome).Observe(latencyMs)
}

// RecordRefetch counts a refetch by outcome.
func RecordRefetch(outcome string) {
	globalManager.refetches.WithLabelValues(outcome).Inc()
}

// UpdateCachedViews sets the number of cached venue views.
func UpdateCachedViews(count int) {
	globalManager.cachedViews.Set(float64(count))
}

// UpdateSubscribers sets the number of open subscriptions.
func UpdateSubscribers(count int) {
	globalManager.subscribers.Set(float64(count))
}

// UpdateStoreRecords sets the record count for kind.
func UpdateStoreRecords(kind string, count int) {
	globalManager.storeRecords.WithLabelValues(kind).Set(float64(count))
}

// RecordStoreLatency records store operation latency in milliseconds.
func RecordStoreLatency(driver, operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, operation).Observe(latencyMs)
}

// UpdateQueueSize sets the current refetch queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the refetch queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records job latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordPublish counts a downstream publish.
func RecordPublish(sink, outcome string) {
	globalManager.publishes.WithLabelValues(sink, outcome).Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
