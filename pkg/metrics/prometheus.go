// Package metrics provides Prometheus metrics for the enemy scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring metrics
	observationsIngested  prometheus.Counter
	observationsDuplicate prometheus.Counter
	observationsRejected  *prometheus.CounterVec
	classifications       *prometheus.CounterVec
	scoringLatency        prometheus.Histogram
	conflictBias          *prometheus.CounterVec
	skyValue              prometheus.Histogram
	usersTotal            prometheus.Gauge

	// Bounds metrics
	boundsRefreshes  prometheus.Counter
	boundsMean       prometheus.Gauge
	boundsStd        prometheus.Gauge
	boundsLower      prometheus.Gauge
	boundsUpper      prometheus.Gauge
	boundsPopulation prometheus.Gauge
	boundsGeneration prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository metrics
	repositoryShardCount      prometheus.Gauge
	repositoryRecordsPerShard *prometheus.GaugeVec
	repositoryUpdateLatency   prometheus.Histogram
	repositoryQueryLatency    prometheus.Histogram

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Error metrics
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "enemy",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.observationsIngested = m.counter("observations_ingested_total", "Total number of observation windows applied to the session registry")
	m.observationsDuplicate = m.counter("observations_duplicate_total", "Total number of observation windows dropped as duplicates")
	m.observationsRejected = m.counterVec("observations_rejected_total", "Total number of observation windows rejected before queueing", "reason")
	m.classifications = m.counterVec("classifications_total", "Total number of classifications by attention label", "label")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Histogram of classification latency in milliseconds", m.histogramBuckets)
	m.conflictBias = m.counterVec("conflict_bias_total", "Total number of conflict bias outcomes", "outcome")
	m.skyValue = m.histogram("sky_value", "Distribution of returned sky values", prometheus.LinearBuckets(0, 0.1, 11))
	m.usersTotal = m.gauge("users_total", "Number of users with recorded features")

	m.boundsRefreshes = m.counter("bounds_refresh_total", "Total number of successful bounds refreshes")
	m.boundsMean = m.gauge("bounds_mean", "Population mean of the attentiveness value")
	m.boundsStd = m.gauge("bounds_std", "Population standard deviation of the attentiveness value")
	m.boundsLower = m.gauge("bounds_lower", "Lower classification bound")
	m.boundsUpper = m.gauge("bounds_upper", "Upper classification bound")
	m.boundsPopulation = m.gauge("bounds_population_size", "Number of users the current bounds were computed from")
	m.boundsGeneration = m.gauge("bounds_generation", "Generation of the current bounds")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryShardCount = m.gauge("repository_shard_count", "Total number of session registry shards")
	m.repositoryRecordsPerShard = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "repository_records_per_shard",
			Help:      "Number of users stored per registry shard",
		},
		[]string{"shard_id"},
	)
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Session registry write latency in milliseconds", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Session registry read latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current size of the observation queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the observation queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Observation queue utilization (0.0 to 1.0)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of observations enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of observations dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue failures")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Time an observation waited in the queue in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently applying an observation")
	m.workerIdleCount = m.gauge("worker_idle_count", "Number of idle workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Observation apply latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of observations a worker failed to apply")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordObservationIngested increments the applied observations counter.
func RecordObservationIngested() {
	globalManager.observationsIngested.Inc()
}

// RecordObservationDuplicate increments the duplicate observations counter.
func RecordObservationDuplicate() {
	globalManager.observationsDuplicate.Inc()
}

// RecordObservationRejected counts an observation refused before queueing.
func RecordObservationRejected(reason string) {
	globalManager.observationsRejected.WithLabelValues(reason).Inc()
}

// RecordClassification counts a classification by its label.
func RecordClassification(label string) {
	globalManager.classifications.WithLabelValues(label).Inc()
}

// RecordScoringLatency records classification latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordConflictBias counts a conflict bias outcome.
func RecordConflictBias(outcome string) {
	globalManager.conflictBias.WithLabelValues(outcome).Inc()
}

// ObserveSkyValue records a returned sky value.
func ObserveSkyValue(v float64) {
	globalManager.skyValue.Observe(v)
}

// UpdateUsersTotal sets the number of known users.
func UpdateUsersTotal(count int) {
	globalManager.usersTotal.Set(float64(count))
}

// RecordBoundsRefresh publishes a freshly computed set of bounds.
func RecordBoundsRefresh(mean, std, lower, upper float64, size int, generation uint64) {
	globalManager.boundsRefreshes.Inc()
	globalManager.boundsMean.Set(mean)
	globalManager.boundsStd.Set(std)
	globalManager.boundsLower.Set(lower)
	globalManager.boundsUpper.Set(upper)
	globalManager.boundsPopulation.Set(float64(size))
	globalManager.boundsGeneration.Set(float64(generation))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository Metrics Functions.

// UpdateRepositoryShardCount sets the total number of registry shards.
func UpdateRepositoryShardCount(count int) {
	globalManager.repositoryShardCount.Set(float64(count))
}

// UpdateRepositoryRecordsPerShard sets the number of users in a shard.
func UpdateRepositoryRecordsPerShard(shardID string, count int) {
	globalManager.repositoryRecordsPerShard.WithLabelValues(shardID).Set(float64(count))
}

// RecordRepositoryUpdateLatency records registry write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records registry read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long an item waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records apply latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint counts an error returned by an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry all package-level metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
