// Package metrics provides Prometheus metrics for the reachyou service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Score computation modes.
const (
	ModePairwise = "pairwise"
	ModeManual   = "manual"
	ModeRanking  = "ranking"
)

// Reading outcomes.
const (
	ReadingAccepted  = "accepted"
	ReadingDuplicate = "duplicate"
	ReadingRejected  = "rejected"
	ReadingApplied   = "applied"
)

// latencyBucketsMs covers sub-millisecond scoring up to multi-second recomputes.
var latencyBucketsMs = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // bucket layout

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scoring
	computations    *prometheus.CounterVec
	rankingDuration prometheus.Histogram
	matchWrites     prometheus.Counter

	// Readings
	readings       *prometheus.CounterVec
	sensorReadTime prometheus.Histogram

	// Queue
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueue  prometheus.Counter
	queueDequeue  prometheus.Counter

	// Workers
	workerCount      prometheus.Gauge
	workerActive     prometheus.Gauge
	workerLatency    prometheus.Histogram
	workerErrorCount prometheus.Counter

	// Domain totals
	profilesTotal prometheus.Gauge
	couplesTotal  prometheus.Gauge
	ratingsTotal  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// Runtime
	systemMemory     prometheus.Gauge
	systemGoroutines prometheus.Gauge
	systemGCPause    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "reachyou",
		subsystem:        "compat",
		histogramBuckets: latencyBucketsMs,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.computations = auto.NewCounterVec(m.counterOpts("score_computations_total", "Composite scores computed, by mode"), []string{"mode"})
	m.rankingDuration = auto.NewHistogram(m.histogramOpts("ranking_duration_milliseconds", "Time to rank one subject or a whole population"))
	m.matchWrites = auto.NewCounter(m.counterOpts("fated_match_writes_total", "Per-subject fated match replacements"))

	m.readings = auto.NewCounterVec(m.counterOpts("readings_total", "Sensor readings by outcome"), []string{"outcome"})
	m.sensorReadTime = auto.NewHistogram(m.histogramOpts("sensor_read_milliseconds", "Synchronous sensor read latency"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Readings waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Reading queue capacity"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Readings enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Readings dequeued"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("workers", "Configured reading workers"))
	m.workerActive = auto.NewGauge(m.gaugeOpts("workers_active", "Workers currently applying a reading"))
	m.workerLatency = auto.NewHistogram(m.histogramOpts("worker_processing_milliseconds", "Time to apply one reading and refresh matches"))
	m.workerErrorCount = auto.NewCounter(m.counterOpts("worker_errors_total", "Readings that failed to apply"))

	m.profilesTotal = auto.NewGauge(m.gaugeOpts("profiles", "Stored profiles"))
	m.couplesTotal = auto.NewGauge(m.gaugeOpts("couples", "Registered couples"))
	m.ratingsTotal = auto.NewCounter(m.counterOpts("couple_ratings_total", "Couple ratings submitted"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by route, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total", "Errors by component and type"), []string{"component", "error_type"})

	m.systemMemory = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutines = auto.NewGauge(m.gaugeOpts("system_goroutines", "Live goroutines"))
	m.systemGCPause = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause"))
}

// RecordComputation counts one composite score computed in mode.
func RecordComputation(mode string) {
	globalManager.computations.WithLabelValues(mode).Inc()
}

// RecordComputations counts n composite scores computed in mode.
func RecordComputations(mode string, n int) {
	globalManager.computations.WithLabelValues(mode).Add(float64(n))
}

// RecordRankingDuration records how long a ranking took.
func RecordRankingDuration(latencyMs float64) {
	globalManager.rankingDuration.Observe(latencyMs)
}

// RecordMatchWrite counts one per-subject fated match replacement.
func RecordMatchWrite() {
	globalManager.matchWrites.Inc()
}

// RecordReading counts a reading by outcome.
func RecordReading(outcome string) {
	globalManager.readings.WithLabelValues(outcome).Inc()
}

// RecordSensorRead records a synchronous sensor read.
func RecordSensorRead(latencyMs float64) {
	globalManager.sensorReadTime.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
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

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerProcessingLatency records one reading's processing time.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorCount.Inc()
}

// UpdateProfilesTotal sets the stored profile count.
func UpdateProfilesTotal(count int) {
	globalManager.profilesTotal.Set(float64(count))
}

// UpdateCouplesTotal sets the registered couple count.
func UpdateCouplesTotal(count int) {
	globalManager.couplesTotal.Set(float64(count))
}

// RecordRating counts a couple rating.
func RecordRating() {
	globalManager.ratingsTotal.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemory.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutines.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPause.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
