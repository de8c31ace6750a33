// Package metrics provides Prometheus metrics for the table triage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	confidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}
	latencyBuckets    = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Triage
	dossiersProcessed prometheus.Counter
	dossierDuration   prometheus.Histogram
	tablesProcessed   *prometheus.CounterVec
	tablesSkipped     *prometheus.CounterVec
	tableConfidence   prometheus.Histogram
	tableLatency      prometheus.Histogram
	gateOverrides     *prometheus.CounterVec

	// Memory layer
	memoryDecisions *prometheus.CounterVec
	memoryFaults    *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueWaitLatency   prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Review queue
	reviewQueueSize    prometheus.Gauge
	reviewQueryLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "triage",
		subsystem:        "engine",
		histogramBuckets: latencyBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.dossiersProcessed = m.counter("dossiers_processed_total", "Total number of dossiers processed")
	m.dossierDuration = m.histogram("dossier_duration_milliseconds", "Time to triage one dossier in milliseconds", m.histogramBuckets)
	m.tablesProcessed = m.counterVec("tables_processed_total", "Tables emitted as processed records by table type", "table_type")
	m.tablesSkipped = m.counterVec("tables_skipped_total", "Tables emitted as skip records by reason", "reason")
	m.tableConfidence = m.histogram("table_confidence", "Confidence of processed tables", confidenceBuckets)
	m.tableLatency = m.histogram("table_latency_milliseconds", "Per-table pipeline latency in milliseconds", m.histogramBuckets)
	m.gateOverrides = m.counterVec("gate_overrides_total", "Low-tabularity front page tables accepted by an override", "source")

	m.memoryDecisions = m.counterVec("memory_decisions_total", "Memory layer decisions by stage and outcome", "stage", "outcome")
	m.memoryFaults = m.counterVec("memory_faults_total", "Contained memory layer faults by kind", "kind")

	m.queueSize = m.gauge("queue_size", "Current number of queued dossier jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued dossier jobs")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Dossier jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Dossier jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Dossier jobs rejected by the queue")
	m.queueWaitLatency = m.histogram("queue_wait_milliseconds", "Time a job spent queued in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Configured number of dossier workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently processing a dossier")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker job failures")

	m.reviewQueueSize = m.gauge("review_queue_size", "Tables tracked by the review queue")
	m.reviewQueryLatency = m.histogram("review_query_latency_milliseconds", "Review queue read latency in milliseconds", m.histogramBuckets)

	auto := promauto.With(m.registry)
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method", ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")
}

// RecordDossierProcessed counts a dossier and observes its duration.
func RecordDossierProcessed(durationMs float64) {
	globalManager.dossiersProcessed.Inc()
	globalManager.dossierDuration.Observe(durationMs)
}

// RecordTableProcessed counts a processed table and observes its confidence.
func RecordTableProcessed(tableType string, confidence float64) {
	globalManager.tablesProcessed.WithLabelValues(tableType).Inc()
	globalManager.tableConfidence.Observe(confidence)
}

// RecordTableSkipped counts a skip record.
func RecordTableSkipped(reason string) {
	globalManager.tablesSkipped.WithLabelValues(reason).Inc()
}

// RecordTableLatency observes per-table latency.
func RecordTableLatency(latencyMs float64) {
	globalManager.tableLatency.Observe(latencyMs)
}

// RecordGateOverride counts an override; source is "gate" or "memory".
func RecordGateOverride(source string) {
	globalManager.gateOverrides.WithLabelValues(source).Inc()
}

// RecordMemoryDecision counts a memory layer decision.
func RecordMemoryDecision(stage, outcome string) {
	globalManager.memoryDecisions.WithLabelValues(stage, outcome).Inc()
}

// RecordMemoryFault counts a contained memory layer fault.
func RecordMemoryFault(kind string) {
	globalManager.memoryFaults.WithLabelValues(kind).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeued job.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueWaitLatency observes how long a job waited.
func RecordQueueWaitLatency(latencyMs float64) {
	globalManager.queueWaitLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes a job's processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateReviewQueueSize sets the number of tables awaiting review.
func UpdateReviewQueueSize(size int) {
	globalManager.reviewQueueSize.Set(float64(size))
}

// RecordReviewQueryLatency records a review queue read.
func RecordReviewQueryLatency(latencyMs float64) {
	globalManager.reviewQueryLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
