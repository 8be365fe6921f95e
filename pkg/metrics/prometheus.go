// Package metrics provides Prometheus metrics for the courseflow analysis engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core engine metrics
	segmentsProcessed prometheus.Counter
	segmentsFailed    prometheus.Counter
	segmentsSkipped   *prometheus.CounterVec // reason: short_segment, same_event

	// Encounter/pass metrics
	encounters     *prometheus.CounterVec // kind: overtake, counterflow, co_presence
	rawPasses      prometheus.Counter
	strictPasses   prometheus.Counter
	pathRouted     *prometheus.CounterVec // path: direct, binned
	convergePoints prometheus.Counter

	// Publication metrics
	publications     prometheus.Counter
	overridesApplied prometheus.Counter
	divergences      prometheus.Counter

	// Binning metrics
	binsComputed          prometheus.Counter
	binsNoData            prometheus.Counter
	binsFlagged           *prometheus.CounterVec // severity: watch, critical
	coarseningFallbacks   prometheus.Counter
	segmentComputeLatency prometheus.Histogram

	// Input/config health
	inputErrors       prometheus.Counter
	rulebookErrors    prometheus.Counter
	runnersLoaded     prometheus.Gauge
	segmentsInCatalog prometheus.Gauge

	// Job queue metrics
	jobsEnqueued     prometheus.Counter
	jobsDequeued     prometheus.Counter
	jobEnqueueErrors prometheus.Counter
	queueDepth       prometheus.Gauge
	queueCapacity    prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "courseflow",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.segmentsProcessed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "segments_processed_total",
		Help: "Segments fully analysed (encounters + bins + flags).",
	})
	m.segmentsFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "segments_failed_total",
		Help: "Segments that ended in status=error.",
	})
	m.segmentsSkipped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "segments_skipped_total",
		Help: "Segments excluded from evaluation, by reason.",
	}, []string{"reason"})

	m.encounters = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "encounters_total",
		Help: "Classified pairwise encounters, by interaction kind.",
	}, []string{"kind"})
	m.rawPasses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "raw_passes_total",
		Help: "Encounters that met the raw overlap test.",
	})
	m.strictPasses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "strict_passes_total",
		Help: "Encounters that met the strict overlap test.",
	})
	m.pathRouted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "path_routed_total",
		Help: "Conflict-zone calculation path decisions, by path.",
	}, []string{"path"})
	m.convergePoints = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "convergence_points_total",
		Help: "Convergence points located across all segments.",
	})

	m.publications = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "publications_total",
		Help: "Publication decisions emitted.",
	})
	m.overridesApplied = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "overrides_applied_total",
		Help: "Publication decisions that went through a registered override.",
	})
	m.divergences = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "selection_divergences_total",
		Help: "Cross-check disagreements between selection paths (dev instrumentation).",
	})

	m.binsComputed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "bins_computed_total",
		Help: "Spatial-temporal bins computed.",
	})
	m.binsNoData = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "bins_no_data_total",
		Help: "Bins that failed to compute (status no_data).",
	})
	m.binsFlagged = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "bins_flagged_total",
		Help: "Bins flagged by the rulebook evaluator, by severity.",
	}, []string{"severity"})
	m.coarseningFallbacks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "coarsening_fallbacks_total",
		Help: "Wall-clock budget overruns that triggered bin coarsening.",
	})
	m.segmentComputeLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    m.metricPrefix + "segment_compute_latency_ms",
		Help:    "Per-segment compute latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})

	m.inputErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "input_errors_total",
		Help: "Malformed pace/segment input rows rejected.",
	})
	m.rulebookErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "rulebook_errors_total",
		Help: "Threshold-config failures that halted a segment.",
	})
	m.runnersLoaded = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "runners_loaded",
		Help: "Runner records in the current input snapshot.",
	})
	m.segmentsInCatalog = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "segments_in_catalog",
		Help: "Segments in the loaded catalog.",
	})

	m.jobsEnqueued = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "jobs_enqueued_total",
		Help: "Segment jobs accepted by the queue.",
	})
	m.jobsDequeued = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "jobs_dequeued_total",
		Help: "Segment jobs handed to a worker.",
	})
	m.jobEnqueueErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "job_enqueue_errors_total",
		Help: "Segment jobs rejected by the queue (full or closed).",
	})
	m.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "job_queue_depth",
		Help: "Segment jobs currently queued.",
	})
	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.metricPrefix + "job_queue_capacity",
		Help: "Configured segment job queue capacity.",
	})
}

// Registry returns the custom registry used by the global manager, for
// exposing via promhttp.
func Registry() *prometheus.Registry {
	return customRegistry
}

// Package-level record helpers operating on the global manager.

func RecordSegmentProcessed() { globalManager.segmentsProcessed.Inc() }
func RecordSegmentFailed()    { globalManager.segmentsFailed.Inc() }
func RecordSegmentSkipped(reason string) {
	globalManager.segmentsSkipped.WithLabelValues(reason).Inc()
}

func RecordEncounter(kind string) { globalManager.encounters.WithLabelValues(kind).Inc() }
func RecordRawPass()              { globalManager.rawPasses.Inc() }
func RecordStrictPass()           { globalManager.strictPasses.Inc() }
func RecordPathRouted(path string) {
	globalManager.pathRouted.WithLabelValues(path).Inc()
}
func RecordConvergencePoint() { globalManager.convergePoints.Inc() }

func RecordPublication()     { globalManager.publications.Inc() }
func RecordOverrideApplied() { globalManager.overridesApplied.Inc() }
func RecordDivergence()      { globalManager.divergences.Inc() }

func RecordBinComputed() { globalManager.binsComputed.Inc() }
func RecordBinNoData()   { globalManager.binsNoData.Inc() }
func RecordBinFlagged(severity string) {
	globalManager.binsFlagged.WithLabelValues(severity).Inc()
}
func RecordCoarseningFallback() { globalManager.coarseningFallbacks.Inc() }
func RecordSegmentComputeLatency(ms float64) {
	globalManager.segmentComputeLatency.Observe(ms)
}

func RecordInputError()    { globalManager.inputErrors.Inc() }
func RecordRulebookError() { globalManager.rulebookErrors.Inc() }
func UpdateRunnersLoaded(n int) {
	globalManager.runnersLoaded.Set(float64(n))
}
func UpdateSegmentsInCatalog(n int) {
	globalManager.segmentsInCatalog.Set(float64(n))
}

func RecordJobEnqueued()     { globalManager.jobsEnqueued.Inc() }
func RecordJobDequeued()     { globalManager.jobsDequeued.Inc() }
func RecordJobEnqueueError() { globalManager.jobEnqueueErrors.Inc() }
func UpdateQueueDepth(n int) { globalManager.queueDepth.Set(float64(n)) }
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}
