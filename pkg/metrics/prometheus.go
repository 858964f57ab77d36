// Package metrics provides Prometheus metrics for the planet evolution engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Connection / fanout metrics
	liveConnections prometheus.Gauge
	wsMessages      *prometheus.CounterVec
	sendDrops       prometheus.Counter

	// Session metrics
	openSessions    prometheus.Gauge
	sessionsStarted prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	samplesTotal    prometheus.Counter

	// Scoring / analyzer metrics
	analyzerFallbacks prometheus.Counter
	analyzerLatency   prometheus.Histogram

	// Evolution metrics
	evolutionEvents  prometheus.Counter
	stageTransitions *prometheus.CounterVec
	achievements     *prometheus.CounterVec
	applyLatency     prometheus.Histogram
	trackedPlanets   prometheus.Gauge

	// Persistence queue metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueErrors      *prometheus.CounterVec

	// Persistence worker metrics
	workerCount    prometheus.Gauge
	persistJobs    *prometheus.CounterVec
	persistRetries prometheus.Counter
	persistDrops   prometheus.Counter
	persistLatency prometheus.Histogram

	// Repository snapshot metrics
	snapshotRebuilds prometheus.Counter
	snapshotDuration prometheus.Histogram
	snapshotLastUnix prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemory     prometheus.Gauge
	systemGoroutines prometheus.Gauge
	systemGCPause    prometheus.Histogram
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
		namespace:        "forge",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.liveConnections = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "live_connections",
		Help: "Number of currently connected clients.",
	})
	m.wsMessages = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ws_messages_total",
		Help: "WebSocket messages received, by type.",
	}, []string{"type"})
	m.sendDrops = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "send_drops_total",
		Help: "Messages dropped because the client transport failed.",
	})

	m.openSessions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "open_sessions",
		Help: "Number of currently open coding sessions.",
	})
	m.sessionsStarted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_started_total",
		Help: "Coding sessions started.",
	})
	m.sessionsClosed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_closed_total",
		Help: "Coding sessions closed, by reason.",
	}, []string{"reason"})
	m.samplesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "samples_processed_total",
		Help: "Behavioral metric samples processed.",
	})

	m.analyzerFallbacks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "analyzer_fallbacks_total",
		Help: "Analyses served by the heuristic because the analyzer failed.",
	})
	m.analyzerLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "analyzer_latency_ms",
		Help:    "External analyzer call latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})

	m.evolutionEvents = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "evolution_events_total",
		Help: "Evolution events recorded.",
	})
	m.stageTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "stage_transitions_total",
		Help: "Planet stage transitions, by new stage.",
	}, []string{"stage"})
	m.achievements = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "achievements_total",
		Help: "Achievements unlocked, by achievement id.",
	}, []string{"id"})
	m.applyLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "apply_latency_ms",
		Help:    "Delta application latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.trackedPlanets = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "tracked_planets",
		Help: "Number of planets tracked by the store.",
	})

	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_queue_size",
		Help: "Current number of queued persistence jobs.",
	})
	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_queue_capacity",
		Help: "Capacity of the persistence queue.",
	})
	m.queueUtilization = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_queue_utilization",
		Help: "Persistence queue utilization ratio (0-1).",
	})
	m.queueEnqueues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_enqueues_total",
		Help: "Persistence jobs enqueued.",
	})
	m.queueDequeues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_dequeues_total",
		Help: "Persistence jobs dequeued.",
	})
	m.queueErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_enqueue_errors_total",
		Help: "Persistence enqueue failures, by reason.",
	}, []string{"reason"})

	m.workerCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_workers",
		Help: "Number of persistence workers.",
	})
	m.persistJobs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_jobs_total",
		Help: "Persistence jobs completed, by kind.",
	}, []string{"kind"})
	m.persistRetries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_retries_total",
		Help: "Persistence job retries.",
	})
	m.persistDrops = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "persist_drops_total",
		Help: "Persistence jobs dropped after exhausting retries.",
	})
	m.persistLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "persist_latency_ms",
		Help:    "Persistence job latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})

	m.snapshotRebuilds = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_snapshot_rebuilds_total",
		Help: "Store listing snapshot rebuilds.",
	})
	m.snapshotDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_snapshot_rebuild_ms",
		Help:    "Store snapshot rebuild duration in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.snapshotLastUnix = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_snapshot_last_unix",
		Help: "Unix timestamp of the last snapshot rebuild.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests, by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.errorsByComponent = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Errors, by component and reason.",
	}, []string{"component", "reason"})

	m.systemMemory = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_memory_bytes",
		Help: "Allocated heap memory in bytes.",
	})
	m.systemGoroutines = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_goroutines",
		Help: "Number of live goroutines.",
	})
	m.systemGCPause = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "system_gc_pause_ms",
		Help:    "Average GC pause time in milliseconds.",
		Buckets: m.histogramBuckets,
	})

	return m
}

// GetRegistry returns the custom Prometheus registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Connection / fanout.
func UpdateLiveConnections(n int) { globalManager.liveConnections.Set(float64(n)) }
func RecordWSMessage(msgType string) {
	globalManager.wsMessages.WithLabelValues(msgType).Inc()
}
func RecordSendDrop() { globalManager.sendDrops.Inc() }

// Sessions.
func UpdateOpenSessions(n int) { globalManager.openSessions.Set(float64(n)) }
func RecordSessionStarted()    { globalManager.sessionsStarted.Inc() }
func RecordSessionClosed(reason string) {
	globalManager.sessionsClosed.WithLabelValues(reason).Inc()
}
func RecordSampleProcessed() { globalManager.samplesTotal.Inc() }

// Scoring / analyzer.
func RecordAnalyzerFallback()          { globalManager.analyzerFallbacks.Inc() }
func RecordAnalyzerLatency(ms float64) { globalManager.analyzerLatency.Observe(ms) }

// Evolution.
func RecordEvolutionEvent() { globalManager.evolutionEvents.Inc() }
func RecordStageTransition(stage string) {
	globalManager.stageTransitions.WithLabelValues(stage).Inc()
}
func RecordAchievement(id string)   { globalManager.achievements.WithLabelValues(id).Inc() }
func RecordApplyLatency(ms float64) { globalManager.applyLatency.Observe(ms) }
func UpdateTrackedPlanets(n int)    { globalManager.trackedPlanets.Set(float64(n)) }

// Persistence queue.
func UpdateQueueSize(n int)            { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int)        { globalManager.queueCapacity.Set(float64(n)) }
func UpdateQueueUtilization(u float64) { globalManager.queueUtilization.Set(u) }
func RecordQueueEnqueue()              { globalManager.queueEnqueues.Inc() }
func RecordQueueDequeue()              { globalManager.queueDequeues.Inc() }
func RecordQueueEnqueueError(reason string) {
	globalManager.queueErrors.WithLabelValues(reason).Inc()
}

// Persistence workers.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }
func RecordPersistJob(kind string) {
	globalManager.persistJobs.WithLabelValues(kind).Inc()
}
func RecordPersistRetry()             { globalManager.persistRetries.Inc() }
func RecordPersistDrop()              { globalManager.persistDrops.Inc() }
func RecordPersistLatency(ms float64) { globalManager.persistLatency.Observe(ms) }

// Store snapshots.
func RecordSnapshotRebuild(durationMs float64) {
	globalManager.snapshotRebuilds.Inc()
	globalManager.snapshotDuration.Observe(durationMs)
}
func UpdateSnapshotLastUnix(ts float64) { globalManager.snapshotLastUnix.Set(ts) }

// HTTP.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// Errors.
func RecordErrorByComponent(component, reason string) {
	globalManager.errorsByComponent.WithLabelValues(component, reason).Inc()
}

// System.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemory.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { globalManager.systemGoroutines.Set(float64(n)) }
func RecordSystemGCPauseTime(ms float64)   { globalManager.systemGCPause.Observe(ms) }
