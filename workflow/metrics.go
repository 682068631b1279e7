package workflow

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics exposes Prometheus-compatible counters/gauges for
// the workflow engine, namespaced "aituberflow_". Grounded on the
// teacher's graph/metrics.go (NewPrometheusMetrics(registry) +
// promauto.With(registry) factory), relabeled for this engine's own
// observable quantities:
//
//  1. active_workflows (gauge): number of currently running workflows.
//  2. queue_depth (gauge): pending items in a workflow's bounded event
//     queue. Labels: workflow_id.
//  3. queue_dropped_total (counter): cumulative BoundedEventQueue
//     drops. Labels: workflow_id.
//  4. node_latency_ms (histogram): node Execute duration in
//     milliseconds. Labels: node_type, status (success/error).
//  5. bus_emit_total (counter): EventBus.Emit calls. Labels:
//     workflow_id, event_type.
type PrometheusMetrics struct {
	activeWorkflows prometheus.Gauge
	queueDepth      *prometheus.GaugeVec
	queueDropped    *prometheus.CounterVec
	nodeLatency     *prometheus.HistogramVec
	busEmits        *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics registers all workflow-engine metrics with
// registry (use prometheus.DefaultRegisterer for the global registry,
// or a fresh prometheus.NewRegistry() for test isolation).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	pm := &PrometheusMetrics{enabled: true}

	pm.activeWorkflows = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "aituberflow",
		Name:      "active_workflows",
		Help:      "Number of workflows currently running",
	})

	pm.queueDepth = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aituberflow",
		Name:      "queue_depth",
		Help:      "Pending items in a workflow's bounded event queue",
	}, []string{"workflow_id"})

	pm.queueDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aituberflow",
		Name:      "queue_dropped_total",
		Help:      "Cumulative count of events dropped for queue capacity",
	}, []string{"workflow_id"})

	pm.nodeLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aituberflow",
		Name:      "node_latency_ms",
		Help:      "Node execute duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"node_type", "status"})

	pm.busEmits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aituberflow",
		Name:      "bus_emit_total",
		Help:      "EventBus.Emit calls",
	}, []string{"workflow_id", "event_type"})

	return pm
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

func (pm *PrometheusMetrics) workflowStarted() {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.activeWorkflows.Inc()
}

func (pm *PrometheusMetrics) workflowStopped() {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.activeWorkflows.Dec()
}

func (pm *PrometheusMetrics) setQueueDepth(workflowID string, depth int) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.queueDepth.WithLabelValues(workflowID).Set(float64(depth))
}

func (pm *PrometheusMetrics) incQueueDropped(workflowID string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.queueDropped.WithLabelValues(workflowID).Inc()
}

func (pm *PrometheusMetrics) observeNodeLatencyMs(nodeType, status string, ms float64) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.nodeLatency.WithLabelValues(nodeType, status).Observe(ms)
}

func (pm *PrometheusMetrics) incBusEmit(workflowID, eventType string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.busEmits.WithLabelValues(workflowID, eventType).Inc()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
