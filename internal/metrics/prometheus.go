package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lunavale/rota/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Metric registration is deferred until first use so that constructing the
// collector never panics on duplicate registration in tests that share the
// default registerer.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	assignmentsTotal   prometheus.Counter
	documentsTotal     prometheus.Counter
	undoTotal          *prometheus.CounterVec
	cursorPosition     prometheus.Gauge
	rosterSize         prometheus.Gauge
	replacementsTotal  prometheus.Counter
	storeFailuresTotal *prometheus.CounterVec
	assignLatency      prometheus.Histogram
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "rota" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "rota"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.assignmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "assignments_total",
			Help:      "Total successful round-robin assignments.",
		})

		p.documentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "assigned_documents_total",
			Help:      "Total documents covered by successful assignments.",
		})

		p.undoTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "undo_total",
			Help:      "Undo attempts by result (success,cursor_moved,roster_changed,none_pending).",
		}, []string{"result"})

		p.cursorPosition = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "cursor_position",
			Help:      "Latest observed shared cursor value.",
		})

		p.rosterSize = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "roster_size",
			Help:      "Latest observed roster length.",
		})

		p.replacementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "roster_replacements_total",
			Help:      "Total completed roster replacements.",
		})

		p.storeFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "failures_total",
			Help:      "Failed store operations by op (list,read,write,increment,cas,replace,watch).",
		}, []string{"op"})

		p.assignLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "assign_latency_seconds",
			Help:      "Latency of assign round-trips including the atomic cursor advance.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms .. ~2.5s
		})

		p.reg.MustRegister(p.assignmentsTotal)
		p.reg.MustRegister(p.documentsTotal)
		p.reg.MustRegister(p.undoTotal)
		p.reg.MustRegister(p.cursorPosition)
		p.reg.MustRegister(p.rosterSize)
		p.reg.MustRegister(p.replacementsTotal)
		p.reg.MustRegister(p.storeFailuresTotal)
		p.reg.MustRegister(p.assignLatency)
	})
}

// IncrementAssignments records one successful assignment of documents docs.
func (p *PrometheusCollector) IncrementAssignments(documents int) {
	p.ensureRegistered()
	p.assignmentsTotal.Inc()
	p.documentsTotal.Add(float64(documents))
}

// IncrementUndo records an undo attempt outcome.
func (p *PrometheusCollector) IncrementUndo(result string) {
	p.ensureRegistered()
	p.undoTotal.WithLabelValues(result).Inc()
}

// SetCursorPosition records the latest observed cursor value.
func (p *PrometheusCollector) SetCursorPosition(value int) {
	p.ensureRegistered()
	p.cursorPosition.Set(float64(value))
}

// SetRosterSize records the latest observed roster length.
func (p *PrometheusCollector) SetRosterSize(size int) {
	p.ensureRegistered()
	p.rosterSize.Set(float64(size))
}

// IncrementRosterReplacements records one completed roster replacement.
func (p *PrometheusCollector) IncrementRosterReplacements() {
	p.ensureRegistered()
	p.replacementsTotal.Inc()
}

// IncrementStoreFailure records a failed store operation by name.
func (p *PrometheusCollector) IncrementStoreFailure(op string) {
	p.ensureRegistered()
	p.storeFailuresTotal.WithLabelValues(op).Inc()
}

// ObserveAssignLatency records one assign round-trip duration in seconds.
func (p *PrometheusCollector) ObserveAssignLatency(seconds float64) {
	p.ensureRegistered()
	p.assignLatency.Observe(seconds)
}
