package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the monitor's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// probes counts advertisement probes.
	// Labels: prefix, result (present, absent, indeterminate)
	probes *prometheus.CounterVec

	// remediations counts inject/remove attempts.
	// Labels: prefix, action (inject, remove), outcome (success, failure)
	remediations *prometheus.CounterVec

	// phase is 0 in fast-poll, 1 in slow-poll.
	phase prometheus.Gauge

	// prefixAction is 0 none, 1 injected, 2 removed.
	// Labels: prefix
	prefixAction *prometheus.GaugeVec

	// cycleDuration measures one Step including its sleeps.
	// Labels: phase
	cycleDuration *prometheus.HistogramVec

	// unexpectedErrors counts failures recovered by Run.
	unexpectedErrors prometheus.Counter
}

// NewMetrics registers the monitor collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgpwatch",
			Name:      "probe_total",
			Help:      "Advertisement probes by prefix and result",
		}, []string{"prefix", "result"}),
		remediations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgpwatch",
			Name:      "remediation_total",
			Help:      "Backup inject/remove attempts by prefix, action and outcome",
		}, []string{"prefix", "action", "outcome"}),
		phase: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "bgpwatch",
			Name:      "phase",
			Help:      "Current polling phase (0 fast, 1 slow)",
		}),
		prefixAction: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bgpwatch",
			Name:      "prefix_action",
			Help:      "Last confirmed remediation per prefix (0 none, 1 injected, 2 removed)",
		}, []string{"prefix"}),
		cycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bgpwatch",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one monitor cycle including sleeps",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		unexpectedErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bgpwatch",
			Name:      "unexpected_errors_total",
			Help:      "Unexpected errors and panics recovered by the monitor loop",
		}),
	}
}

func (m *Metrics) observeProbe(prefix, result string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(prefix, result).Inc()
}

func (m *Metrics) observeRemediation(prefix, action string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.remediations.WithLabelValues(prefix, action, outcome).Inc()
}

func (m *Metrics) setPhase(p Phase) {
	if m == nil {
		return
	}
	m.phase.Set(float64(p))
}

func (m *Metrics) setPrefixAction(prefix string, a Action) {
	if m == nil {
		return
	}
	m.prefixAction.WithLabelValues(prefix).Set(float64(a))
}

func (m *Metrics) observeCycle(p Phase, seconds float64) {
	if m == nil {
		return
	}
	m.cycleDuration.WithLabelValues(p.String()).Observe(seconds)
}

func (m *Metrics) incUnexpected() {
	if m == nil {
		return
	}
	m.unexpectedErrors.Inc()
}
