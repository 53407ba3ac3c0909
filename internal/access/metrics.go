package access

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the access pipeline's Prometheus instruments (spec §4.1
// observability: attempts by result, reason fallback, phase timers, the
// command-emission gap counter).
type Metrics struct {
	AttemptsTotal  *prometheus.CounterVec
	ReasonFallback *prometheus.CounterVec
	CommandGap     prometheus.Counter
	PhaseDuration  *prometheus.HistogramVec
}

// NewMetrics registers the access pipeline's instruments under
// namespace access_core, subsystem pipeline.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "access_core",
			Subsystem: "pipeline",
			Name:      "attempts_total",
			Help:      "Attempts registered, tagged by result (including idempotent_hit).",
		}, []string{"result"}),
		ReasonFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "access_core",
			Subsystem: "pipeline",
			Name:      "decision_reasons_total",
			Help:      "Decision reason-code fallbacks, bucketed.",
		}, []string{"bucket"}),
		CommandGap: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "access_core",
			Subsystem: "pipeline",
			Name:      "command_emission_gap_total",
			Help:      "Engine suggested a command but command persistence failed.",
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "access_core",
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Duration of each register() phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
	}
	reg.MustRegister(m.AttemptsTotal, m.ReasonFallback, m.CommandGap, m.PhaseDuration)
	return m
}

func (m *Metrics) observePhase(phase string, seconds float64) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

func (m *Metrics) incResult(result string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) incReasonFallback(bucket string) {
	if m == nil {
		return
	}
	m.ReasonFallback.WithLabelValues(bucket).Inc()
}

func (m *Metrics) incCommandGap() {
	if m == nil {
		return
	}
	m.CommandGap.Inc()
}
