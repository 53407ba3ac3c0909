package outbox

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the outbox dispatcher's Prometheus instruments (spec
// §4.4 Observability).
type Metrics struct {
	PendingByStatus  *prometheus.GaugeVec
	OldestPendingAge prometheus.Gauge
	OldestReadyAge   prometheus.Gauge
	Dispatched       *prometheus.CounterVec
	DLQReceived      prometheus.Counter
	ParkingReceived  prometheus.Counter
}

// NewMetrics registers the outbox instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PendingByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "access_core",
			Subsystem: "outbox",
			Name:      "rows_by_status",
			Help:      "Outbox row count by status.",
		}, []string{"status"}),
		OldestPendingAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "access_core",
			Subsystem: "outbox",
			Name:      "oldest_pending_age_seconds",
			Help:      "Age in seconds of the oldest PENDING row.",
		}),
		OldestReadyAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "access_core",
			Subsystem: "outbox",
			Name:      "oldest_ready_age_seconds",
			Help:      "Age in seconds of the oldest row ready to claim.",
		}),
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "access_core",
			Subsystem: "outbox",
			Name:      "dispatched_total",
			Help:      "Outbox rows dispatched, by outcome.",
		}, []string{"outcome"}),
		DLQReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "access_core",
			Subsystem: "outbox",
			Name:      "dlq_received_total",
			Help:      "Messages received by the DLQ consumer.",
		}),
		ParkingReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "access_core",
			Subsystem: "outbox",
			Name:      "parking_lot_received_total",
			Help:      "Messages received by the parking-lot consumer.",
		}),
	}

	reg.MustRegister(m.PendingByStatus, m.OldestPendingAge, m.OldestReadyAge, m.Dispatched, m.DLQReceived, m.ParkingReceived)
	return m
}
