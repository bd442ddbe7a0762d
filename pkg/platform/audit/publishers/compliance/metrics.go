package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts audit writes per ledger action.
type Metrics struct {
	EventsEmitted   *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	PersistDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillproof_audit_compliance_emitted_total",
			Help: "Compliance audit events persisted, by action",
		}, []string{"action"}),
		PersistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillproof_audit_compliance_persist_failures_total",
			Help: "Compliance audit writes that failed and aborted their ledger call, by action",
		}, []string{"action"}),
		PersistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillproof_audit_compliance_persist_duration_seconds",
			Help:    "Duration of compliance audit writes",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}
