package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
)

const outcomeOK = "ok"

// Metrics provides observability for the ledger entry points and the sequencer.
type Metrics struct {
	Calls           *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec
	SkillsValidated prometheus.Counter
	BlockHeight     prometheus.Gauge
	BlockSize       prometheus.Histogram
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

// New registers the ledger metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillproof_ledger_calls_total",
			Help: "Ledger entry point calls by operation and outcome (ok or error code)",
		}, []string{"operation", "outcome"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillproof_ledger_call_duration_seconds",
			Help:    "Duration of ledger entry point calls",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		SkillsValidated: factory.NewCounter(prometheus.CounterOpts{
			Name: "skillproof_skills_validated_total",
			Help: "Skills that reached their required validation count",
		}),
		BlockHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "skillproof_block_height",
			Help: "Height of the most recently sealed block",
		}),
		BlockSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillproof_block_size",
			Help:    "Number of calls executed per block",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "skillproof_outbox_published_total",
			Help: "Audit outbox entries delivered to the event stream",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "skillproof_outbox_publish_failures_total",
			Help: "Audit outbox deliveries that failed and will be retried",
		}),
	}
}

// ObserveCall records one entry point call. Call with time.Now() taken at the start.
func (m *Metrics) ObserveCall(operation string, err error, start time.Time) {
	outcome := outcomeOK
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	m.Calls.WithLabelValues(operation, outcome).Inc()
	m.CallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncSkillsValidated() {
	m.SkillsValidated.Inc()
}

func (m *Metrics) ObserveBlock(height id.Height, size int) {
	m.BlockHeight.Set(float64(height))
	m.BlockSize.Observe(float64(size))
}

// IncPublished and IncPublishFailures satisfy the outbox worker's metrics port.
func (m *Metrics) IncPublished(n int) {
	m.OutboxPublished.Add(float64(n))
}

func (m *Metrics) IncPublishFailures() {
	m.OutboxFailures.Inc()
}
