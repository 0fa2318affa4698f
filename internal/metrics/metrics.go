package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Escrow собирает счётчики переходов и проходов sweeper.
type Escrow struct {
	transitions   *prometheus.CounterVec
	sweepRecords  *prometheus.CounterVec
	sweepDuration prometheus.Histogram
}

// New регистрирует метрики в reg. Для сервера передаётся prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Escrow {
	m := &Escrow{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Count of applied lifecycle transitions by record kind, transition and actor kind.",
		}, []string{"kind", "transition", "actor"}),
		sweepRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_sweep_records_total",
			Help: "Count of records handled by the deadline sweeper by rule and result.",
		}, []string{"rule", "result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "escrow_sweep_duration_seconds",
			Help:    "Duration of one deadline sweep.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.transitions, m.sweepRecords, m.sweepDuration)
	return m
}

func (m *Escrow) Transition(kind, transition, actorKind string) {
	if m == nil {
		return
	}
	if actorKind == "" {
		actorKind = "unknown"
	}
	m.transitions.WithLabelValues(kind, transition, actorKind).Inc()
}

func (m *Escrow) SweepRecord(rule, result string) {
	if m == nil {
		return
	}
	m.sweepRecords.WithLabelValues(rule, result).Inc()
}

func (m *Escrow) SweepDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}
