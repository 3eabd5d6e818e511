package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatched actions and tracks entity totals. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Applied  *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Entities *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drafter",
			Name:      "actions_applied_total",
			Help:      "Actions applied to the design state, by kind.",
		}, []string{"kind"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drafter",
			Name:      "actions_rejected_total",
			Help:      "Actions rejected by the reducer, by kind and error kind.",
		}, []string{"kind", "error"}),
		Entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "drafter",
			Name:      "entities",
			Help:      "Entities in the current design state.",
		}, []string{"entity"}),
	}
	if reg != nil {
		reg.MustRegister(m.Applied, m.Rejected, m.Entities)
	}
	return m
}

func (m *Metrics) observe(a Action, s State, err error) {
	if m == nil || a == nil {
		return
	}
	if err != nil {
		kind := string(KindOf(err))
		if kind == "" {
			kind = "other"
		}
		m.Rejected.WithLabelValues(string(a.Kind()), kind).Inc()
		return
	}
	m.Applied.WithLabelValues(string(a.Kind())).Inc()
	m.Entities.WithLabelValues("assets").Set(float64(len(s.Assets)))
	m.Entities.WithLabelValues("stages").Set(float64(len(s.Stages)))
	m.Entities.WithLabelValues("edges").Set(float64(len(s.Edges)))
	m.Entities.WithLabelValues("history").Set(float64(len(s.Actions)))
}
