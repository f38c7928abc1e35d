package balancing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/rentledger/pkg/money"
)

// Metrics exposes balancing-integrity instruments. A nonzero remainder
// after a pass that was expected to consume its whole amount is not fatal,
// but operations needs to see it happening.
type Metrics struct {
	remainderTotal *prometheus.CounterVec
	passesTotal    *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		remainderTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentledger_balancing_remainder_total",
			Help: "Distribution passes that finished with an unplaced remainder.",
		}, []string{"kind"}),
		passesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentledger_balancing_passes_total",
			Help: "Completed balancing passes by kind.",
		}, []string{"kind"}),
	}
	if registry != nil {
		registry.MustRegister(m.remainderTotal, m.passesTotal)
	}
	return m
}

func (m *Metrics) ObservePass(kind string, remainder float64) {
	if m == nil {
		return
	}
	m.passesTotal.WithLabelValues(kind).Inc()
	if !money.IsZero(remainder) {
		m.remainderTotal.WithLabelValues(kind).Inc()
	}
}
