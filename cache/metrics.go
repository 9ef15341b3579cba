package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache traffic. Lookups are labelled by outcome:
// hit, miss or error.
type Metrics struct {
	Lookups  *prometheus.CounterVec
	Computes prometheus.Counter
	Shared   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when reg
// is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weekpi",
			Subsystem: "kpi_cache",
			Name:      "lookups_total",
			Help:      "KPI cache lookups by outcome.",
		}, []string{"outcome"}),
		Computes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weekpi",
			Subsystem: "kpi_cache",
			Name:      "computes_total",
			Help:      "KPI computations run after a miss.",
		}),
		Shared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weekpi",
			Subsystem: "kpi_cache",
			Name:      "shared_total",
			Help:      "Callers served by an in-flight computation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Lookups, m.Computes, m.Shared)
	}
	return m
}

func (m *Metrics) lookup(outcome string) {
	if m != nil {
		m.Lookups.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) computed() {
	if m != nil {
		m.Computes.Inc()
	}
}

func (m *Metrics) shared() {
	if m != nil {
		m.Shared.Inc()
	}
}
