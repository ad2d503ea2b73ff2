package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records orchestrator outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	reuse    prometheus.Counter
}

// NewMetrics creates and registers the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fansite",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Session operations by outcome.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fansite",
			Subsystem: "auth",
			Name:      "operation_duration_seconds",
			Help:      "Session operation latency, password hashing included.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		reuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fansite",
			Subsystem: "auth",
			Name:      "refresh_reuse_total",
			Help:      "Refresh attempts presenting an already rotated token.",
		}),
	}

	for _, c := range []prometheus.Collector{m.ops, m.duration, m.reuse} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, resultLabel(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) reuseDetected() {
	if m == nil {
		return
	}
	m.reuse.Inc()
}
