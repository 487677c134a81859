package code

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds session metrics. A nil *Metrics records nothing.
type Metrics struct {
	Sessions      *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Diagnostics   *prometheus.CounterVec
}

// NewMetrics creates session metrics under the toolcompile namespace.
func NewMetrics() *Metrics {
	const (
		namespace = "toolcompile"
		subsystem = "session"
	)

	return &Metrics{
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "total",
			Help:      "Count of sessions by terminal state",
		}, []string{"state"}),

		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stage_duration_seconds",
			Help:      "Histogram of time spent in each session stage",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 5, 8),
		}, []string{"stage"}),

		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "diagnostics_total",
			Help:      "Count of compiler diagnostics by code",
		}, []string{"code"}),
	}
}

// PrometheusCollectors returns the collectors to register.
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.Sessions,
		m.StageDuration,
		m.Diagnostics,
	}
}

func (m *Metrics) session(state State) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) stage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) diagnostics(diags []Diagnostic) {
	if m == nil {
		return
	}
	for _, d := range diags {
		m.Diagnostics.WithLabelValues(d.Code).Inc()
	}
}
