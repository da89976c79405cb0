package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the worker's collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	Sweeps         prometheus.Counter
	Probes         *prometheus.CounterVec
	ProbeDuration  prometheus.Histogram
	ChecksSkipped  *prometheus.CounterVec
	Alerts         *prometheus.CounterVec
	PersistErrors  prometheus.Counter
	LogRotations   *prometheus.CounterVec
	InFlightChecks prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "sweeps_total",
			Help:      "Sweeps started",
		}),
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "probes_total",
			Help:      "Probes by resulting state and failure class",
		}, []string{"state", "failure"}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uptime",
			Name:      "probe_duration_seconds",
			Help:      "Probe wall time in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		ChecksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "checks_skipped_total",
			Help:      "Check records skipped during a sweep",
		}, []string{"reason"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "alerts_total",
			Help:      "Alert deliveries by status",
		}, []string{"status"}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "persist_errors_total",
			Help:      "Failed check record updates",
		}),
		LogRotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "log_rotations_total",
			Help:      "Log rotation runs by status",
		}, []string{"status"}),
		InFlightChecks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uptime",
			Name:      "checks_in_flight",
			Help:      "Check pipelines currently running",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Sweeps, m.Probes, m.ProbeDuration, m.ChecksSkipped,
		m.Alerts, m.PersistErrors, m.LogRotations, m.InFlightChecks,
	)
	return m
}
