package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the server's Prometheus instruments, registered into a
// private registry so embedding callers (tests, the CLI) can run
// several servers per process without collector name collisions.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	CommandsTotal     *prometheus.CounterVec
	EvictionSweeps    prometheus.Counter
	PublishFanout     prometheus.Counter
}

// NewMetrics constructs and registers a fresh Metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "miniredis",
			Name:      "connections_active",
			Help:      "Number of currently accepted client connections.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miniredis",
			Name:      "commands_total",
			Help:      "Number of commands applied, by verb.",
		}, []string{"verb"}),
		EvictionSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "miniredis",
			Name:      "eviction_sweeps_total",
			Help:      "Number of background eviction task wakeups.",
		}),
		PublishFanout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "miniredis",
			Name:      "publish_fanout_total",
			Help:      "Number of receivers that accepted a published message, summed over all PUBLISH commands.",
		}),
	}

	reg.MustRegister(m.ConnectionsActive, m.CommandsTotal, m.EvictionSweeps, m.PublishFanout)
	return m
}
