package connection

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports registry and connection state to prometheus.
type Metrics struct {
	registered    prometheus.Gauge
	open          prometheus.Gauge
	registrations prometheus.Counter
	forceClosed   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fsconn",
			Name:      "registered_connections",
			Help:      "Number of connections currently in the registry.",
		}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fsconn",
			Name:      "open_connections",
			Help:      "Number of connections created and not yet closed.",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fsconn",
			Name:      "registrations_total",
			Help:      "Total number of connections registered.",
		}),
		forceClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fsconn",
			Name:      "force_closed_resources_total",
			Help:      "Resources still open when their file system was closed.",
		}),
	}
	for _, c := range []prometheus.Collector{m.registered, m.open, m.registrations, m.forceClosed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// The methods below accept a nil receiver so components can hold an optional
// *Metrics.

func (m *Metrics) connectionOpened() {
	if m != nil {
		m.open.Inc()
	}
}

func (m *Metrics) connectionClosed(leaked int) {
	if m != nil {
		m.open.Dec()
		m.forceClosed.Add(float64(leaked))
	}
}

func (m *Metrics) registeredConnection() {
	if m != nil {
		m.registered.Inc()
		m.registrations.Inc()
	}
}

func (m *Metrics) deregisteredConnection() {
	if m != nil {
		m.registered.Dec()
	}
}
