package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	core "taskmarket-backend/core/marketplace"
)

// Metrics exposes marketplace transition counters and fund gauges.
type Metrics struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	settledSats *prometheus.CounterVec
	treasury    prometheus.Gauge
}

// New builds a self-contained metrics registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_transitions_total",
			Help: "Marketplace state transitions by event type.",
		}, []string{"event"}),
		settledSats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_settled_sats_total",
			Help: "Value moved at settlement by event type.",
		}, []string{"event"}),
		treasury: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketplace_treasury_sats",
			Help: "Accumulated forfeited stake held by the treasury.",
		}),
	}
	registry.MustRegister(m.transitions, m.settledSats, m.treasury)
	return m
}

// Observe registers the metrics as an event sink on the engine.
func (m *Metrics) Observe(engine *core.Engine) {
	engine.RegisterEventSink(func(evt core.Event) {
		m.transitions.WithLabelValues(string(evt.Type)).Inc()
		switch evt.Type {
		case core.EventTaskCompleted, core.EventStakeReleased, core.EventStakeForfeited:
			m.settledSats.WithLabelValues(string(evt.Type)).Add(float64(evt.AmountSats))
		}
		if evt.Type == core.EventStakeForfeited {
			m.treasury.Set(float64(engine.TreasuryBalance()))
		}
	})
}

// Handler serves the registry over HTTP for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
