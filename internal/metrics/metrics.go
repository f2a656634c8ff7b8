package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the chat server. It satisfies
// chat.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	SessionsDropped prometheus.Counter

	// Broadcast metrics
	MessagesBroadcast prometheus.Counter
	Deliveries        prometheus.Counter
	HistoryEntries    prometheus.Gauge
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chat_sessions_active",
				Help: "Number of participants currently in the roster",
			},
		),
		SessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_sessions_total",
				Help: "Total number of participants that joined",
			},
		),
		SessionsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_sessions_dropped_total",
				Help: "Total number of sessions closed because their send queue overflowed",
			},
		),
		MessagesBroadcast: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_messages_broadcast_total",
				Help: "Total number of messages broadcast, including notices",
			},
		),
		Deliveries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_message_deliveries_total",
				Help: "Total number of per-recipient message deliveries queued",
			},
		),
		HistoryEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chat_history_entries",
				Help: "Number of messages held in the replay history",
			},
		),
	}

	m.registry.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.SessionsDropped,
		m.MessagesBroadcast,
		m.Deliveries,
		m.HistoryEntries,
	)

	return m
}

// Handler returns the HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionJoined counts a participant entering the roster.
func (m *Metrics) SessionJoined() {
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

// SessionLeft counts a participant leaving the roster.
func (m *Metrics) SessionLeft() {
	m.SessionsActive.Dec()
}

// SessionDropped counts a session closed for overflowing its send queue.
func (m *Metrics) SessionDropped() {
	m.SessionsDropped.Inc()
}

// MessageBroadcast counts one broadcast queued for recipients sessions.
func (m *Metrics) MessageBroadcast(recipients int) {
	m.MessagesBroadcast.Inc()
	m.Deliveries.Add(float64(recipients))
}

// HistoryLength records the current replay history size.
func (m *Metrics) HistoryLength(n int) {
	m.HistoryEntries.Set(float64(n))
}
