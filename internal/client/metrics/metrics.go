package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client-side collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics.
	SessionResolutionsTotal *prometheus.CounterVec
	SessionLogoutsTotal     prometheus.Counter

	// Realtime metrics.
	RealtimeConnected      prometheus.Gauge
	RealtimeDialsTotal     *prometheus.CounterVec
	RealtimeEventsTotal    *prometheus.CounterVec
	RealtimeUnreadMessages prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		SessionResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxpilot_session_resolutions_total",
			Help: "Current-user resolutions by outcome.",
		}, []string{"outcome"}),

		SessionLogoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inboxpilot_session_logouts_total",
			Help: "Completed logouts.",
		}),

		RealtimeConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inboxpilot_realtime_connected",
			Help: "1 while the realtime channel is connected.",
		}),

		RealtimeDialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxpilot_realtime_dials_total",
			Help: "Realtime connection attempts by result.",
		}, []string{"result"}),

		RealtimeEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxpilot_realtime_events_total",
			Help: "Realtime events received by name.",
		}, []string{"event"}),

		RealtimeUnreadMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inboxpilot_realtime_unread_messages",
			Help: "Unread inbound messages since the counter was last cleared.",
		}),
	}

	reg.MustRegister(
		m.SessionResolutionsTotal,
		m.SessionLogoutsTotal,
		m.RealtimeConnected,
		m.RealtimeDialsTotal,
		m.RealtimeEventsTotal,
		m.RealtimeUnreadMessages,
	)

	return m
}

// Registry exposes the private registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
