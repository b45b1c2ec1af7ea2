package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the realtime and background collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	connections      prometheus.Gauge
	onlineUsers      prometheus.Gauge
	delivered        *prometheus.CounterVec
	pushFailures     prometheus.Counter
	sessionsRejected prometheus.Counter
	framesDropped    *prometheus.CounterVec
	presenceDropped  prometheus.Counter
	presenceFailed   prometheus.Counter
	messagesExpired  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ghostrecon_ws_connections_active",
			Help: "Current number of admitted websocket connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ghostrecon_users_online",
			Help: "Users with at least one live connection.",
		}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghostrecon_events_delivered_total",
			Help: "Events pushed to connections, by event type.",
		}, []string{"type"}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghostrecon_push_failures_total",
			Help: "Pushes that failed and pruned the connection.",
		}),
		sessionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghostrecon_sessions_rejected_total",
			Help: "Websocket sessions rejected by the session gate.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghostrecon_frames_ignored_total",
			Help: "Inbound frames ignored or rejected, by reason.",
		}, []string{"reason"}),
		presenceDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghostrecon_presence_dropped_total",
			Help: "Presence transitions dropped because the queue was full.",
		}),
		presenceFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghostrecon_presence_write_failures_total",
			Help: "Presence transitions the store failed to persist.",
		}),
		messagesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghostrecon_messages_expired_total",
			Help: "Self-destructing messages removed by the expiry sweep.",
		}),
	}

	reg.MustRegister(
		m.connections,
		m.onlineUsers,
		m.delivered,
		m.pushFailures,
		m.sessionsRejected,
		m.framesDropped,
		m.presenceDropped,
		m.presenceFailed,
		m.messagesExpired,
	)
	return m
}

func (m *Metrics) ConnAdmitted(firstForUser bool) {
	if m == nil {
		return
	}
	m.connections.Inc()
	if firstForUser {
		m.onlineUsers.Inc()
	}
}

func (m *Metrics) ConnRemoved(lastForUser bool) {
	if m == nil {
		return
	}
	m.connections.Dec()
	if lastForUser {
		m.onlineUsers.Dec()
	}
}

func (m *Metrics) Delivered(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.delivered.WithLabelValues(eventType).Inc()
}

func (m *Metrics) PushFailed() {
	if m == nil {
		return
	}
	m.pushFailures.Inc()
}

func (m *Metrics) SessionRejected() {
	if m == nil {
		return
	}
	m.sessionsRejected.Inc()
}

func (m *Metrics) FrameIgnored(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) PresenceDropped() {
	if m == nil {
		return
	}
	m.presenceDropped.Inc()
}

func (m *Metrics) PresenceFailed() {
	if m == nil {
		return
	}
	m.presenceFailed.Inc()
}

func (m *Metrics) MessagesExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.messagesExpired.Add(float64(n))
}
