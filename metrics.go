package telerelay

import "github.com/prometheus/client_golang/prometheus"

// Drop reasons recorded by Metrics.
const (
	dropDisabled = "disabled"
	dropFiltered = "filtered"
	dropInvalid  = "invalid_destination"
	dropFailed   = "delivery_failed"
)

// Metrics counts pipeline outcomes. A nil *Metrics records nothing.
type Metrics struct {
	forwarded *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	retries   *prometheus.CounterVec
	reloads   *prometheus.CounterVec
	refreshes *prometheus.CounterVec

	floodWaits *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telerelay",
			Name:      "messages_forwarded_total",
			Help:      "Messages delivered to their destination.",
		}, []string{"session"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telerelay",
			Name:      "messages_dropped_total",
			Help:      "Messages not delivered, by reason.",
		}, []string{"session", "reason"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telerelay",
			Name:      "delivery_retries_total",
			Help:      "Deliveries retried with channel peer addressing.",
		}, []string{"session"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telerelay",
			Name:      "fleet_reloads_total",
			Help:      "Fleet reloads, by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telerelay",
			Name:      "route_refresh_failures_total",
			Help:      "Per-message configuration reads that failed or found the route invalid.",
		}, []string{"session"}),
		floodWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telerelay",
			Name:      "floodwait_retries_total",
			Help:      "Telegram calls retried after a FLOOD_WAIT.",
		}, []string{"session"}),
	}
	if reg != nil {
		reg.MustRegister(m.forwarded, m.dropped, m.retries, m.reloads, m.refreshes, m.floodWaits)
	}
	return m
}

func (m *Metrics) forward(session string) {
	if m != nil {
		m.forwarded.WithLabelValues(session).Inc()
	}
}

func (m *Metrics) drop(session, reason string) {
	if m != nil {
		m.dropped.WithLabelValues(session, reason).Inc()
	}
}

func (m *Metrics) retry(session string) {
	if m != nil {
		m.retries.WithLabelValues(session).Inc()
	}
}

func (m *Metrics) reload(result string) {
	if m != nil {
		m.reloads.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) refreshFailed(session string) {
	if m != nil {
		m.refreshes.WithLabelValues(session).Inc()
	}
}

func (m *Metrics) floodWait(session string) {
	if m != nil {
		m.floodWaits.WithLabelValues(session).Inc()
	}
}
