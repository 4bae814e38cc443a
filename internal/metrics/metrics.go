package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Connections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "classhub_connections",
			Help: "Live socket connections per channel",
		},
		[]string{"channel"}, // "portal" or "lecture"
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classhub_events_total",
			Help: "Inbound socket events dispatched",
		},
		[]string{"channel", "event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classhub_events_dropped_total",
			Help: "Inbound events dropped by validation or scope checks",
		},
		[]string{"channel", "event"},
	)

	OnlineIdentities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classhub_online_identities",
			Help: "Identities with at least one live portal connection",
		},
	)

	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classhub_chat_messages_persisted_total",
			Help: "Chat messages durably stored before broadcast",
		},
	)
)
