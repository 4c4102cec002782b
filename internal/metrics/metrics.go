package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_active_connections",
		Help: "Live websocket connections registered in the presence map.",
	})

	MessagesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_delivered_total",
		Help: "Messages pushed to a live recipient at send time.",
	}, []string{"mode"})

	MessagesDeferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_deferred_total",
		Help: "Private messages persisted for an offline recipient.",
	})

	MessagesReplayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_replayed_total",
		Help: "Messages replayed to a reconnecting recipient.",
	}, []string{"mode"})

	UndeliveredBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_undelivered_backlog",
		Help: "Pending private messages awaiting a recipient connection.",
	})
)
