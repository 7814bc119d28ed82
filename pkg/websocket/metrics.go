package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks connected progress subscribers.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_ws_active_connections",
		Help: "Number of connected execution progress subscribers",
	})

	// EventsPublishedTotal tracks progress events by stage.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_ws_events_published_total",
			Help: "Total number of execution progress events published",
		},
		[]string{"stage"},
	)

	// MessagesSentTotal tracks frames written to subscribers.
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_ws_messages_sent_total",
		Help: "Total number of progress frames written to subscribers",
	})

	// MessagesDroppedTotal tracks events dropped because a subscriber queue was full.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_ws_messages_dropped_total",
			Help: "Total number of progress events dropped",
		},
		[]string{"reason"},
	)
)
