package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for IntentsDropped. Precondition failures are silent
// no-ops toward the client; the counter is the only trace they leave.
const (
	DropNotIdentified = "not_identified"
	DropNotInRoom     = "not_in_room"
	DropTargetOffline = "target_offline"
)

var (
	MessagesRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_messages_relayed_total",
		Help: "Room messages persisted and broadcast.",
	})
	PrivateMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_private_messages_total",
		Help: "Private messages delivered.",
	})
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_rate_limited_total",
		Help: "Sends refused by the rate limiter.",
	})
	ReactionsToggled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_reactions_toggled_total",
		Help: "Reaction toggle operations applied.",
	})
	PersistenceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_persistence_failures_total",
		Help: "Message appends that failed; the message was not broadcast.",
	})
	IntentsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_intents_dropped_total",
		Help: "Client intents silently dropped for unmet preconditions.",
	}, []string{"reason"})
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_connections_active",
		Help: "Live WebSocket connections.",
	})
	RoomsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_rooms_total",
		Help: "Registered rooms, public and private.",
	})
)

func init() {
	prometheus.MustRegister(
		MessagesRelayed,
		PrivateMessages,
		RateLimited,
		ReactionsToggled,
		PersistenceFailures,
		IntentsDropped,
		ActiveConnections,
		RoomsTotal,
	)
}

// Handler exposes the process metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
