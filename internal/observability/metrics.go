package observability

import "github.com/prometheus/client_golang/prometheus"

// Bot metrics. Label values are bounded: categories, fixed outcome names
// and dialogue state names.
var (
	// OrdersCreated counts committed orders by category.
	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of committed orders.",
		},
		[]string{"category"},
	)

	// OrdersCancelled counts cancellation attempts by outcome
	// (deleted, not_found, cutoff, error).
	OrdersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Total number of order cancellation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// DialogTransitions counts state machine transitions.
	DialogTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_transitions_total",
			Help: "Total number of dialogue state transitions.",
		},
		[]string{"from", "to"},
	)

	// BroadcastMessages counts reminder deliveries by result (sent, failed).
	BroadcastMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Total number of broadcast reminder deliveries by result.",
		},
		[]string{"result"},
	)

	// UpdatesReceived counts chat updates by source (polling, webhook) and
	// disposition (accepted, duplicate, ignored).
	UpdatesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_total",
			Help: "Total number of Telegram updates received.",
		},
		[]string{"source", "disposition"},
	)
)

func init() {
	prometheus.MustRegister(OrdersCreated, OrdersCancelled, DialogTransitions, BroadcastMessages, UpdatesReceived)
}
