package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "canteen"

var (
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders placed, by canteen",
		},
		[]string{"canteen"},
	)

	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Applied order status changes",
		},
		[]string{"from", "to"},
	)

	PaymentConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmations by outcome",
		},
		[]string{"outcome"},
	)

	// PickupScans counts verify and confirm attempts; result is "ok" or an error code.
	PickupScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pickup_scans_total",
			Help:      "Pickup token scans by phase and result",
		},
		[]string{"phase", "result"},
	)

	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pickup_tokens_issued_total",
			Help:      "Pickup tokens written, first issue or lazy reissue",
		},
		[]string{"reason"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Order events that could not be published",
		},
		[]string{"type"},
	)
)
