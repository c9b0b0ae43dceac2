package model

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Only these edges are legal. Self and backward moves are not listed.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusPreparing},
	OrderStatusPreparing: {OrderStatusReady},
	OrderStatusReady:     {OrderStatusCompleted},
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) Valid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// TimestampColumn names the column stamped when an order enters s, or "" if none.
func (s OrderStatus) TimestampColumn() string {
	switch s {
	case OrderStatusPaid:
		return "paid_at"
	case OrderStatusConfirmed:
		return "confirmed_at"
	case OrderStatusCompleted:
		return "completed_at"
	}
	return ""
}
