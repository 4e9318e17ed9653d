package domain

import (
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Valid reports whether the side is one of the two known values.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderStatus tracks the order lifecycle. An order starts at pending and
// moves forward one hop at a time until it reaches a terminal status.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusRouting   OrderStatus = "routing"
	OrderStatusBuilding  OrderStatus = "building"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Terminal reports whether no further transitions are permitted out of the
// status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusFailed
}

// nextStatus is the single legal forward hop for each non-terminal status.
var nextStatus = map[OrderStatus]OrderStatus{
	OrderStatusPending:   OrderStatusRouting,
	OrderStatusRouting:   OrderStatusBuilding,
	OrderStatusBuilding:  OrderStatusSubmitted,
	OrderStatusSubmitted: OrderStatusConfirmed,
}

// CanTransition reports whether from -> to is a legal order state
// transition. Any non-terminal status may transition directly to failed;
// otherwise only the single forward hop is allowed.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == OrderStatusFailed {
		return true
	}
	return nextStatus[from] == to
}

// Order represents a trade order routed through the simulated venues.
type Order struct {
	ID                string
	Pair              string
	Side              OrderSide
	Amount            float64
	SlippageTolerance float64
	Status            OrderStatus

	// Execution details, filled in as the order advances.
	Venue         string
	QuotedPrice   float64
	TxHash        string
	ExecutedPrice float64
	Error         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderUpdate carries the optional fields written alongside a status change.
// Nil fields are left untouched in the store.
type OrderUpdate struct {
	Venue         *string
	QuotedPrice   *float64
	TxHash        *string
	ExecutedPrice *float64
	Error         *string
}

// StatusTransition is a single append-only entry in an order's transition
// history. Insertion order is causal order: every transition's FromState
// matches the previous transition's ToState.
type StatusTransition struct {
	ID        int64
	OrderID   string
	FromState OrderStatus
	ToState   OrderStatus
	Payload   map[string]any
	CreatedAt time.Time
}

// OrderWithTransitions is the full record returned by status queries once an
// order has left the fast-lookup cache.
type OrderWithTransitions struct {
	Order
	Transitions []StatusTransition
}

// OrderSnapshot is the reduced form kept in the fast-lookup cache for orders
// that have not yet reached a terminal status.
type OrderSnapshot struct {
	ID     string      `json:"id"`
	Pair   string      `json:"pair"`
	Side   OrderSide   `json:"side"`
	Amount float64     `json:"amount"`
	Status OrderStatus `json:"status"`
}

// Snapshot returns the cacheable view of the order.
func (o Order) Snapshot() OrderSnapshot {
	return OrderSnapshot{
		ID:     o.ID,
		Pair:   o.Pair,
		Side:   o.Side,
		Amount: o.Amount,
		Status: o.Status,
	}
}
