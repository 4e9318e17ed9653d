package domain

import "time"

// StatusEvent is the wire form of a status transition pushed to live
// subscribers. Optional fields are populated per status: venue and price at
// building, tx hash and executed price at confirmed, error at failed.
type StatusEvent struct {
	OrderID       string      `json:"order_id"`
	Status        OrderStatus `json:"status"`
	Timestamp     time.Time   `json:"timestamp"`
	Venue         string      `json:"venue,omitempty"`
	Price         float64     `json:"price,omitempty"`
	TxHash        string      `json:"tx_hash,omitempty"`
	ExecutedPrice float64     `json:"executed_price,omitempty"`
	Error         string      `json:"error,omitempty"`
}
