package models

import "time"

// Event types
const (
	EventTypeOrderPlaced = "ORDER_PLACED"
	EventTypeLowStock    = "LOW_STOCK"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent is published after a checkout transaction commits.
// It is informational only: the order and its stock decrements are already
// durable by the time this event exists.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	CustomerID  int64           `json:"customer_id"`
	TotalAmount int64           `json:"total_amount"`
	Lines       []OrderLineData `json:"lines"`
}

// OrderLineData carries per-line sale data in events. Remaining is the stock
// left after the decrement, read inside the same transaction.
type OrderLineData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
	Remaining int   `json:"remaining"`
}

// LowStockEvent is published by the sales worker when a sale leaves a product
// at or below the configured threshold.
type LowStockEvent struct {
	BaseEvent
	ProductID int64 `json:"product_id"`
	Remaining int   `json:"remaining"`
	Threshold int   `json:"threshold"`
}
