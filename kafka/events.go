package kafka

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatusChangedEvent is the storefront's notification that an order
// moved to a new status. Payment confirmations finalize inventory;
// cancellations and returns restore it. The same event may be delivered
// more than once.
type OrderStatusChangedEvent struct {
	EventID   string     `json:"event_id"`
	EventType string     `json:"event_type"`
	OrderRef  uuid.UUID  `json:"order_ref"`
	CartID    *uuid.UUID `json:"cart_id,omitempty"`
	UserID    *uint      `json:"user_id,omitempty"`
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// OrderInventoryEvent announces the outcome of a commit or restore.
type OrderInventoryEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	OrderRef  uuid.UUID `json:"order_ref"`
	UserID    *uint     `json:"user_id,omitempty"`
	Items     int       `json:"items"`
	Total     string    `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// StockLowEvent announces that a stock key dropped to its low threshold.
type StockLowEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	ProductID uint      `json:"product_id"`
	VariantID uint      `json:"variant_id,omitempty"`
	Available int       `json:"available"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Order statuses that finalize inventory.
const (
	StatusConfirmed = "confirmed"
	StatusPaid      = "paid"
)

// Order statuses that restore inventory.
const (
	StatusCancelled = "cancelled"
	StatusReturned  = "returned"
	StatusRefunded  = "refunded"
)

// Event types
const (
	EventTypeOrderStatusChanged = "order.status_changed"
	EventTypeOrderCommitted     = "order.committed"
	EventTypeOrderRestored      = "order.restored"
	EventTypeStockLow           = "stock.low"
)

// Kafka topics
const (
	TopicOrderStatusChanged = "order-status-changed"
	TopicInventoryEvents    = "inventory-events"
)
