package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mizizzi/inventory-engine/pkg/errs"
	"github.com/mizizzi/inventory-engine/pkg/locker"
)

// Inventory states of an order. The state only ever moves forward:
// pending -> committed -> restored. Each transition is a compare-and-set so
// duplicate completion or cancellation events are no-ops.
const (
	InventoryPending   = "pending"
	InventoryCommitted = "committed"
	InventoryRestored  = "restored"
)

var (
	ErrNotFound     = errs.New(errs.KindNotFound, "order not found")
	ErrInvalidState = errs.New(errs.KindInvalidState, "order is not in the required inventory state")
)

// Order records one committed checkout. OrderRef is the external order
// number of the surrounding storefront; commits are idempotent on it.
type Order struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	OrderRef       uuid.UUID       `json:"order_ref" gorm:"type:uuid;uniqueIndex;not null"`
	CartID         *uuid.UUID      `json:"cart_id,omitempty" gorm:"type:uuid;index"`
	UserID         *uint           `json:"user_id,omitempty" gorm:"index"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null;default:0"`
	Discount       decimal.Decimal `json:"discount" gorm:"type:numeric(12,2);not null;default:0"`
	Total          decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null;default:0"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	InventoryState string          `json:"inventory_state" gorm:"not null;default:'pending';index"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

// OrderItem is one committed line. ReservationID links back to the
// reservation that was completed for it, when one existed.
type OrderItem struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	OrderID       uint            `json:"order_id" gorm:"not null;index"`
	ProductID     uint            `json:"product_id" gorm:"not null"`
	VariantID     uint            `json:"variant_id,omitempty" gorm:"not null;default:0"`
	Quantity      int             `json:"quantity" gorm:"not null"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	ReservationID *uuid.UUID      `json:"reservation_id,omitempty" gorm:"type:uuid"`
}

// TableName specifies the table name
func (OrderItem) TableName() string {
	return "order_items"
}

// Key returns the stock key of the line.
func (i *OrderItem) Key() locker.Key {
	return locker.Key{ProductID: i.ProductID, VariantID: i.VariantID}
}

// CouponUsage makes coupon redemption idempotent per order: the unique
// (coupon_code, order_ref) pair absorbs duplicate commit events, and the
// coupon's used_count is only incremented when the row is newly inserted.
type CouponUsage struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CouponCode string    `json:"coupon_code" gorm:"not null;uniqueIndex:idx_coupon_order"`
	OrderRef   uuid.UUID `json:"order_ref" gorm:"type:uuid;not null;uniqueIndex:idx_coupon_order"`
	UserID     *uint     `json:"user_id,omitempty" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name
func (CouponUsage) TableName() string {
	return "coupon_usages"
}

// Repository is the data-access contract for order commits. Both composite
// operations run as one transaction; callers hold every line's key lock.
type Repository interface {
	// CommitOrder converts the order's lines into permanent stock
	// deductions and completes their reservations, all or nothing.
	// When an order with the same OrderRef already exists the stored
	// order is returned with created=false and nothing is touched.
	CommitOrder(ctx context.Context, order *Order) (stored *Order, created bool, err error)
	// RestoreOrder CASes committed -> restored and returns every line's
	// quantity to the stock ledger. Returns false when the order was not
	// in the committed state (duplicate or out-of-order event).
	RestoreOrder(ctx context.Context, orderRef uuid.UUID) (*Order, bool, error)
	FindByRef(ctx context.Context, orderRef uuid.UUID) (*Order, error)
}
