package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mizizzi/inventory-engine/pkg/errs"
)

var ErrNotFound = errs.New(errs.KindNotFound, "cart not found")

// Cart is a shopper's in-progress order. A cart is owned by either a user or
// a guest session, never both. It owns its items and reservations; both are
// cascade-deleted with it, but a reservation's stock-side effect is released
// explicitly, never dropped.
type Cart struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       *uint           `json:"user_id,omitempty" gorm:"index"`
	GuestID      *string         `json:"guest_id,omitempty" gorm:"index"`
	IsActive     bool            `json:"is_active" gorm:"not null;default:true;index"`
	ExpiresAt    time.Time       `json:"expires_at" gorm:"not null;index"`
	Subtotal     decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null;default:0"`
	TaxTotal     decimal.Decimal `json:"tax_total" gorm:"type:numeric(12,2);not null;default:0"`
	ShippingCost decimal.Decimal `json:"shipping_cost" gorm:"type:numeric(12,2);not null;default:0"`
	Discount     decimal.Decimal `json:"discount" gorm:"type:numeric(12,2);not null;default:0"`
	Total        decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null;default:0"`

	CouponCode        string `json:"coupon_code,omitempty"`
	ShippingAddressID *uint  `json:"shipping_address_id,omitempty"`
	BillingAddressID  *uint  `json:"billing_address_id,omitempty"`
	SameAsShipping    bool   `json:"same_as_shipping" gorm:"not null;default:false"`
	ShippingMethodID  *uint  `json:"shipping_method_id,omitempty"`
	PaymentMethodID   *uint  `json:"payment_method_id,omitempty"`

	Items []CartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Cart) TableName() string {
	return "carts"
}

// IsExpired reports whether the cart passed its deadline.
func (c *Cart) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CartItem is one line of a cart. Price is a snapshot taken when the item
// was added; a later catalog price change is repaired silently during
// validation, with a warning.
type CartItem struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	CartID    uuid.UUID       `json:"cart_id" gorm:"type:uuid;not null;index"`
	ProductID uint            `json:"product_id" gorm:"not null"`
	VariantID uint            `json:"variant_id,omitempty" gorm:"not null;default:0"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name
func (CartItem) TableName() string {
	return "cart_items"
}

// CartRepository is the data-access contract for carts.
type CartRepository interface {
	FindWithItems(ctx context.Context, id uuid.UUID) (*Cart, error)
	// UpdateItemPrice repairs a stored price snapshot.
	UpdateItemPrice(ctx context.Context, itemID uint, price decimal.Decimal) error
	// Touch renews the cart's deadline.
	Touch(ctx context.Context, id uuid.UUID, until time.Time) error
	// Merge folds the source cart's items and reservations into the
	// destination in one transaction. Destination reservation rows are
	// created before the source rows are cancelled; the ledger's reserved
	// totals are untouched because the holds only change owner.
	Merge(ctx context.Context, sourceID, destID uuid.UUID, renewUntil time.Time) (*Cart, error)
}
