package domain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Reference data consumed from the surrounding catalog/CRUD services. The
// engine only reads these; their lifecycle is owned elsewhere.

// Product is the catalog view the engine needs: visibility, purchase
// limits, weight and the legacy flat stock field.
type Product struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	Name             string          `json:"name" gorm:"not null"`
	Price            decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Stock            int             `json:"stock" gorm:"not null;default:0"` // legacy flat stock
	Weight           decimal.Decimal `json:"weight" gorm:"type:numeric(10,3);not null;default:0"`
	IsActive         bool            `json:"is_active" gorm:"not null;default:true"`
	IsVisible        bool            `json:"is_visible" gorm:"not null;default:true"`
	RequiresShipping bool            `json:"requires_shipping" gorm:"not null;default:true"`
	MinPurchaseQty   int             `json:"min_purchase_qty" gorm:"not null;default:1"`
	MaxPurchaseQty   int             `json:"max_purchase_qty" gorm:"not null;default:0"` // 0 = unlimited
	CustomerLimit    int             `json:"customer_limit" gorm:"not null;default:0"`   // 0 = unlimited
	CategoryID       uint            `json:"category_id" gorm:"index"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name
func (Product) TableName() string {
	return "products"
}

// CurrentPrice returns the catalog price for a line, using the variant
// override when set.
func (p *Product) CurrentPrice(v *Variant) decimal.Decimal {
	if v != nil && v.Price.IsPositive() {
		return v.Price
	}
	return p.Price
}

// Variant is a purchasable variation of a product.
type Variant struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	ProductID uint            `json:"product_id" gorm:"not null;index"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null;default:0"` // 0 = inherit
	IsActive  bool            `json:"is_active" gorm:"not null;default:true"`
}

// TableName specifies the table name
func (Variant) TableName() string {
	return "product_variants"
}

// Compatibility rule types.
const (
	RuleExcludes = "excludes"
	RuleRequires = "requires"
)

// CompatibilityRule relates two products: "excludes" forbids them in one
// cart, "requires" demands the related product be present.
type CompatibilityRule struct {
	ID               uint   `json:"id" gorm:"primaryKey"`
	ProductID        uint   `json:"product_id" gorm:"not null;index"`
	RelatedProductID uint   `json:"related_product_id" gorm:"not null"`
	Type             string `json:"type" gorm:"not null"`
}

// TableName specifies the table name
func (CompatibilityRule) TableName() string {
	return "product_compatibility_rules"
}

// Address is a structurally checkable shipping or billing address.
type Address struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	UserID     *uint  `json:"user_id,omitempty" gorm:"index"`
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"` // ISO 3166-1 alpha-2
	Phone      string `json:"phone"`
}

// TableName specifies the table name
func (Address) TableName() string {
	return "addresses"
}

// MissingFields lists the structurally required fields that are empty.
func (a *Address) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"full_name", a.FullName},
		{"line1", a.Line1},
		{"city", a.City},
		{"region", a.Region},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
		{"phone", a.Phone},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ShippingMethod is a deliverable shipping option scoped to a country zone.
type ShippingMethod struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Name          string          `json:"name" gorm:"not null"`
	IsActive      bool            `json:"is_active" gorm:"not null;default:true"`
	Countries     string          `json:"countries"`      // CSV of ISO country codes in the zone
	DeliveryZones string          `json:"delivery_zones"` // CSV of covered regions; empty = unconfigured
	MinOrderValue decimal.Decimal `json:"min_order_value" gorm:"type:numeric(12,2);not null;default:0"`
	MaxWeight     decimal.Decimal `json:"max_weight" gorm:"type:numeric(10,3);not null;default:0"` // 0 = unlimited
	Cost          decimal.Decimal `json:"cost" gorm:"type:numeric(12,2);not null;default:0"`
}

// TableName specifies the table name
func (ShippingMethod) TableName() string {
	return "shipping_methods"
}

// ServesCountry reports whether the method's zone includes the country.
func (m *ShippingMethod) ServesCountry(country string) bool {
	return csvContains(m.Countries, country)
}

// CoversRegion reports whether the delivery zone configuration names the
// region. An empty configuration covers nothing but is only a warning.
func (m *ShippingMethod) CoversRegion(region string) bool {
	return csvContains(m.DeliveryZones, region)
}

// PaymentMethod is a payment option with amount bounds and country scope.
type PaymentMethod struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Code          string          `json:"code" gorm:"uniqueIndex;not null"`
	Name          string          `json:"name" gorm:"not null"`
	IsActive      bool            `json:"is_active" gorm:"not null;default:true"`
	Countries     string          `json:"countries"` // CSV; empty = everywhere
	MinAmount     decimal.Decimal `json:"min_amount" gorm:"type:numeric(12,2);not null;default:0"`
	MaxAmount     decimal.Decimal `json:"max_amount" gorm:"type:numeric(12,2);not null;default:0"` // 0 = unlimited
	RequiresPhone bool            `json:"requires_phone" gorm:"not null;default:false"`
	PhonePrefix   string          `json:"phone_prefix,omitempty"`
}

// TableName specifies the table name
func (PaymentMethod) TableName() string {
	return "payment_methods"
}

// AvailableIn reports whether the method serves the country.
func (m *PaymentMethod) AvailableIn(country string) bool {
	if strings.TrimSpace(m.Countries) == "" {
		return true
	}
	return csvContains(m.Countries, country)
}

// Coupon discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Coupon is a redeemable discount code.
type Coupon struct {
	Code            string          `json:"code" gorm:"primaryKey"`
	IsActive        bool            `json:"is_active" gorm:"not null;default:true"`
	DiscountType    string          `json:"discount_type" gorm:"not null"`
	Value           decimal.Decimal `json:"value" gorm:"type:numeric(12,2);not null"`
	MaxDiscount     decimal.Decimal `json:"max_discount" gorm:"type:numeric(12,2);not null;default:0"` // 0 = uncapped
	UsageLimit      int             `json:"usage_limit" gorm:"not null;default:0"`                     // 0 = unlimited
	UsedCount       int             `json:"used_count" gorm:"not null;default:0"`
	StartsAt        *time.Time      `json:"starts_at,omitempty"`
	EndsAt          *time.Time      `json:"ends_at,omitempty"`
	MinOrderValue   decimal.Decimal `json:"min_order_value" gorm:"type:numeric(12,2);not null;default:0"`
	ProductIDs      string          `json:"product_ids"`  // CSV restriction; empty = any
	CategoryIDs     string          `json:"category_ids"` // CSV restriction; empty = any
	OncePerCustomer bool            `json:"once_per_customer" gorm:"not null;default:false"`
}

// TableName specifies the table name
func (Coupon) TableName() string {
	return "coupons"
}

// Restricted reports whether the coupon only applies to certain products or
// categories.
func (c *Coupon) Restricted() bool {
	return strings.TrimSpace(c.ProductIDs) != "" || strings.TrimSpace(c.CategoryIDs) != ""
}

// AppliesTo reports whether a cart line falls within the restriction.
func (c *Coupon) AppliesTo(productID, categoryID uint) bool {
	if !c.Restricted() {
		return true
	}
	return csvContainsID(c.ProductIDs, productID) || csvContainsID(c.CategoryIDs, categoryID)
}

// Promotion is an automatically applied discount. Promotions never block
// validation; they only contribute discount effects.
type Promotion struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Name          string          `json:"name" gorm:"not null"`
	IsActive      bool            `json:"is_active" gorm:"not null;default:true"`
	StartsAt      *time.Time      `json:"starts_at,omitempty"`
	EndsAt        *time.Time      `json:"ends_at,omitempty"`
	DiscountType  string          `json:"discount_type" gorm:"not null"`
	Value         decimal.Decimal `json:"value" gorm:"type:numeric(12,2);not null"`
	ProductIDs    string          `json:"product_ids"` // CSV eligibility; empty = cart-wide
	MinOrderValue decimal.Decimal `json:"min_order_value" gorm:"type:numeric(12,2);not null;default:0"`
}

// TableName specifies the table name
func (Promotion) TableName() string {
	return "promotions"
}

// Eligible reports whether a product falls under the promotion. An empty
// product list makes the promotion cart-wide.
func (p *Promotion) Eligible(productID uint) bool {
	if strings.TrimSpace(p.ProductIDs) == "" {
		return true
	}
	return csvContainsID(p.ProductIDs, productID)
}

// InWindow reports whether the promotion is running at the given time.
func (p *Promotion) InWindow(at time.Time) bool {
	if p.StartsAt != nil && at.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && at.After(*p.EndsAt) {
		return false
	}
	return true
}

// Collaborator contracts.

type Catalog interface {
	Product(ctx context.Context, id uint) (*Product, error)
	Variant(ctx context.Context, id uint) (*Variant, error)
	// Rules returns the compatibility rules involving any of the products.
	Rules(ctx context.Context, productIDs []uint) ([]CompatibilityRule, error)
}

type AddressBook interface {
	Address(ctx context.Context, id uint) (*Address, error)
}

type ShippingMethods interface {
	Method(ctx context.Context, id uint) (*ShippingMethod, error)
}

type PaymentMethods interface {
	Method(ctx context.Context, id uint) (*PaymentMethod, error)
}

type CouponStore interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// CustomerUsed reports whether the customer already redeemed the code.
	CustomerUsed(ctx context.Context, code string, userID uint) (bool, error)
}

type PromotionStore interface {
	FindActive(ctx context.Context, at time.Time) ([]Promotion, error)
}

type PurchaseHistory interface {
	// PurchasedQuantity sums the customer's historical non-cancelled
	// purchase quantity for a product.
	PurchasedQuantity(ctx context.Context, userID, productID uint) (int, error)
}

func csvContains(csv, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	for _, part := range strings.Split(csv, ",") {
		if strings.EqualFold(strings.TrimSpace(part), value) {
			return true
		}
	}
	return false
}

func csvContainsID(csv string, id uint) bool {
	return csvContains(csv, strconv.FormatUint(uint64(id), 10))
}
