package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
)

// GormCatalog reads products, variants and compatibility rules. These tables
// are owned by the storefront; the engine only reads them. A nil record with
// a nil error means the row does not exist.
type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) Product(ctx context.Context, id uint) (*domain.Product, error) {
	var p domain.Product
	err := c.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *GormCatalog) Variant(ctx context.Context, id uint) (*domain.Variant, error) {
	var v domain.Variant
	err := c.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *GormCatalog) Rules(ctx context.Context, productIDs []uint) ([]domain.CompatibilityRule, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var rules []domain.CompatibilityRule
	err := c.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Find(&rules).Error
	return rules, err
}

type GormAddressBook struct {
	db *gorm.DB
}

func NewGormAddressBook(db *gorm.DB) *GormAddressBook {
	return &GormAddressBook{db: db}
}

func (a *GormAddressBook) Address(ctx context.Context, id uint) (*domain.Address, error) {
	var addr domain.Address
	err := a.db.WithContext(ctx).First(&addr, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

type GormShippingMethods struct {
	db *gorm.DB
}

func NewGormShippingMethods(db *gorm.DB) *GormShippingMethods {
	return &GormShippingMethods{db: db}
}

func (s *GormShippingMethods) Method(ctx context.Context, id uint) (*domain.ShippingMethod, error) {
	var m domain.ShippingMethod
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type GormPaymentMethods struct {
	db *gorm.DB
}

func NewGormPaymentMethods(db *gorm.DB) *GormPaymentMethods {
	return &GormPaymentMethods{db: db}
}

func (p *GormPaymentMethods) Method(ctx context.Context, id uint) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	err := p.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type GormCouponStore struct {
	db *gorm.DB
}

func NewGormCouponStore(db *gorm.DB) *GormCouponStore {
	return &GormCouponStore{db: db}
}

func (c *GormCouponStore) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := c.db.WithContext(ctx).First(&coupon, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (c *GormCouponStore) CustomerUsed(ctx context.Context, code string, userID uint) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Table("coupon_usages").
		Where("coupon_code = ? AND user_id = ?", code, userID).
		Count(&count).Error
	return count > 0, err
}

type GormPromotionStore struct {
	db *gorm.DB
}

func NewGormPromotionStore(db *gorm.DB) *GormPromotionStore {
	return &GormPromotionStore{db: db}
}

func (p *GormPromotionStore) FindActive(ctx context.Context, at time.Time) ([]domain.Promotion, error) {
	var promos []domain.Promotion
	err := p.db.WithContext(ctx).
		Where("is_active = true AND (starts_at IS NULL OR starts_at <= ?) AND (ends_at IS NULL OR ends_at >= ?)", at, at).
		Find(&promos).Error
	return promos, err
}

// GormPurchaseHistory sums a customer's past purchases of a product across
// committed orders. Used for per-customer purchase limits.
type GormPurchaseHistory struct {
	db *gorm.DB
}

func NewGormPurchaseHistory(db *gorm.DB) *GormPurchaseHistory {
	return &GormPurchaseHistory{db: db}
}

func (h *GormPurchaseHistory) PurchasedQuantity(ctx context.Context, userID, productID uint) (int, error) {
	var total int64
	err := h.db.WithContext(ctx).
		Table("order_items").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND order_items.product_id = ? AND orders.inventory_state = ?",
			userID, productID, "committed").
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

var (
	_ domain.Catalog         = (*GormCatalog)(nil)
	_ domain.AddressBook     = (*GormAddressBook)(nil)
	_ domain.ShippingMethods = (*GormShippingMethods)(nil)
	_ domain.PaymentMethods  = (*GormPaymentMethods)(nil)
	_ domain.CouponStore     = (*GormCouponStore)(nil)
	_ domain.PromotionStore  = (*GormPromotionStore)(nil)
	_ domain.PurchaseHistory = (*GormPurchaseHistory)(nil)
)
