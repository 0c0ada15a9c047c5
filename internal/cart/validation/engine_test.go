package validation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
	"github.com/mizizzi/inventory-engine/internal/cart/validation"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
)

// ── In-memory collaborator stubs ─────────────────────────────────────────────

type stubCarts struct {
	repaired map[uint]decimal.Decimal
}

func (s *stubCarts) FindWithItems(context.Context, uuid.UUID) (*domain.Cart, error) {
	return nil, domain.ErrNotFound
}

func (s *stubCarts) UpdateItemPrice(_ context.Context, itemID uint, price decimal.Decimal) error {
	if s.repaired == nil {
		s.repaired = make(map[uint]decimal.Decimal)
	}
	s.repaired[itemID] = price
	return nil
}

func (s *stubCarts) Touch(context.Context, uuid.UUID, time.Time) error { return nil }
func (s *stubCarts) Merge(context.Context, uuid.UUID, uuid.UUID, time.Time) (*domain.Cart, error) {
	return nil, domain.ErrNotFound
}

type stubCatalog struct {
	products map[uint]*domain.Product
	variants map[uint]*domain.Variant
	rules    []domain.CompatibilityRule
}

func (s *stubCatalog) Product(_ context.Context, id uint) (*domain.Product, error) {
	return s.products[id], nil
}

func (s *stubCatalog) Variant(_ context.Context, id uint) (*domain.Variant, error) {
	return s.variants[id], nil
}

func (s *stubCatalog) Rules(context.Context, []uint) ([]domain.CompatibilityRule, error) {
	return s.rules, nil
}

type stubAddresses struct {
	addresses map[uint]*domain.Address
}

func (s *stubAddresses) Address(_ context.Context, id uint) (*domain.Address, error) {
	return s.addresses[id], nil
}

type stubShipping struct {
	methods map[uint]*domain.ShippingMethod
}

func (s *stubShipping) Method(_ context.Context, id uint) (*domain.ShippingMethod, error) {
	return s.methods[id], nil
}

type stubPayments struct {
	methods map[uint]*domain.PaymentMethod
}

func (s *stubPayments) Method(_ context.Context, id uint) (*domain.PaymentMethod, error) {
	return s.methods[id], nil
}

type stubCoupons struct {
	coupons map[string]*domain.Coupon
	used    map[string]bool
}

func (s *stubCoupons) FindByCode(_ context.Context, code string) (*domain.Coupon, error) {
	return s.coupons[code], nil
}

func (s *stubCoupons) CustomerUsed(_ context.Context, code string, _ uint) (bool, error) {
	return s.used[code], nil
}

type stubPromotions struct {
	active []domain.Promotion
}

func (s *stubPromotions) FindActive(context.Context, time.Time) ([]domain.Promotion, error) {
	return s.active, nil
}

type stubHistory struct {
	purchased map[uint]int
}

func (s *stubHistory) PurchasedQuantity(_ context.Context, _ uint, productID uint) (int, error) {
	return s.purchased[productID], nil
}

type stubLedger struct {
	records map[locker.Key]*stockdomain.StockRecord
}

func (s *stubLedger) FindByKey(_ context.Context, key locker.Key) (*stockdomain.StockRecord, error) {
	rec, ok := s.records[key]
	if !ok {
		return nil, stockdomain.ErrNotFound
	}
	return rec, nil
}

func (s *stubLedger) GetOrCreate(ctx context.Context, key locker.Key) (*stockdomain.StockRecord, error) {
	return s.FindByKey(ctx, key)
}

func (s *stubLedger) Adjust(context.Context, locker.Key, int, string, string) (*stockdomain.StockRecord, error) {
	return nil, stockdomain.ErrNotFound
}

func (s *stubLedger) ReleaseReserved(context.Context, locker.Key, int, string) (*stockdomain.StockRecord, error) {
	return nil, stockdomain.ErrNotFound
}

func (s *stubLedger) FindLowStock(context.Context, int, int) ([]stockdomain.StockRecord, error) {
	return nil, nil
}

func (s *stubLedger) FindReserved(context.Context) ([]stockdomain.StockRecord, error) {
	return nil, nil
}

func (s *stubLedger) Movements(context.Context, locker.Key, int) ([]stockdomain.StockMovement, error) {
	return nil, nil
}

type stubLegacy struct {
	stock map[uint]int
}

func (s *stubLegacy) LegacyStock(_ context.Context, productID uint) (int, bool, error) {
	n, ok := s.stock[productID]
	return n, ok, nil
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type fixture struct {
	carts   *stubCarts
	catalog *stubCatalog
	ledger  *stubLedger
	coupons *stubCoupons
	promos  *stubPromotions
	history *stubHistory
	legacy  *stubLegacy
	engine  *validation.Engine
	cart    *domain.Cart
}

func uintp(v uint) *uint { return &v }

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newFixture builds a two item cart that passes every rule.
func newFixture() *fixture {
	f := &fixture{
		carts: &stubCarts{},
		catalog: &stubCatalog{
			products: map[uint]*domain.Product{
				10: {ID: 10, Name: "Espresso Grinder", Price: price("25.00"), Weight: price("1.000"),
					IsActive: true, IsVisible: true, RequiresShipping: true, MinPurchaseQty: 1},
				11: {ID: 11, Name: "Filter Pack", Price: price("10.00"), Weight: price("0.200"),
					IsActive: true, IsVisible: true, RequiresShipping: true, MinPurchaseQty: 1},
			},
			variants: map[uint]*domain.Variant{},
		},
		ledger: &stubLedger{records: map[locker.Key]*stockdomain.StockRecord{
			{ProductID: 10}: {ProductID: 10, StockLevel: 20, Status: stockdomain.StatusActive},
			{ProductID: 11}: {ProductID: 11, StockLevel: 20, Status: stockdomain.StatusActive},
		}},
		coupons: &stubCoupons{coupons: map[string]*domain.Coupon{}, used: map[string]bool{}},
		promos:  &stubPromotions{},
		history: &stubHistory{purchased: map[uint]int{}},
		legacy:  &stubLegacy{stock: map[uint]int{}},
	}

	addresses := &stubAddresses{addresses: map[uint]*domain.Address{
		1: {ID: 1, FullName: "Jane Doe", Line1: "12 Main St", City: "Portland", Region: "OR",
			PostalCode: "97201", Country: "US", Phone: "+15035550100"},
	}}
	shipping := &stubShipping{methods: map[uint]*domain.ShippingMethod{
		1: {ID: 1, Name: "Standard", IsActive: true, Countries: "US,KE", DeliveryZones: "OR,WA",
			Cost: price("5.00")},
	}}
	payments := &stubPayments{methods: map[uint]*domain.PaymentMethod{
		1: {ID: 1, Code: "card", Name: "Card", IsActive: true},
	}}

	f.engine = validation.NewEngine(
		f.carts, f.catalog, addresses, shipping, payments,
		f.coupons, f.promos, f.history, f.ledger, f.legacy,
		validation.Bounds{},
	)

	f.cart = &domain.Cart{
		ID:                uuid.New(),
		UserID:            uintp(1),
		IsActive:          true,
		SameAsShipping:    true,
		ShippingAddressID: uintp(1),
		ShippingMethodID:  uintp(1),
		PaymentMethodID:   uintp(1),
		Items: []domain.CartItem{
			{ID: 1, ProductID: 10, Quantity: 2, Price: price("25.00")},
			{ID: 2, ProductID: 11, Quantity: 1, Price: price("10.00")},
		},
	}
	return f
}

func codes(errs []validation.ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func warnCodes(warnings []validation.Warning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Code)
	}
	return out
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestValidateHappyPath(t *testing.T) {
	f := newFixture()
	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.True(t, res.Totals.Subtotal.Equal(price("60.00")), "subtotal %s", res.Totals.Subtotal)
	assert.True(t, res.Totals.ShippingCost.Equal(price("5.00")))
	assert.True(t, res.Totals.TaxTotal.IsZero(), "no tax provider is wired")
	assert.True(t, res.Totals.Total.Equal(price("65.00")))
}

func TestValidateEmptyCartIsTerminal(t *testing.T) {
	f := newFixture()
	f.cart.Items = nil

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)

	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, validation.CodeEmptyCart, res.Errors[0].Code)
}

func TestValidateIncompatiblePairNamesBothItems(t *testing.T) {
	f := newFixture()
	f.catalog.rules = []domain.CompatibilityRule{
		{ProductID: 10, RelatedProductID: 11, Type: domain.RuleExcludes},
		{ProductID: 11, RelatedProductID: 10, Type: domain.RuleExcludes},
	}

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)

	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1, "mirrored rules are one finding")
	e := res.Errors[0]
	assert.Equal(t, validation.CodeIncompatibleProducts, e.Code)
	require.NotNil(t, e.ItemID)
	require.NotNil(t, e.RelatedItemID)
	assert.ElementsMatch(t, []uint{1, 2}, []uint{*e.ItemID, *e.RelatedItemID})

	// Removing either item resolves the conflict.
	f.cart.Items = f.cart.Items[:1]
	res, err = f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidateMissingRequiredCompanion(t *testing.T) {
	f := newFixture()
	f.catalog.rules = []domain.CompatibilityRule{
		{ProductID: 10, RelatedProductID: 99, Type: domain.RuleRequires},
	}

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Contains(t, codes(res.Errors), validation.CodeMissingRequired)
}

func TestValidateCollectsAllErrorsInOnePass(t *testing.T) {
	f := newFixture()
	f.ledger.records[locker.Key{ProductID: 10}].StockLevel = 1 // item 1 wants 2
	f.cart.PaymentMethodID = nil
	f.cart.Items[1].Quantity = 0

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)

	assert.False(t, res.Valid)
	got := codes(res.Errors)
	assert.Contains(t, got, validation.CodeInsufficientStock)
	assert.Contains(t, got, validation.CodeInvalidQuantity)
	assert.Contains(t, got, validation.CodePaymentInactive)
	assert.GreaterOrEqual(t, len(res.Errors), 3)
}

func TestValidateRepairsStalePrice(t *testing.T) {
	f := newFixture()
	f.catalog.products[10].Price = price("30.00")

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)

	assert.True(t, res.Valid, "a price change is never an error")
	assert.Contains(t, warnCodes(res.Warnings), validation.WarnPriceChanged)
	repaired, ok := f.carts.repaired[1]
	require.True(t, ok, "snapshot should be repaired")
	assert.True(t, repaired.Equal(price("30.00")))
	// The repaired price feeds the totals of the same pass.
	assert.True(t, res.Totals.Subtotal.Equal(price("70.00")), "subtotal %s", res.Totals.Subtotal)
}

func TestValidatePartiallyReservedIsWarning(t *testing.T) {
	f := newFixture()
	rec := f.ledger.records[locker.Key{ProductID: 10}]
	rec.StockLevel = 5
	rec.ReservedQuantity = 4 // available 1, requested 2, stock 5

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Contains(t, warnCodes(res.Warnings), validation.WarnPartiallyReserved)
}

func TestValidateLegacyStockFallback(t *testing.T) {
	f := newFixture()
	delete(f.ledger.records, locker.Key{ProductID: 10})
	f.legacy.stock[10] = 3

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Contains(t, warnCodes(res.Warnings), validation.WarnLegacyStock)

	f.legacy.stock[10] = 1
	res, err = f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, codes(res.Errors), validation.CodeInsufficientStock)
}

func TestValidateCustomerLimit(t *testing.T) {
	f := newFixture()
	f.catalog.products[10].CustomerLimit = 3
	f.history.purchased[10] = 2 // plus 2 requested exceeds 3

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Contains(t, codes(res.Errors), validation.CodeCustomerLimitExceeded)
}

func TestValidateQuantityLimits(t *testing.T) {
	f := newFixture()
	f.catalog.products[10].MaxPurchaseQty = 1

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.Contains(t, codes(res.Errors), validation.CodeAboveMaxQuantity)

	f.catalog.products[10].MaxPurchaseQty = 0
	f.catalog.products[10].MinPurchaseQty = 5
	res, err = f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.Contains(t, codes(res.Errors), validation.CodeBelowMinQuantity)
}

func TestValidateKenyanAddressFormats(t *testing.T) {
	f := newFixture()
	addr := &domain.Address{ID: 1, FullName: "Asha Mwangi", Line1: "Moi Ave", City: "Nairobi",
		Region: "Nairobi", PostalCode: "00100", Country: "KE", Phone: "+254712345678"}
	f.engineWithAddress(addr)

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.NotContains(t, codes(res.Errors), validation.CodeInvalidPhone)
	assert.NotContains(t, codes(res.Errors), validation.CodeInvalidPostalCode)

	addr.Phone = "12345"
	addr.PostalCode = "ABC"
	res, err = f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.Contains(t, codes(res.Errors), validation.CodeInvalidPhone)
	assert.Contains(t, codes(res.Errors), validation.CodeInvalidPostalCode)
}

// engineWithAddress rebuilds the engine with a replacement shipping address.
func (f *fixture) engineWithAddress(addr *domain.Address) {
	addresses := &stubAddresses{addresses: map[uint]*domain.Address{addr.ID: addr}}
	shipping := &stubShipping{methods: map[uint]*domain.ShippingMethod{
		1: {ID: 1, Name: "Standard", IsActive: true, Countries: "US,KE",
			DeliveryZones: "OR,WA,Nairobi", Cost: price("5.00")},
	}}
	payments := &stubPayments{methods: map[uint]*domain.PaymentMethod{
		1: {ID: 1, Code: "card", Name: "Card", IsActive: true},
	}}
	f.engine = validation.NewEngine(
		f.carts, f.catalog, addresses, shipping, payments,
		f.coupons, f.promos, f.history, f.ledger, f.legacy,
		validation.Bounds{},
	)
}

func TestValidateCouponRules(t *testing.T) {
	f := newFixture()
	f.cart.CouponCode = "WELCOME"

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.Contains(t, codes(res.Errors), validation.CodeCouponNotFound)

	f.coupons.coupons["WELCOME"] = &domain.Coupon{
		Code: "WELCOME", IsActive: true,
		DiscountType: domain.DiscountPercentage, Value: price("10"),
		OncePerCustomer: true,
	}
	res, err = f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.True(t, res.Totals.Discount.Equal(price("6.00")), "discount %s", res.Totals.Discount)

	f.coupons.used["WELCOME"] = true
	res, err = f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, codes(res.Errors), validation.CodeCouponAlreadyUsed)
}

func TestValidatePromotionsNeverBlock(t *testing.T) {
	f := newFixture()
	f.promos.active = []domain.Promotion{
		{ID: 1, Name: "Autumn", IsActive: true,
			DiscountType: domain.DiscountFixed, Value: price("5.00")},
	}

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.True(t, res.Totals.Discount.Equal(price("5.00")))
	assert.True(t, res.Totals.Total.Equal(price("60.00")))
}

func TestValidateOrderBounds(t *testing.T) {
	f := newFixture()
	f.engine = validation.NewEngine(
		f.carts, f.catalog,
		&stubAddresses{addresses: map[uint]*domain.Address{
			1: {ID: 1, FullName: "Jane Doe", Line1: "12 Main St", City: "Portland", Region: "OR",
				PostalCode: "97201", Country: "US", Phone: "+15035550100"},
		}},
		&stubShipping{methods: map[uint]*domain.ShippingMethod{
			1: {ID: 1, Name: "Standard", IsActive: true, Countries: "US", DeliveryZones: "OR", Cost: price("5.00")},
		}},
		&stubPayments{methods: map[uint]*domain.PaymentMethod{
			1: {ID: 1, Code: "card", Name: "Card", IsActive: true},
		}},
		f.coupons, f.promos, f.history, f.ledger, f.legacy,
		validation.Bounds{MinOrderValue: price("100.00")},
	)

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, codes(res.Errors), validation.CodeOrderBelowMinimum)
}

func TestValidateShippingMethodRules(t *testing.T) {
	f := newFixture()
	f.engineWithAddress(&domain.Address{ID: 1, FullName: "Jane Doe", Line1: "1 Rue X", City: "Paris",
		Region: "IDF", PostalCode: "75001", Country: "FR", Phone: "+33123456789"})

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, codes(res.Errors), validation.CodeShippingZoneMismatch)
}

func TestValidateZoneCoverageIsWarning(t *testing.T) {
	f := newFixture()
	f.engineWithAddress(&domain.Address{ID: 1, FullName: "Jane Doe", Line1: "12 Main St", City: "Austin",
		Region: "TX", PostalCode: "73301", Country: "US", Phone: "+15125550100"})

	res, err := f.engine.Validate(context.Background(), f.cart)
	require.NoError(t, err)
	assert.True(t, res.Valid, "incomplete zone configuration must not block")
	assert.Contains(t, warnCodes(res.Warnings), validation.WarnZoneNotCovered)
}
