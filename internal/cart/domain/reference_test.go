package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
)

func TestAddressMissingFields(t *testing.T) {
	addr := &domain.Address{
		FullName: "Jane Doe", Line1: "12 Main St", City: "Portland",
		Region: "OR", PostalCode: "97201", Country: "US", Phone: "+15035550100",
	}
	assert.Empty(t, addr.MissingFields())

	addr.Phone = "  "
	addr.City = ""
	assert.ElementsMatch(t, []string{"phone", "city"}, addr.MissingFields())
}

func TestProductCurrentPriceUsesVariantOverride(t *testing.T) {
	p := &domain.Product{Price: decimal.RequireFromString("25.00")}

	assert.True(t, p.CurrentPrice(nil).Equal(decimal.RequireFromString("25.00")))

	inherit := &domain.Variant{Price: decimal.Zero}
	assert.True(t, p.CurrentPrice(inherit).Equal(decimal.RequireFromString("25.00")))

	override := &domain.Variant{Price: decimal.RequireFromString("27.50")}
	assert.True(t, p.CurrentPrice(override).Equal(decimal.RequireFromString("27.50")))
}

func TestPaymentMethodCountryScope(t *testing.T) {
	everywhere := &domain.PaymentMethod{Countries: ""}
	assert.True(t, everywhere.AvailableIn("KE"))

	scoped := &domain.PaymentMethod{Countries: "KE, UG"}
	assert.True(t, scoped.AvailableIn("ke"), "country match is case insensitive")
	assert.True(t, scoped.AvailableIn("UG"))
	assert.False(t, scoped.AvailableIn("US"))
}

func TestCouponRestriction(t *testing.T) {
	open := &domain.Coupon{}
	assert.False(t, open.Restricted())
	assert.True(t, open.AppliesTo(1, 1))

	restricted := &domain.Coupon{ProductIDs: "10,11", CategoryIDs: "5"}
	assert.True(t, restricted.Restricted())
	assert.True(t, restricted.AppliesTo(10, 0))
	assert.True(t, restricted.AppliesTo(99, 5), "category match suffices")
	assert.False(t, restricted.AppliesTo(99, 6))
}

func TestPromotionWindowAndEligibility(t *testing.T) {
	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	open := &domain.Promotion{}
	assert.True(t, open.InWindow(now))
	assert.True(t, open.Eligible(42), "empty product list is cart-wide")

	windowed := &domain.Promotion{StartsAt: &yesterday, EndsAt: &tomorrow, ProductIDs: "42"}
	assert.True(t, windowed.InWindow(now))
	assert.False(t, windowed.InWindow(tomorrow.Add(time.Hour)))
	assert.True(t, windowed.Eligible(42))
	assert.False(t, windowed.Eligible(7))
}

func TestCartExpiry(t *testing.T) {
	now := time.Now()
	cart := &domain.Cart{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, cart.IsExpired(now))
	assert.True(t, cart.IsExpired(now.Add(2*time.Minute)))
}
