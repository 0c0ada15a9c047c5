package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
)

// checkCoupon validates an applied coupon code and returns the discount it
// contributes. An invalid coupon blocks checkout; a missing code is not a
// finding at all.
func (e *Engine) checkCoupon(ctx context.Context, cart *domain.Cart, lines []line, subtotal decimal.Decimal, res *Result) (decimal.Decimal, error) {
	if cart.CouponCode == "" {
		return decimal.Zero, nil
	}
	coupon, err := e.coupons.FindByCode(ctx, cart.CouponCode)
	if err != nil {
		return decimal.Zero, err
	}
	if coupon == nil {
		res.addError(CodeCouponNotFound, fmt.Sprintf("coupon %q does not exist", cart.CouponCode))
		return decimal.Zero, nil
	}

	now := e.now()
	valid := true
	if !coupon.IsActive {
		res.addError(CodeCouponInactive, fmt.Sprintf("coupon %q is no longer active", coupon.Code))
		valid = false
	}
	if (coupon.StartsAt != nil && now.Before(*coupon.StartsAt)) ||
		(coupon.EndsAt != nil && now.After(*coupon.EndsAt)) {
		res.addError(CodeCouponExpired, fmt.Sprintf("coupon %q is outside its validity window", coupon.Code))
		valid = false
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		res.addError(CodeCouponExhausted, fmt.Sprintf("coupon %q has reached its usage limit", coupon.Code))
		valid = false
	}
	if coupon.MinOrderValue.IsPositive() && subtotal.LessThan(coupon.MinOrderValue) {
		res.addError(CodeCouponBelowMinimum,
			fmt.Sprintf("coupon %q requires a minimum order of %s", coupon.Code, coupon.MinOrderValue))
		valid = false
	}
	if coupon.Restricted() && !anyLineMatches(lines, coupon) {
		res.addError(CodeCouponNotApplicable,
			fmt.Sprintf("coupon %q does not apply to any item in the cart", coupon.Code))
		valid = false
	}
	if coupon.OncePerCustomer && cart.UserID != nil {
		used, err := e.coupons.CustomerUsed(ctx, coupon.Code, *cart.UserID)
		if err != nil {
			return decimal.Zero, err
		}
		if used {
			res.addError(CodeCouponAlreadyUsed,
				fmt.Sprintf("coupon %q has already been redeemed on this account", coupon.Code))
			valid = false
		}
	}
	if !valid {
		return decimal.Zero, nil
	}
	return couponDiscount(coupon, lines, subtotal), nil
}

func anyLineMatches(lines []line, coupon *domain.Coupon) bool {
	for _, l := range lines {
		if l.product == nil {
			continue
		}
		if coupon.AppliesTo(l.product.ID, l.product.CategoryID) {
			return true
		}
	}
	return false
}

// couponDiscount computes the discount base: the whole subtotal for an
// unrestricted coupon, or only the matching lines for a restricted one.
func couponDiscount(coupon *domain.Coupon, lines []line, subtotal decimal.Decimal) decimal.Decimal {
	base := subtotal
	if coupon.Restricted() {
		base = decimal.Zero
		for _, l := range lines {
			if l.product == nil || !coupon.AppliesTo(l.product.ID, l.product.CategoryID) {
				continue
			}
			base = base.Add(l.item.Price.Mul(decimal.NewFromInt(int64(l.item.Quantity))))
		}
	}
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case domain.DiscountPercentage:
		discount = base.Mul(coupon.Value).Div(decimal.NewFromInt(100)).Round(2)
	case domain.DiscountFixed:
		discount = coupon.Value
	default:
		return decimal.Zero
	}
	if coupon.MaxDiscount.IsPositive() && discount.GreaterThan(coupon.MaxDiscount) {
		discount = coupon.MaxDiscount
	}
	if discount.GreaterThan(base) {
		discount = base
	}
	return discount
}

// applyPromotions discovers running promotions and folds their discounts
// into the totals. Promotions never produce validation findings.
func (e *Engine) applyPromotions(ctx context.Context, lines []line, subtotal decimal.Decimal) (decimal.Decimal, error) {
	promos, err := e.promos.FindActive(ctx, e.now())
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range promos {
		p := &promos[i]
		if !p.InWindow(e.now()) {
			continue
		}
		if p.MinOrderValue.IsPositive() && subtotal.LessThan(p.MinOrderValue) {
			continue
		}
		base := promotionBase(p, lines, subtotal)
		if !base.IsPositive() {
			continue
		}
		switch p.DiscountType {
		case domain.DiscountPercentage:
			total = total.Add(base.Mul(p.Value).Div(decimal.NewFromInt(100)).Round(2))
		case domain.DiscountFixed:
			d := p.Value
			if d.GreaterThan(base) {
				d = base
			}
			total = total.Add(d)
		}
	}
	return total, nil
}

func promotionBase(p *domain.Promotion, lines []line, subtotal decimal.Decimal) decimal.Decimal {
	if p.ProductIDs == "" {
		return subtotal
	}
	base := decimal.Zero
	for _, l := range lines {
		if l.product == nil || !p.Eligible(l.product.ID) {
			continue
		}
		base = base.Add(l.item.Price.Mul(decimal.NewFromInt(int64(l.item.Quantity))))
	}
	return base
}
