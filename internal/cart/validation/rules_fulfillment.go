package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
)

// checkShippingMethod validates the selected shipping method against the
// shipping address, the subtotal and the cart's total weight. It returns
// the method's cost for the totals.
func (e *Engine) checkShippingMethod(ctx context.Context, cart *domain.Cart, lines []line, shipTo *domain.Address, subtotal decimal.Decimal, res *Result) (decimal.Decimal, error) {
	if !requiresShipping(lines) {
		return decimal.Zero, nil
	}
	if cart.ShippingMethodID == nil {
		res.addError(CodeShippingInactive, "a shipping method is required")
		return decimal.Zero, nil
	}
	method, err := e.shipping.Method(ctx, *cart.ShippingMethodID)
	if err != nil {
		return decimal.Zero, err
	}
	if method == nil || !method.IsActive {
		res.addError(CodeShippingInactive,
			fmt.Sprintf("shipping method %d is not available", *cart.ShippingMethodID))
		return decimal.Zero, nil
	}

	if shipTo != nil {
		if !method.ServesCountry(shipTo.Country) {
			res.addError(CodeShippingZoneMismatch,
				fmt.Sprintf("shipping method %q does not deliver to %s", method.Name, shipTo.Country))
		} else if !method.CoversRegion(shipTo.Region) {
			// Zone configuration is often incomplete; do not hard-block.
			res.addWarning(WarnZoneNotCovered,
				fmt.Sprintf("region %q is not listed in the delivery zones of %q", shipTo.Region, method.Name))
		}
	}

	if method.MinOrderValue.IsPositive() && subtotal.LessThan(method.MinOrderValue) {
		res.addError(CodeBelowShippingMinimum,
			fmt.Sprintf("shipping method %q requires a minimum order of %s", method.Name, method.MinOrderValue))
	}
	if method.MaxWeight.IsPositive() {
		if weight := totalWeight(lines); weight.GreaterThan(method.MaxWeight) {
			res.addError(CodeAboveMaxWeight,
				fmt.Sprintf("cart weight %s exceeds the %s limit of %q", weight, method.MaxWeight, method.Name))
		}
	}
	return method.Cost, nil
}

// checkPaymentMethod validates the selected payment method against the
// shipping country and the priced total.
func (e *Engine) checkPaymentMethod(ctx context.Context, cart *domain.Cart, shipTo *domain.Address, total decimal.Decimal, res *Result) error {
	if cart.PaymentMethodID == nil {
		res.addError(CodePaymentInactive, "a payment method is required")
		return nil
	}
	method, err := e.payments.Method(ctx, *cart.PaymentMethodID)
	if err != nil {
		return err
	}
	if method == nil || !method.IsActive {
		res.addError(CodePaymentInactive,
			fmt.Sprintf("payment method %d is not available", *cart.PaymentMethodID))
		return nil
	}

	if shipTo != nil && !method.AvailableIn(shipTo.Country) {
		res.addError(CodePaymentNotAvailable,
			fmt.Sprintf("payment method %q is not available in %s", method.Name, shipTo.Country))
	}
	if method.MinAmount.IsPositive() && total.LessThan(method.MinAmount) {
		res.addError(CodeAmountOutOfBounds,
			fmt.Sprintf("order total %s is below the %s minimum for %q", total, method.MinAmount, method.Name))
	}
	if method.MaxAmount.IsPositive() && total.GreaterThan(method.MaxAmount) {
		res.addError(CodeAmountOutOfBounds,
			fmt.Sprintf("order total %s exceeds the %s maximum for %q", total, method.MaxAmount, method.Name))
	}
	if method.RequiresPhone {
		phone := ""
		if shipTo != nil {
			phone = shipTo.Phone
		}
		if phone == "" {
			res.addError(CodePaymentPhoneRequired,
				fmt.Sprintf("payment method %q requires a phone number", method.Name))
		} else if method.PhonePrefix != "" && !hasPhonePrefix(phone, method.PhonePrefix) {
			res.addError(CodePaymentPhoneRequired,
				fmt.Sprintf("payment method %q requires a %s phone number", method.Name, method.PhonePrefix))
		}
	}
	return nil
}

func hasPhonePrefix(phone, prefix string) bool {
	if len(phone) < len(prefix) {
		return false
	}
	return phone[:len(prefix)] == prefix
}
