package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
)

// Country-specific format checks. Only countries with a known format are
// checked; everyone else passes on structure alone.
var (
	kenyanPhone      = regexp.MustCompile(`^(?:\+254|0)(?:7|1)\d{8}$`)
	kenyanPostalCode = regexp.MustCompile(`^\d{5}$`)
)

// checkAddresses validates the shipping address (when any line requires
// shipping) and the billing address (unless same-as-shipping). It returns
// the shipping address for the method and payment rules, which may be nil.
func (e *Engine) checkAddresses(ctx context.Context, cart *domain.Cart, lines []line, res *Result) (*domain.Address, error) {
	var shipTo *domain.Address

	if requiresShipping(lines) {
		if cart.ShippingAddressID == nil {
			res.addError(CodeAddressMissing, "a shipping address is required")
		} else {
			addr, err := e.addresses.Address(ctx, *cart.ShippingAddressID)
			if err != nil {
				return nil, err
			}
			if addr == nil {
				res.addError(CodeAddressMissing,
					fmt.Sprintf("shipping address %d does not exist", *cart.ShippingAddressID))
			} else {
				e.checkAddressShape(addr, "shipping", res)
				shipTo = addr
			}
		}
	}

	if cart.SameAsShipping {
		return shipTo, nil
	}
	if cart.BillingAddressID == nil {
		res.addError(CodeAddressMissing, "a billing address is required unless it matches the shipping address")
		return shipTo, nil
	}
	billing, err := e.addresses.Address(ctx, *cart.BillingAddressID)
	if err != nil {
		return nil, err
	}
	if billing == nil {
		res.addError(CodeAddressMissing,
			fmt.Sprintf("billing address %d does not exist", *cart.BillingAddressID))
		return shipTo, nil
	}
	e.checkAddressShape(billing, "billing", res)
	return shipTo, nil
}

func (e *Engine) checkAddressShape(addr *domain.Address, label string, res *Result) {
	if missing := addr.MissingFields(); len(missing) > 0 {
		res.addError(CodeAddressIncomplete,
			fmt.Sprintf("%s address is missing: %s", label, strings.Join(missing, ", ")))
		return
	}
	switch strings.ToUpper(addr.Country) {
	case "KE":
		if !kenyanPhone.MatchString(strings.ReplaceAll(addr.Phone, " ", "")) {
			res.addError(CodeInvalidPhone,
				fmt.Sprintf("%s address phone %q is not a valid Kenyan number", label, addr.Phone))
		}
		if !kenyanPostalCode.MatchString(addr.PostalCode) {
			res.addError(CodeInvalidPostalCode,
				fmt.Sprintf("%s address postal code %q is not a valid Kenyan postal code", label, addr.PostalCode))
		}
	}
}
