// Package validation runs a cart snapshot through the full checkout rule
// set and returns every blocking error and non-blocking warning in one pass.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// Bounds are the global order-size limits from configuration. A zero value
// disables the corresponding bound.
type Bounds struct {
	MinOrderValue decimal.Decimal
	MaxOrderValue decimal.Decimal
	MaxItems      int
}

// Engine validates carts. It reads reference data and the stock ledger but
// never mutates reservation state; its only write is the silent repair of a
// stale line-price snapshot.
type Engine struct {
	carts     domain.CartRepository
	catalog   domain.Catalog
	addresses domain.AddressBook
	shipping  domain.ShippingMethods
	payments  domain.PaymentMethods
	coupons   domain.CouponStore
	promos    domain.PromotionStore
	history   domain.PurchaseHistory
	ledger    stockdomain.LedgerRepository
	legacy    stockdomain.LegacyStockSource

	bounds Bounds
	now    func() time.Time
}

func NewEngine(
	carts domain.CartRepository,
	catalog domain.Catalog,
	addresses domain.AddressBook,
	shipping domain.ShippingMethods,
	payments domain.PaymentMethods,
	coupons domain.CouponStore,
	promos domain.PromotionStore,
	history domain.PurchaseHistory,
	ledger stockdomain.LedgerRepository,
	legacy stockdomain.LegacyStockSource,
	bounds Bounds,
) *Engine {
	return &Engine{
		carts:     carts,
		catalog:   catalog,
		addresses: addresses,
		shipping:  shipping,
		payments:  payments,
		coupons:   coupons,
		promos:    promos,
		history:   history,
		ledger:    ledger,
		legacy:    legacy,
		bounds:    bounds,
		now:       time.Now,
	}
}

// line pairs a cart item with its resolved catalog records. Product or
// variant may be nil when the existence rule already failed for the line;
// later rules skip nil lines rather than pile on derivative errors.
type line struct {
	item    domain.CartItem
	product *domain.Product
	variant *domain.Variant
}

// Validate runs every rule against the cart and reports all findings.
// Rule failures are data, not errors; the error return is reserved for
// infrastructure failures (storage unreachable), which abort the pass.
func (e *Engine) Validate(ctx context.Context, cart *domain.Cart) (*Result, error) {
	res := &Result{
		Totals: Totals{
			Subtotal:     decimal.Zero,
			Discount:     decimal.Zero,
			ShippingCost: decimal.Zero,
			TaxTotal:     decimal.Zero,
			Total:        decimal.Zero,
		},
	}

	if len(cart.Items) == 0 {
		res.addError(CodeEmptyCart, "cart has no items")
		return res, nil
	}

	lines, err := e.resolveLines(ctx, cart, res)
	if err != nil {
		return nil, err
	}

	for i := range lines {
		if lines[i].product == nil {
			continue
		}
		if err := e.checkQuantity(&lines[i], res); err != nil {
			return nil, err
		}
		if err := e.checkStock(ctx, cart, &lines[i], res); err != nil {
			return nil, err
		}
		if err := e.checkCustomerLimit(ctx, cart, &lines[i], res); err != nil {
			return nil, err
		}
		if err := e.repairPrice(ctx, &lines[i], res); err != nil {
			return nil, err
		}
	}

	if err := e.checkCompatibility(ctx, lines, res); err != nil {
		return nil, err
	}

	subtotal := subtotalOf(lines)
	res.Totals.Subtotal = subtotal

	shipTo, err := e.checkAddresses(ctx, cart, lines, res)
	if err != nil {
		return nil, err
	}
	shippingCost, err := e.checkShippingMethod(ctx, cart, lines, shipTo, subtotal, res)
	if err != nil {
		return nil, err
	}
	res.Totals.ShippingCost = shippingCost

	discount := decimal.Zero
	couponDiscount, err := e.checkCoupon(ctx, cart, lines, subtotal, res)
	if err != nil {
		return nil, err
	}
	discount = discount.Add(couponDiscount)
	promoDiscount, err := e.applyPromotions(ctx, lines, subtotal)
	if err != nil {
		return nil, err
	}
	discount = discount.Add(promoDiscount)
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	res.Totals.Discount = discount
	res.Totals.Total = subtotal.Sub(discount).Add(shippingCost).Add(res.Totals.TaxTotal)

	if err := e.checkPaymentMethod(ctx, cart, shipTo, res.Totals.Total, res); err != nil {
		return nil, err
	}

	e.checkOrderBounds(cart, subtotal, res)

	res.Valid = len(res.Errors) == 0
	return res, nil
}

// resolveLines runs the existence and visibility rule and returns the
// resolved lines for the remaining rules.
func (e *Engine) resolveLines(ctx context.Context, cart *domain.Cart, res *Result) ([]line, error) {
	lines := make([]line, 0, len(cart.Items))
	for _, item := range cart.Items {
		l := line{item: item}
		p, err := e.catalog.Product(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		switch {
		case p == nil:
			res.addItemError(CodeProductNotFound,
				fmt.Sprintf("product %d no longer exists", item.ProductID), item.ID)
		case !p.IsActive || !p.IsVisible:
			res.addItemError(CodeProductUnavailable,
				fmt.Sprintf("product %q is not available for purchase", p.Name), item.ID)
		default:
			l.product = p
		}

		if l.product != nil && item.VariantID != 0 {
			v, err := e.catalog.Variant(ctx, item.VariantID)
			if err != nil {
				return nil, err
			}
			switch {
			case v == nil || !v.IsActive:
				res.addItemError(CodeVariantNotFound,
					fmt.Sprintf("variant %d is not available", item.VariantID), item.ID)
				l.product = nil
			case v.ProductID != item.ProductID:
				res.addItemError(CodeVariantMismatch,
					fmt.Sprintf("variant %d does not belong to product %d", item.VariantID, item.ProductID), item.ID)
				l.product = nil
			default:
				l.variant = v
			}
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func (e *Engine) checkQuantity(l *line, res *Result) error {
	item, p := l.item, l.product
	if item.Quantity < 1 {
		res.addItemError(CodeInvalidQuantity, "quantity must be at least 1", item.ID)
		return nil
	}
	if p.MinPurchaseQty > 1 && item.Quantity < p.MinPurchaseQty {
		res.addItemError(CodeBelowMinQuantity,
			fmt.Sprintf("product %q requires a minimum quantity of %d", p.Name, p.MinPurchaseQty), item.ID)
	}
	if p.MaxPurchaseQty > 0 && item.Quantity > p.MaxPurchaseQty {
		res.addItemError(CodeAboveMaxQuantity,
			fmt.Sprintf("product %q is limited to %d per order", p.Name, p.MaxPurchaseQty), item.ID)
	}
	return nil
}

// checkStock enforces requested <= available. Stock that exists but is held
// by other carts produces a warning instead of an error, since those holds
// expire. Products without a ledger row fall back to the catalog's flat
// stock field with a warning.
func (e *Engine) checkStock(ctx context.Context, cart *domain.Cart, l *line, res *Result) error {
	item := l.item
	key := locker.Key{ProductID: item.ProductID, VariantID: item.VariantID}
	rec, err := e.ledger.FindByKey(ctx, key)
	if err != nil && !errors.Is(err, stockdomain.ErrNotFound) {
		return err
	}
	if rec == nil {
		stock, found, err := e.legacy.LegacyStock(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if !found {
			// Existence rule already reported the product; nothing to add.
			return nil
		}
		res.addItemWarning(WarnLegacyStock,
			fmt.Sprintf("product %d has no stock ledger record; using legacy stock", item.ProductID), item.ID)
		if item.Quantity > stock {
			res.addItemError(CodeInsufficientStock,
				fmt.Sprintf("only %d of product %q in stock", stock, l.product.Name), item.ID)
		}
		return nil
	}

	available := rec.AvailableQuantity()
	switch {
	case item.Quantity <= available:
		// Fits within unreserved stock.
	case item.Quantity <= rec.StockLevel:
		res.addItemWarning(WarnPartiallyReserved,
			fmt.Sprintf("%d of %d requested units of %q are reserved by other carts",
				item.Quantity-available, item.Quantity, l.product.Name), item.ID)
	default:
		res.addItemError(CodeInsufficientStock,
			fmt.Sprintf("only %d of product %q available", available, l.product.Name), item.ID)
	}
	return nil
}

func (e *Engine) checkCustomerLimit(ctx context.Context, cart *domain.Cart, l *line, res *Result) error {
	p := l.product
	if p.CustomerLimit <= 0 || cart.UserID == nil {
		return nil
	}
	purchased, err := e.history.PurchasedQuantity(ctx, *cart.UserID, p.ID)
	if err != nil {
		return err
	}
	if purchased+l.item.Quantity > p.CustomerLimit {
		res.addItemError(CodeCustomerLimitExceeded,
			fmt.Sprintf("product %q is limited to %d per customer; you have already purchased %d",
				p.Name, p.CustomerLimit, purchased), l.item.ID)
	}
	return nil
}

// repairPrice compares the stored snapshot against the current catalog
// price and silently repairs the snapshot, warning the caller.
func (e *Engine) repairPrice(ctx context.Context, l *line, res *Result) error {
	current := l.product.CurrentPrice(l.variant)
	if l.item.Price.Equal(current) {
		return nil
	}
	if err := e.carts.UpdateItemPrice(ctx, l.item.ID, current); err != nil {
		return err
	}
	logger.Info(ctx).
		Uint("item_id", l.item.ID).
		Str("old_price", l.item.Price.String()).
		Str("new_price", current.String()).
		Msg("Repaired stale cart item price")
	res.addItemWarning(WarnPriceChanged,
		fmt.Sprintf("price of %q changed from %s to %s", l.product.Name, l.item.Price, current), l.item.ID)
	l.item.Price = current
	return nil
}

func (e *Engine) checkOrderBounds(cart *domain.Cart, subtotal decimal.Decimal, res *Result) {
	if e.bounds.MinOrderValue.IsPositive() && subtotal.LessThan(e.bounds.MinOrderValue) {
		res.addError(CodeOrderBelowMinimum,
			fmt.Sprintf("order subtotal %s is below the minimum order value %s", subtotal, e.bounds.MinOrderValue))
	}
	if e.bounds.MaxOrderValue.IsPositive() && subtotal.GreaterThan(e.bounds.MaxOrderValue) {
		res.addError(CodeOrderAboveMaximum,
			fmt.Sprintf("order subtotal %s exceeds the maximum order value %s", subtotal, e.bounds.MaxOrderValue))
	}
	if e.bounds.MaxItems > 0 && len(cart.Items) > e.bounds.MaxItems {
		res.addError(CodeTooManyItems,
			fmt.Sprintf("cart has %d items; the maximum is %d", len(cart.Items), e.bounds.MaxItems))
	}
}

func subtotalOf(lines []line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.product == nil {
			continue
		}
		total = total.Add(l.item.Price.Mul(decimal.NewFromInt(int64(l.item.Quantity))))
	}
	return total
}

func requiresShipping(lines []line) bool {
	for _, l := range lines {
		if l.product != nil && l.product.RequiresShipping {
			return true
		}
	}
	return false
}

func totalWeight(lines []line) decimal.Decimal {
	w := decimal.Zero
	for _, l := range lines {
		if l.product == nil {
			continue
		}
		w = w.Add(l.product.Weight.Mul(decimal.NewFromInt(int64(l.item.Quantity))))
	}
	return w
}
