package validation

import "github.com/shopspring/decimal"

// Error codes. Blocking findings carry one of these.
const (
	CodeEmptyCart             = "EMPTY_CART"
	CodeProductNotFound       = "PRODUCT_NOT_FOUND"
	CodeProductUnavailable    = "PRODUCT_UNAVAILABLE"
	CodeVariantNotFound       = "VARIANT_NOT_FOUND"
	CodeVariantMismatch       = "VARIANT_MISMATCH"
	CodeInvalidQuantity       = "INVALID_QUANTITY"
	CodeBelowMinQuantity      = "BELOW_MIN_QUANTITY"
	CodeAboveMaxQuantity      = "ABOVE_MAX_QUANTITY"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeCustomerLimitExceeded = "CUSTOMER_LIMIT_EXCEEDED"
	CodeIncompatibleProducts  = "INCOMPATIBLE_PRODUCTS"
	CodeMissingRequired       = "MISSING_REQUIRED_PRODUCT"
	CodeAddressMissing        = "ADDRESS_MISSING"
	CodeAddressIncomplete     = "ADDRESS_INCOMPLETE"
	CodeInvalidPhone          = "INVALID_PHONE"
	CodeInvalidPostalCode     = "INVALID_POSTAL_CODE"
	CodeShippingInactive      = "SHIPPING_METHOD_INACTIVE"
	CodeShippingZoneMismatch  = "SHIPPING_ZONE_MISMATCH"
	CodeBelowShippingMinimum  = "BELOW_SHIPPING_MINIMUM"
	CodeAboveMaxWeight        = "ABOVE_MAX_WEIGHT"
	CodePaymentInactive       = "PAYMENT_METHOD_INACTIVE"
	CodePaymentNotAvailable   = "PAYMENT_NOT_AVAILABLE"
	CodeAmountOutOfBounds     = "AMOUNT_OUT_OF_BOUNDS"
	CodePaymentPhoneRequired  = "PAYMENT_PHONE_REQUIRED"
	CodeCouponNotFound        = "COUPON_NOT_FOUND"
	CodeCouponInactive        = "COUPON_INACTIVE"
	CodeCouponExpired         = "COUPON_EXPIRED"
	CodeCouponExhausted       = "COUPON_USAGE_LIMIT_REACHED"
	CodeCouponBelowMinimum    = "COUPON_BELOW_MINIMUM"
	CodeCouponNotApplicable   = "COUPON_NOT_APPLICABLE"
	CodeCouponAlreadyUsed     = "COUPON_ALREADY_USED"
	CodeOrderBelowMinimum     = "ORDER_BELOW_MINIMUM"
	CodeOrderAboveMaximum     = "ORDER_ABOVE_MAXIMUM"
	CodeTooManyItems          = "TOO_MANY_ITEMS"
)

// Warning codes. Non-blocking findings.
const (
	WarnPriceChanged      = "PRICE_CHANGED"
	WarnPartiallyReserved = "PARTIALLY_RESERVED"
	WarnLegacyStock       = "LEGACY_STOCK"
	WarnZoneNotCovered    = "ZONE_NOT_COVERED"
)

// ValidationError is one blocking finding. ItemID points at the offending
// cart line when the rule is item-scoped; RelatedItemID is set for pairwise
// findings such as incompatible products.
type ValidationError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	ItemID        *uint  `json:"item_id,omitempty"`
	RelatedItemID *uint  `json:"related_item_id,omitempty"`
}

// Warning is one non-blocking finding.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ItemID  *uint  `json:"item_id,omitempty"`
}

// Totals is the priced view of the cart computed during validation.
// Promotions and coupon discounts land here; they never block.
type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	// TaxTotal stays zero until a tax provider is plugged in; it is part of
	// the wire shape so downstream consumers need no migration then.
	TaxTotal decimal.Decimal `json:"tax_total"`
	Total    decimal.Decimal `json:"total"`
}

// Result is the full validation report for one cart snapshot.
type Result struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []Warning         `json:"warnings"`
	Totals   Totals            `json:"totals"`
}

func (r *Result) addError(code, message string) {
	r.Errors = append(r.Errors, ValidationError{Code: code, Message: message})
}

func (r *Result) addItemError(code, message string, itemID uint) {
	id := itemID
	r.Errors = append(r.Errors, ValidationError{Code: code, Message: message, ItemID: &id})
}

func (r *Result) addPairError(code, message string, itemID, relatedID uint) {
	a, b := itemID, relatedID
	r.Errors = append(r.Errors, ValidationError{Code: code, Message: message, ItemID: &a, RelatedItemID: &b})
}

func (r *Result) addWarning(code, message string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: message})
}

func (r *Result) addItemWarning(code, message string, itemID uint) {
	id := itemID
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: message, ItemID: &id})
}
