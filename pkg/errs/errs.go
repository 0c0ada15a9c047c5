// Package errs defines the error taxonomy shared by every engine module.
// Mutation failures carry a Kind so delivery layers can map them to status
// codes without string matching; validation findings are plain data and do
// not travel through this package.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind string

const (
	KindNotFound                 Kind = "NOT_FOUND"
	KindInsufficientStock        Kind = "INSUFFICIENT_STOCK"
	KindInvalidQuantity          Kind = "INVALID_QUANTITY"
	KindInvalidState             Kind = "INVALID_STATE"
	KindIncompatibleProducts     Kind = "INCOMPATIBLE_PRODUCTS"
	KindMissingRequiredProduct   Kind = "MISSING_REQUIRED_PRODUCT"
	KindAddressIncomplete        Kind = "ADDRESS_INCOMPLETE"
	KindShippingUnavailable      Kind = "SHIPPING_UNAVAILABLE"
	KindPaymentMethodUnavailable Kind = "PAYMENT_METHOD_UNAVAILABLE"
	KindCouponInvalid            Kind = "COUPON_INVALID"
	KindOrderLimitExceeded       Kind = "ORDER_LIMIT_EXCEEDED"
	KindLockTimeout              Kind = "LOCK_TIMEOUT"
	KindConsistencyViolation     Kind = "CONSISTENCY_VIOLATION"
	KindInternal                 Kind = "INTERNAL"
)

// Error is a kinded error. It wraps an underlying cause when one exists.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a kinded error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind of err, or KindInternal when it carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
