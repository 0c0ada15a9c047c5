// Package httpx holds the JSON response envelope shared by all delivery
// handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mizizzi/inventory-engine/pkg/errs"
	"github.com/mizizzi/inventory-engine/pkg/locker"
)

// Response is the canonical JSON envelope.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// RespondJSON writes payload with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondError maps an engine error to a status code and writes the envelope.
func RespondError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	if errors.Is(err, locker.ErrLockTimeout) {
		kind = errs.KindLockTimeout
	}
	RespondJSON(w, statusFor(kind), Response{
		Success: false,
		Error:   err.Error(),
		Code:    string(kind),
	})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInsufficientStock, errs.KindInvalidState:
		return http.StatusConflict
	case errs.KindInvalidQuantity,
		errs.KindIncompatibleProducts,
		errs.KindMissingRequiredProduct,
		errs.KindAddressIncomplete,
		errs.KindShippingUnavailable,
		errs.KindPaymentMethodUnavailable,
		errs.KindCouponInvalid,
		errs.KindOrderLimitExceeded:
		return http.StatusUnprocessableEntity
	case errs.KindLockTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
