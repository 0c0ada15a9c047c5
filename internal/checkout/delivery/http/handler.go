package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mizizzi/inventory-engine/internal/checkout/domain"
	"github.com/mizizzi/inventory-engine/internal/checkout/usecase/command"
	"github.com/mizizzi/inventory-engine/internal/httpx"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// CheckoutHandler handles HTTP requests for checkout commits and restores.
type CheckoutHandler struct {
	commit  *command.CommitCheckoutHandler
	restore *command.RestoreOrderHandler
	orders  domain.Repository
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(
	commit *command.CommitCheckoutHandler,
	restore *command.RestoreOrderHandler,
	orders domain.Repository,
) *CheckoutHandler {
	return &CheckoutHandler{commit: commit, restore: restore, orders: orders}
}

// CommitCheckout handles POST /api/checkout/commit
func (h *CheckoutHandler) CommitCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderRef string                 `json:"order_ref"`
		CartID   *string                `json:"cart_id,omitempty"`
		UserID   *uint                  `json:"user_id,omitempty"`
		Items    []command.CheckoutItem `json:"items,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	orderRef, err := uuid.Parse(req.OrderRef)
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid order reference",
		})
		return
	}
	var cartID *uuid.UUID
	if req.CartID != nil {
		id, err := uuid.Parse(*req.CartID)
		if err != nil {
			httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
				Success: false,
				Error:   "Invalid cart ID",
			})
			return
		}
		cartID = &id
	}

	order, err := h.commit.Handle(r.Context(), command.CommitCheckoutCommand{
		OrderRef: orderRef,
		CartID:   cartID,
		UserID:   req.UserID,
		Items:    req.Items,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).
			Str("order_ref", req.OrderRef).
			Msg("Checkout commit failed")
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, httpx.Response{
		Success: true,
		Message: "Checkout committed",
		Data:    order,
	})
}

// RestoreOrder handles POST /api/checkout/{order_ref}/restore
func (h *CheckoutHandler) RestoreOrder(w http.ResponseWriter, r *http.Request) {
	orderRef, err := uuid.Parse(mux.Vars(r)["order_ref"])
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid order reference",
		})
		return
	}

	order, err := h.restore.Handle(r.Context(), command.RestoreOrderCommand{OrderRef: orderRef})
	if err != nil {
		logger.Error(r.Context()).Err(err).
			Str("order_ref", orderRef.String()).
			Msg("Order restore failed")
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{
		Success: true,
		Message: "Order inventory restored",
		Data:    order,
	})
}

// GetOrder handles GET /api/checkout/{order_ref}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderRef, err := uuid.Parse(mux.Vars(r)["order_ref"])
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid order reference",
		})
		return
	}

	order, err := h.orders.FindByRef(r.Context(), orderRef)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{
		Success: true,
		Data:    order,
	})
}

// RegisterRoutes registers all checkout routes
func (h *CheckoutHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/checkout/commit", h.CommitCheckout).Methods("POST")
	router.HandleFunc("/api/checkout/{order_ref}/restore", h.RestoreOrder).Methods("POST")
	router.HandleFunc("/api/checkout/{order_ref}", h.GetOrder).Methods("GET")
}
