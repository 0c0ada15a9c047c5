package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mizizzi/inventory-engine/internal/cart/usecase/command"
	"github.com/mizizzi/inventory-engine/internal/cart/usecase/query"
	"github.com/mizizzi/inventory-engine/internal/httpx"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// CartHandler handles HTTP requests for cart validation and lifecycle.
type CartHandler struct {
	validate *query.ValidateCartHandler
	merge    *command.MergeCartsHandler
	touch    *command.TouchCartHandler
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(
	validate *query.ValidateCartHandler,
	merge *command.MergeCartsHandler,
	touch *command.TouchCartHandler,
) *CartHandler {
	return &CartHandler{validate: validate, merge: merge, touch: touch}
}

// ValidateCart handles POST /api/cart/{id}/validate
func (h *CartHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid cart ID",
		})
		return
	}

	result, err := h.validate.Handle(r.Context(), query.ValidateCartQuery{CartID: id})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Cart validation failed")
		httpx.RespondError(w, err)
		return
	}

	// Rule failures are part of the report, not an HTTP error.
	httpx.RespondJSON(w, http.StatusOK, httpx.Response{
		Success: result.Valid,
		Message: "Cart validation report",
		Data:    result,
	})
}

// MergeCarts handles POST /api/cart/merge
func (h *CartHandler) MergeCarts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceCartID string `json:"source_cart_id"`
		DestCartID   string `json:"dest_cart_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	sourceID, err := uuid.Parse(req.SourceCartID)
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid source cart ID",
		})
		return
	}
	destID, err := uuid.Parse(req.DestCartID)
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid destination cart ID",
		})
		return
	}

	merged, err := h.merge.Handle(r.Context(), command.MergeCartsCommand{
		SourceID: sourceID,
		DestID:   destID,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Cart merge failed")
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{
		Success: true,
		Message: "Carts merged successfully",
		Data:    merged,
	})
}

// TouchCart handles POST /api/cart/{id}/touch
func (h *CartHandler) TouchCart(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid cart ID",
		})
		return
	}

	if err := h.touch.Handle(r.Context(), command.TouchCartCommand{CartID: id}); err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{
		Success: true,
		Message: "Cart renewed",
	})
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/cart/merge", h.MergeCarts).Methods("POST")
	router.HandleFunc("/api/cart/{id}/validate", h.ValidateCart).Methods("POST")
	router.HandleFunc("/api/cart/{id}/touch", h.TouchCart).Methods("POST")
}
