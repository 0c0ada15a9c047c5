package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mizizzi/inventory-engine/internal/httpx"
	"github.com/mizizzi/inventory-engine/internal/reservation/usecase/command"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// ReservationHandler handles HTTP requests for stock reservations.
type ReservationHandler struct {
	create  *command.CreateReservationHandler
	cancel  *command.CancelReservationHandler
	renew   *command.RenewReservationHandler
	release *command.ReleaseQuantityHandler
}

// NewReservationHandler creates a new reservation handler.
func NewReservationHandler(
	create *command.CreateReservationHandler,
	cancel *command.CancelReservationHandler,
	renew *command.RenewReservationHandler,
	release *command.ReleaseQuantityHandler,
) *ReservationHandler {
	return &ReservationHandler{create: create, cancel: cancel, renew: renew, release: release}
}

// ReserveStock handles POST /api/reservations
func (h *ReservationHandler) ReserveStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CartID    string `json:"cart_id"`
		UserID    *uint  `json:"user_id"`
		ProductID uint   `json:"product_id"`
		VariantID uint   `json:"variant_id"`
		Quantity  int    `json:"quantity"`
		TTLSecs   int    `json:"ttl_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid cart ID",
		})
		return
	}

	res, err := h.create.Handle(r.Context(), command.CreateReservationCommand{
		CartID:    cartID,
		UserID:    req.UserID,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		TTL:       time.Duration(req.TTLSecs) * time.Second,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, httpx.Response{
		Success: true,
		Message: "Stock reserved successfully",
		Data:    res,
	})
}

// ReleaseReservation handles DELETE /api/reservations/{id}
func (h *ReservationHandler) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid reservation ID",
		})
		return
	}

	if err := h.cancel.Handle(r.Context(), command.CancelReservationCommand{ReservationID: id}); err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to cancel reservation")
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{
		Success: true,
		Message: "Reservation released",
	})
}

// RenewReservation handles PATCH /api/reservations/{id}/renew
func (h *ReservationHandler) RenewReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid reservation ID",
		})
		return
	}

	var req struct {
		TTLSecs int `json:"ttl_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	err = h.renew.Handle(r.Context(), command.RenewReservationCommand{
		ReservationID: id,
		TTL:           time.Duration(req.TTLSecs) * time.Second,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{
		Success: true,
		Message: "Reservation renewed",
	})
}

// ReleaseByKey handles POST /api/reservations/release
func (h *ReservationHandler) ReleaseByKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID   uint   `json:"product_id"`
		VariantID   uint   `json:"variant_id"`
		Quantity    int    `json:"quantity"`
		ReferenceID string `json:"reference_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	rec, err := h.release.Handle(r.Context(), command.ReleaseQuantityCommand{
		ProductID:   req.ProductID,
		VariantID:   req.VariantID,
		Quantity:    req.Quantity,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to release reserved stock")
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{
		Success: true,
		Message: "Reserved stock released",
		Data:    rec,
	})
}

// RegisterRoutes registers all reservation routes
func (h *ReservationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/reservations", h.ReserveStock).Methods("POST")
	router.HandleFunc("/api/reservations/release", h.ReleaseByKey).Methods("POST")
	router.HandleFunc("/api/reservations/{id}", h.ReleaseReservation).Methods("DELETE")
	router.HandleFunc("/api/reservations/{id}/renew", h.RenewReservation).Methods("PATCH")
}
