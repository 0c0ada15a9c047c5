package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mizizzi/inventory-engine/internal/httpx"
	"github.com/mizizzi/inventory-engine/internal/stock/usecase/command"
	"github.com/mizizzi/inventory-engine/internal/stock/usecase/query"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	adjust       *command.AdjustStockHandler
	availability *query.CheckAvailabilityHandler
	lowStock     *query.ListLowStockHandler
	movements    *query.ListMovementsHandler
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(
	adjust *command.AdjustStockHandler,
	availability *query.CheckAvailabilityHandler,
	lowStock *query.ListLowStockHandler,
	movements *query.ListMovementsHandler,
) *StockHandler {
	return &StockHandler{adjust: adjust, availability: availability, lowStock: lowStock, movements: movements}
}

// CheckAvailability handles GET /api/stock/{product_id}/availability
func (h *StockHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	productID, err := strconv.ParseUint(vars["product_id"], 10, 32)
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid product ID",
		})
		return
	}

	variantID, _ := strconv.ParseUint(r.URL.Query().Get("variant_id"), 10, 32)
	qty, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	if qty == 0 {
		qty = 1
	}

	avail, err := h.availability.Handle(r.Context(), query.CheckAvailabilityQuery{
		ProductID: uint(productID),
		VariantID: uint(variantID),
		Quantity:  qty,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{Success: true, Data: avail})
}

// AdjustStock handles POST /api/stock/adjust
func (h *StockHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID   uint   `json:"product_id"`
		VariantID   uint   `json:"variant_id"`
		Delta       int    `json:"delta"`
		Reason      string `json:"reason"`
		ReferenceID string `json:"reference_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	rec, err := h.adjust.Handle(r.Context(), command.AdjustStockCommand{
		ProductID:   req.ProductID,
		VariantID:   req.VariantID,
		Delta:       req.Delta,
		Reason:      req.Reason,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to adjust stock")
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{
		Success: true,
		Message: "Stock adjusted successfully",
		Data:    rec,
	})
}

// ListLowStock handles GET /api/stock/low
func (h *StockHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	recs, err := h.lowStock.Handle(r.Context(), query.ListLowStockQuery{Limit: limit, Offset: offset})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to list low stock")
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{Success: true, Data: recs})
}

// ListMovements handles GET /api/stock/{product_id}/movements
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	productID, err := strconv.ParseUint(vars["product_id"], 10, 32)
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadRequest, httpx.Response{
			Success: false,
			Error:   "Invalid product ID",
		})
		return
	}

	variantID, _ := strconv.ParseUint(r.URL.Query().Get("variant_id"), 10, 32)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	moves, err := h.movements.Handle(r.Context(), query.ListMovementsQuery{
		ProductID: uint(productID),
		VariantID: uint(variantID),
		Limit:     limit,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to list stock movements")
		httpx.RespondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, httpx.Response{Success: true, Data: moves})
}

// RegisterRoutes registers all stock routes
func (h *StockHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/stock/low", h.ListLowStock).Methods("GET")
	router.HandleFunc("/api/stock/adjust", h.AdjustStock).Methods("POST")
	router.HandleFunc("/api/stock/{product_id}/availability", h.CheckAvailability).Methods("GET")
	router.HandleFunc("/api/stock/{product_id}/movements", h.ListMovements).Methods("GET")
}

// RegisterHealthCheck registers the health check endpoint
func RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			httpx.RespondJSON(w, http.StatusServiceUnavailable, httpx.Response{
				Success: false,
				Error:   "Database unavailable",
			})
			return
		}
		httpx.RespondJSON(w, http.StatusOK, httpx.Response{
			Success: true,
			Message: "Inventory engine is healthy",
		})
	}).Methods("GET")
}
