package query

import (
	"context"

	"github.com/mizizzi/inventory-engine/internal/stock/domain"
)

// ListLowStockQuery lists records at or below their low stock threshold.
type ListLowStockQuery struct {
	Limit  int
	Offset int
}

// ListLowStockHandler handles the low stock query.
type ListLowStockHandler struct {
	repo domain.LedgerRepository
}

// NewListLowStockHandler creates a new low stock handler.
func NewListLowStockHandler(repo domain.LedgerRepository) *ListLowStockHandler {
	return &ListLowStockHandler{repo: repo}
}

// Handle executes the low stock query.
func (h *ListLowStockHandler) Handle(ctx context.Context, q ListLowStockQuery) ([]domain.StockRecord, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	return h.repo.FindLowStock(ctx, q.Limit, q.Offset)
}
