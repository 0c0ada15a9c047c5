package query

import (
	"context"

	"github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
)

// ListMovementsQuery lists the audit trail of a stock key, newest first.
type ListMovementsQuery struct {
	ProductID uint
	VariantID uint
	Limit     int
}

// ListMovementsHandler handles the stock movement query.
type ListMovementsHandler struct {
	repo domain.LedgerRepository
}

// NewListMovementsHandler creates a new movement handler.
func NewListMovementsHandler(repo domain.LedgerRepository) *ListMovementsHandler {
	return &ListMovementsHandler{repo: repo}
}

// Handle executes the movement query.
func (h *ListMovementsHandler) Handle(ctx context.Context, q ListMovementsQuery) ([]domain.StockMovement, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	key := locker.Key{ProductID: q.ProductID, VariantID: q.VariantID}
	return h.repo.Movements(ctx, key, q.Limit)
}
