package query

import (
	"context"
	"errors"

	"github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
)

// CheckAvailabilityQuery asks whether qty units of a key can still be added
// to a cart.
type CheckAvailabilityQuery struct {
	ProductID uint
	VariantID uint
	Quantity  int
}

// CheckAvailabilityHandler handles the availability query.
type CheckAvailabilityHandler struct {
	repo   domain.LedgerRepository
	legacy domain.LegacyStockSource
}

// NewCheckAvailabilityHandler creates a new availability handler.
func NewCheckAvailabilityHandler(repo domain.LedgerRepository, legacy domain.LegacyStockSource) *CheckAvailabilityHandler {
	return &CheckAvailabilityHandler{repo: repo, legacy: legacy}
}

// Handle answers from the ledger, falling back to the catalog's legacy flat
// stock field when no ledger row exists yet.
func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (*domain.Availability, error) {
	if q.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	key := locker.Key{ProductID: q.ProductID, VariantID: q.VariantID}
	rec, err := h.repo.FindByKey(ctx, key)
	if err == nil {
		return &domain.Availability{
			ProductID:  q.ProductID,
			VariantID:  q.VariantID,
			Requested:  q.Quantity,
			Available:  rec.AvailableQuantity(),
			InStock:    rec.Status != domain.StatusDiscontinued && q.Quantity <= rec.AvailableQuantity(),
			IsLowStock: rec.IsLowStock(),
			Status:     rec.Status,
		}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	stock, found, err := h.legacy.LegacyStock(ctx, q.ProductID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrNotFound
	}

	status := domain.StatusActive
	if stock <= 0 {
		status = domain.StatusOutOfStock
	}
	return &domain.Availability{
		ProductID:   q.ProductID,
		VariantID:   q.VariantID,
		Requested:   q.Quantity,
		Available:   stock,
		InStock:     q.Quantity <= stock,
		IsLowStock:  stock <= 0,
		Status:      status,
		LegacyStock: true,
	}, nil
}
