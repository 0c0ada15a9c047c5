package command

import (
	"context"
	"time"

	"github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// AdjustStockCommand applies a permanent stock change: a positive delta
// restocks, a negative delta deducts.
type AdjustStockCommand struct {
	ProductID   uint
	VariantID   uint
	Delta       int
	Reason      string
	ReferenceID string
}

// AdjustStockHandler handles the adjust stock command.
type AdjustStockHandler struct {
	repo     domain.LedgerRepository
	locks    locker.KeyLocker
	lockWait time.Duration
}

// NewAdjustStockHandler creates a new adjust stock handler.
func NewAdjustStockHandler(repo domain.LedgerRepository, locks locker.KeyLocker, lockWait time.Duration) *AdjustStockHandler {
	return &AdjustStockHandler{repo: repo, locks: locks, lockWait: lockWait}
}

// Handle executes the adjustment under the key lock.
func (h *AdjustStockHandler) Handle(ctx context.Context, cmd AdjustStockCommand) (*domain.StockRecord, error) {
	if cmd.Delta == 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if cmd.Reason == "" {
		if cmd.Delta > 0 {
			cmd.Reason = domain.MovementRestock
		} else {
			cmd.Reason = domain.MovementAdjust
		}
	}

	key := locker.Key{ProductID: cmd.ProductID, VariantID: cmd.VariantID}

	lockCtx, cancel := context.WithTimeout(ctx, h.lockWait)
	defer cancel()
	handle, err := h.locks.Acquire(lockCtx, key)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	if _, err := h.repo.GetOrCreate(ctx, key); err != nil {
		return nil, err
	}

	rec, err := h.repo.Adjust(ctx, key, cmd.Delta, cmd.Reason, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Uint("product_id", cmd.ProductID).
		Uint("variant_id", cmd.VariantID).
		Int("delta", cmd.Delta).
		Str("reason", cmd.Reason).
		Int("stock_level", rec.StockLevel).
		Msg("Stock adjusted")

	return rec, nil
}
