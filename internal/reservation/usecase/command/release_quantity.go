package command

import (
	"context"
	"time"

	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

// ReleaseQuantityCommand returns held units to availability by key, for
// callers that track no reservation id (legacy integrations).
type ReleaseQuantityCommand struct {
	ProductID   uint
	VariantID   uint
	Quantity    int
	ReferenceID string
}

// ReleaseQuantityHandler handles the key-based release command.
type ReleaseQuantityHandler struct {
	ledger   stockdomain.LedgerRepository
	locks    locker.KeyLocker
	metrics  *metrics.EngineMetrics
	lockWait time.Duration
}

// NewReleaseQuantityHandler creates a new release quantity handler.
func NewReleaseQuantityHandler(ledger stockdomain.LedgerRepository, locks locker.KeyLocker, m *metrics.EngineMetrics, lockWait time.Duration) *ReleaseQuantityHandler {
	return &ReleaseQuantityHandler{ledger: ledger, locks: locks, metrics: m, lockWait: lockWait}
}

// Handle releases reserved quantity under the key lock.
func (h *ReleaseQuantityHandler) Handle(ctx context.Context, cmd ReleaseQuantityCommand) (*stockdomain.StockRecord, error) {
	if cmd.Quantity <= 0 {
		return nil, stockdomain.ErrInvalidQuantity
	}

	key := locker.Key{ProductID: cmd.ProductID, VariantID: cmd.VariantID}

	lockCtx, cancel := context.WithTimeout(ctx, h.lockWait)
	defer cancel()
	started := time.Now()
	handle, err := h.locks.Acquire(lockCtx, key)
	h.metrics.LockWaitSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	rec, err := h.ledger.ReleaseReserved(ctx, key, cmd.Quantity, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Uint("product_id", cmd.ProductID).
		Uint("variant_id", cmd.VariantID).
		Int("quantity", cmd.Quantity).
		Int("reserved", rec.ReservedQuantity).
		Msg("Reserved stock released by key")
	return rec, nil
}
