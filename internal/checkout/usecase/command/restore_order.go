package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mizizzi/inventory-engine/internal/checkout/domain"
	"github.com/mizizzi/inventory-engine/pkg/errs"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

// RestoreOrderCommand returns a committed order's units to the ledger after
// a cancellation or return.
type RestoreOrderCommand struct {
	OrderRef uuid.UUID
}

// RestoreOrderHandler handles the restore order command.
type RestoreOrderHandler struct {
	orders    domain.Repository
	locks     locker.KeyLocker
	publisher EventPublisher
	metrics   *metrics.EngineMetrics
	lockWait  time.Duration
}

func NewRestoreOrderHandler(
	orders domain.Repository,
	locks locker.KeyLocker,
	publisher EventPublisher,
	m *metrics.EngineMetrics,
	lockWait time.Duration,
) *RestoreOrderHandler {
	return &RestoreOrderHandler{orders: orders, locks: locks, publisher: publisher, metrics: m, lockWait: lockWait}
}

func (h *RestoreOrderHandler) Handle(ctx context.Context, cmd RestoreOrderCommand) (*domain.Order, error) {
	if cmd.OrderRef == uuid.Nil {
		return nil, errs.New(errs.KindInvalidState, "order_ref is required")
	}

	order, err := h.orders.FindByRef(ctx, cmd.OrderRef)
	if err != nil {
		return nil, err
	}
	if order.InventoryState != domain.InventoryCommitted {
		// Already restored, or the commit never landed. Either way a
		// repeat event is a no-op.
		logger.Info(ctx).
			Str("order_ref", cmd.OrderRef.String()).
			Str("inventory_state", order.InventoryState).
			Msg("Restore skipped; order not committed")
		return order, nil
	}

	keys := make([]locker.Key, 0, len(order.Items))
	for _, item := range order.Items {
		keys = append(keys, item.Key())
	}
	lockCtx, cancel := context.WithTimeout(ctx, h.lockWait)
	defer cancel()
	started := time.Now()
	handle, err := locker.AcquireMany(lockCtx, h.locks, keys)
	h.metrics.LockWaitSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	restored, won, err := h.orders.RestoreOrder(ctx, cmd.OrderRef)
	if err != nil {
		return nil, err
	}
	if !won {
		return restored, nil
	}

	h.metrics.CheckoutRestores.Inc()
	logger.Info(ctx).
		Str("order_ref", cmd.OrderRef.String()).
		Int("items", len(restored.Items)).
		Msg("Order inventory restored")

	if h.publisher != nil {
		if err := h.publisher.PublishOrderRestored(ctx, restored); err != nil {
			logger.Error(ctx).Err(err).
				Str("order_ref", cmd.OrderRef.String()).
				Msg("Failed to publish order restored event")
		}
	}
	return restored, nil
}
