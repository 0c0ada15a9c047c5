package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mizizzi/inventory-engine/internal/reservation/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

// CancelReservationCommand releases a hold back to availability. Cancelling
// an already-terminal reservation is a no-op, not an error.
type CancelReservationCommand struct {
	ReservationID uuid.UUID
}

// CancelReservationHandler handles the cancel reservation command.
type CancelReservationHandler struct {
	repo     domain.Repository
	locks    locker.KeyLocker
	metrics  *metrics.EngineMetrics
	lockWait time.Duration
}

// NewCancelReservationHandler creates a new cancel reservation handler.
func NewCancelReservationHandler(repo domain.Repository, locks locker.KeyLocker, m *metrics.EngineMetrics, lockWait time.Duration) *CancelReservationHandler {
	return &CancelReservationHandler{repo: repo, locks: locks, metrics: m, lockWait: lockWait}
}

// Handle executes the cancellation under the key lock.
func (h *CancelReservationHandler) Handle(ctx context.Context, cmd CancelReservationCommand) error {
	res, err := h.repo.FindByID(ctx, cmd.ReservationID)
	if err != nil {
		return err
	}
	if res.Status.IsTerminal() {
		return nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, h.lockWait)
	defer cancel()
	started := time.Now()
	handle, err := h.locks.Acquire(lockCtx, res.Key())
	h.metrics.LockWaitSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		return err
	}
	defer handle.Release()

	won, err := h.repo.CancelWithRelease(ctx, cmd.ReservationID)
	if err != nil {
		return err
	}
	if !won {
		// A concurrent commit or expiry got there first; nothing to undo.
		return nil
	}

	h.metrics.ReservationsCancelled.Inc()
	logger.Info(ctx).
		Str("reservation_id", cmd.ReservationID.String()).
		Uint("product_id", res.ProductID).
		Int("quantity", res.Quantity).
		Msg("Reservation cancelled")
	return nil
}
