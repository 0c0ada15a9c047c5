package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mizizzi/inventory-engine/internal/reservation/domain"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

// CreateReservationCommand temporarily holds quantity units of a stock key
// for a cart.
type CreateReservationCommand struct {
	CartID    uuid.UUID
	UserID    *uint
	ProductID uint
	VariantID uint
	Quantity  int
	TTL       time.Duration
}

// CreateReservationHandler handles the create reservation command.
type CreateReservationHandler struct {
	repo       domain.Repository
	locks      locker.KeyLocker
	metrics    *metrics.EngineMetrics
	lockWait   time.Duration
	defaultTTL time.Duration
}

// NewCreateReservationHandler creates a new create reservation handler.
// defaultTTL applies to commands that carry no TTL of their own; zero falls
// back to domain.DefaultTTL.
func NewCreateReservationHandler(repo domain.Repository, locks locker.KeyLocker, m *metrics.EngineMetrics, lockWait, defaultTTL time.Duration) *CreateReservationHandler {
	if defaultTTL <= 0 {
		defaultTTL = domain.DefaultTTL
	}
	return &CreateReservationHandler{repo: repo, locks: locks, metrics: m, lockWait: lockWait, defaultTTL: defaultTTL}
}

// Handle reserves ledger stock and persists the reservation under the key
// lock. On a ledger rejection nothing is persisted.
func (h *CreateReservationHandler) Handle(ctx context.Context, cmd CreateReservationCommand) (*domain.Reservation, error) {
	if cmd.Quantity <= 0 {
		return nil, stockdomain.ErrInvalidQuantity
	}
	if cmd.CartID == uuid.Nil {
		return nil, errors.New("cart_id is required")
	}
	ttl := cmd.TTL
	if ttl <= 0 {
		ttl = h.defaultTTL
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

	res := &domain.Reservation{
		ID:        uuid.New(),
		CartID:    cmd.CartID,
		UserID:    cmd.UserID,
		ProductID: cmd.ProductID,
		VariantID: cmd.VariantID,
		Quantity:  cmd.Quantity,
		Status:    domain.StatusActive,
		ExpiresAt: time.Now().Add(ttl),
	}

	if err := h.repo.CreateWithReserve(ctx, res); err != nil {
		if errors.Is(err, stockdomain.ErrInsufficientStock) {
			h.metrics.InsufficientStock.Inc()
			logger.Info(ctx).
				Str("cart_id", cmd.CartID.String()).
				Uint("product_id", cmd.ProductID).
				Int("quantity", cmd.Quantity).
				Msg("Reservation rejected: insufficient stock")
		}
		return nil, err
	}

	h.metrics.ReservationsCreated.Inc()
	logger.Info(ctx).
		Str("reservation_id", res.ID.String()).
		Str("cart_id", cmd.CartID.String()).
		Uint("product_id", cmd.ProductID).
		Uint("variant_id", cmd.VariantID).
		Int("quantity", cmd.Quantity).
		Time("expires_at", res.ExpiresAt).
		Msg("Reservation created")

	return res, nil
}
