package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mizizzi/inventory-engine/internal/reservation/domain"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// RenewReservationCommand extends an ACTIVE reservation's deadline, used on
// cart update and cart merge.
type RenewReservationCommand struct {
	ReservationID uuid.UUID
	TTL           time.Duration
}

// RenewReservationHandler handles the renew reservation command.
type RenewReservationHandler struct {
	repo domain.Repository
}

// NewRenewReservationHandler creates a new renew reservation handler.
func NewRenewReservationHandler(repo domain.Repository) *RenewReservationHandler {
	return &RenewReservationHandler{repo: repo}
}

// Handle executes the renewal. Renewing touches no ledger state, so no key
// lock is needed.
func (h *RenewReservationHandler) Handle(ctx context.Context, cmd RenewReservationCommand) error {
	ttl := cmd.TTL
	if ttl <= 0 {
		ttl = domain.DefaultTTL
	}

	until := time.Now().Add(ttl)
	if err := h.repo.Renew(ctx, cmd.ReservationID, until); err != nil {
		return err
	}

	logger.Debug(ctx).
		Str("reservation_id", cmd.ReservationID.String()).
		Time("expires_at", until).
		Msg("Reservation renewed")
	return nil
}
