package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
	resdomain "github.com/mizizzi/inventory-engine/internal/reservation/domain"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

type TouchCartCommand struct {
	CartID uuid.UUID `json:"cart_id"`
}

// TouchCartHandler renews a cart's deadline on shopper activity. The cart's
// ACTIVE reservations are renewed with it so a live cart never loses its
// holds to the sweeper.
type TouchCartHandler struct {
	carts        domain.CartRepository
	reservations resdomain.Repository
	cartTTL      time.Duration
}

func NewTouchCartHandler(carts domain.CartRepository, reservations resdomain.Repository, cartTTL time.Duration) *TouchCartHandler {
	return &TouchCartHandler{carts: carts, reservations: reservations, cartTTL: cartTTL}
}

func (h *TouchCartHandler) Handle(ctx context.Context, cmd TouchCartCommand) error {
	until := time.Now().Add(h.cartTTL)
	if err := h.carts.Touch(ctx, cmd.CartID, until); err != nil {
		return err
	}

	active, err := h.reservations.FindActiveByCart(ctx, cmd.CartID)
	if err != nil {
		return err
	}
	for _, res := range active {
		if err := h.reservations.Renew(ctx, res.ID, until); err != nil {
			// A reservation that went terminal between the list and the
			// renew is not worth failing the touch over.
			logger.Warn(ctx).
				Err(err).
				Str("reservation_id", res.ID.String()).
				Msg("Could not renew reservation during cart touch")
		}
	}

	logger.Debug(ctx).
		Str("cart_id", cmd.CartID.String()).
		Time("until", until).
		Int("reservations", len(active)).
		Msg("Cart touched")
	return nil
}
