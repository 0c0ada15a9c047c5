package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
	"github.com/mizizzi/inventory-engine/pkg/errs"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

type MergeCartsCommand struct {
	SourceID uuid.UUID `json:"source_cart_id"`
	DestID   uuid.UUID `json:"dest_cart_id"`
}

// MergeCartsHandler folds a guest cart into a user cart at login. The
// repository transfers items and re-homes reservations in one transaction;
// net ledger holds never change during a merge.
type MergeCartsHandler struct {
	carts   domain.CartRepository
	cartTTL time.Duration
}

func NewMergeCartsHandler(carts domain.CartRepository, cartTTL time.Duration) *MergeCartsHandler {
	return &MergeCartsHandler{carts: carts, cartTTL: cartTTL}
}

func (h *MergeCartsHandler) Handle(ctx context.Context, cmd MergeCartsCommand) (*domain.Cart, error) {
	if cmd.SourceID == uuid.Nil || cmd.DestID == uuid.Nil {
		return nil, errs.New(errs.KindInvalidState, "both cart ids are required")
	}

	renewUntil := time.Now().Add(h.cartTTL)
	merged, err := h.carts.Merge(ctx, cmd.SourceID, cmd.DestID, renewUntil)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Str("source_cart_id", cmd.SourceID.String()).
		Str("dest_cart_id", cmd.DestID.String()).
		Int("items", len(merged.Items)).
		Msg("Carts merged")
	return merged, nil
}
