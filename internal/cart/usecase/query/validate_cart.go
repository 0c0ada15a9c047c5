package query

import (
	"context"

	"github.com/google/uuid"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
	"github.com/mizizzi/inventory-engine/internal/cart/validation"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

type ValidateCartQuery struct {
	CartID uuid.UUID `json:"cart_id"`
}

// ValidateCartHandler loads a cart snapshot and runs it through the rule
// engine. Safe to call repeatedly; apart from price-snapshot repair it
// changes nothing.
type ValidateCartHandler struct {
	carts  domain.CartRepository
	engine *validation.Engine
}

func NewValidateCartHandler(carts domain.CartRepository, engine *validation.Engine) *ValidateCartHandler {
	return &ValidateCartHandler{carts: carts, engine: engine}
}

func (h *ValidateCartHandler) Handle(ctx context.Context, q ValidateCartQuery) (*validation.Result, error) {
	cart, err := h.carts.FindWithItems(ctx, q.CartID)
	if err != nil {
		return nil, err
	}

	result, err := h.engine.Validate(ctx, cart)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Str("cart_id", q.CartID.String()).
		Bool("valid", result.Valid).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Msg("Cart validated")
	return result, nil
}
