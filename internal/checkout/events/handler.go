// Package events reacts to the storefront's order status notifications.
package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mizizzi/inventory-engine/internal/checkout/usecase/command"
	"github.com/mizizzi/inventory-engine/kafka"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

const dedupTTL = 24 * time.Hour

// StatusHandler turns order status notifications into inventory commits and
// restores. Both operations are idempotent on order_ref, so the Redis dedup
// is an optimization that skips redundant work, not a correctness
// requirement.
type StatusHandler struct {
	commit  *command.CommitCheckoutHandler
	restore *command.RestoreOrderHandler
	rdb     *redis.Client
	dedup   bool
}

func NewStatusHandler(commit *command.CommitCheckoutHandler, restore *command.RestoreOrderHandler, rdb *redis.Client, dedup bool) *StatusHandler {
	return &StatusHandler{commit: commit, restore: restore, rdb: rdb, dedup: dedup}
}

// Handle processes one notification. Unknown statuses are ignored; the
// storefront emits many statuses the engine does not care about.
func (h *StatusHandler) Handle(ctx context.Context, event kafka.OrderStatusChangedEvent) error {
	if h.seen(ctx, event.EventID) {
		logger.Info(ctx).
			Str("event_id", event.EventID).
			Str("order_ref", event.OrderRef.String()).
			Msg("Duplicate event skipped")
		return nil
	}

	switch event.Status {
	case kafka.StatusConfirmed, kafka.StatusPaid:
		_, err := h.commit.Handle(ctx, command.CommitCheckoutCommand{
			OrderRef: event.OrderRef,
			CartID:   event.CartID,
			UserID:   event.UserID,
		})
		return err
	case kafka.StatusCancelled, kafka.StatusReturned, kafka.StatusRefunded:
		_, err := h.restore.Handle(ctx, command.RestoreOrderCommand{OrderRef: event.OrderRef})
		return err
	default:
		logger.Debug(ctx).
			Str("order_ref", event.OrderRef.String()).
			Str("status", event.Status).
			Msg("Ignoring order status")
		return nil
	}
}

// seen marks the event id and reports whether it was already marked. A
// Redis failure degrades to processing the event; idempotent handlers make
// that safe.
func (h *StatusHandler) seen(ctx context.Context, eventID string) bool {
	if !h.dedup || h.rdb == nil || eventID == "" {
		return false
	}
	set, err := h.rdb.SetNX(ctx, "events:dedup:"+eventID, 1, dedupTTL).Result()
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("Event dedup check failed; processing anyway")
		return false
	}
	return !set
}
