package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartdomain "github.com/mizizzi/inventory-engine/internal/cart/domain"
	"github.com/mizizzi/inventory-engine/internal/cart/validation"
	"github.com/mizizzi/inventory-engine/internal/checkout/domain"
	resdomain "github.com/mizizzi/inventory-engine/internal/reservation/domain"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/errs"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

// EventPublisher announces inventory state changes to the rest of the
// platform. A nil publisher disables events.
type EventPublisher interface {
	PublishOrderCommitted(ctx context.Context, order *domain.Order) error
	PublishOrderRestored(ctx context.Context, order *domain.Order) error
	PublishStockLow(ctx context.Context, rec *stockdomain.StockRecord) error
}

// CheckoutItem is one ad-hoc line for cart-less commits.
type CheckoutItem struct {
	ProductID     uint            `json:"product_id"`
	VariantID     uint            `json:"variant_id"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	ReservationID *uuid.UUID      `json:"reservation_id,omitempty"`
}

// CommitCheckoutCommand converts a cart (or an ad-hoc item list) into a
// committed order under OrderRef. Replays of the same OrderRef return the
// stored order.
type CommitCheckoutCommand struct {
	OrderRef uuid.UUID
	CartID   *uuid.UUID
	UserID   *uint
	Items    []CheckoutItem
}

// CommitCheckoutHandler coordinates the checkout commit: re-validate the
// cart, take every line's key lock in sorted order, then run the
// all-or-nothing commit transaction.
type CommitCheckoutHandler struct {
	orders       domain.Repository
	carts        cartdomain.CartRepository
	reservations resdomain.Repository
	engine       *validation.Engine
	ledger       stockdomain.LedgerRepository
	locks        locker.KeyLocker
	publisher    EventPublisher
	metrics      *metrics.EngineMetrics
	lockWait     time.Duration
}

func NewCommitCheckoutHandler(
	orders domain.Repository,
	carts cartdomain.CartRepository,
	reservations resdomain.Repository,
	engine *validation.Engine,
	ledger stockdomain.LedgerRepository,
	locks locker.KeyLocker,
	publisher EventPublisher,
	m *metrics.EngineMetrics,
	lockWait time.Duration,
) *CommitCheckoutHandler {
	return &CommitCheckoutHandler{
		orders:       orders,
		carts:        carts,
		reservations: reservations,
		engine:       engine,
		ledger:       ledger,
		locks:        locks,
		publisher:    publisher,
		metrics:      m,
		lockWait:     lockWait,
	}
}

func (h *CommitCheckoutHandler) Handle(ctx context.Context, cmd CommitCheckoutCommand) (*domain.Order, error) {
	if cmd.OrderRef == uuid.Nil {
		return nil, errs.New(errs.KindInvalidState, "order_ref is required")
	}

	// A replayed event may carry nothing but the order_ref: the cart can be
	// deactivated and the item list empty by the time it arrives. Answer
	// replays from the store before demanding either.
	if stored, err := h.orders.FindByRef(ctx, cmd.OrderRef); err == nil {
		logger.Info(ctx).
			Str("order_ref", cmd.OrderRef.String()).
			Msg("Duplicate commit event ignored")
		return stored, nil
	} else if !errs.Is(err, errs.KindNotFound) {
		return nil, err
	}

	order := &domain.Order{
		OrderRef: cmd.OrderRef,
		CartID:   cmd.CartID,
		UserID:   cmd.UserID,
	}
	if cmd.CartID != nil {
		if err := h.buildFromCart(ctx, cmd, order); err != nil {
			return nil, err
		}
	} else {
		if len(cmd.Items) == 0 {
			return nil, errs.New(errs.KindInvalidState, "a cart or an item list is required")
		}
		buildFromItems(cmd, order)
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

	stored, created, err := h.orders.CommitOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	if !created {
		logger.Info(ctx).
			Str("order_ref", cmd.OrderRef.String()).
			Msg("Duplicate commit event ignored")
		return stored, nil
	}

	h.metrics.CheckoutCommits.Inc()
	logger.Info(ctx).
		Str("order_ref", stored.OrderRef.String()).
		Int("items", len(stored.Items)).
		Str("total", stored.Total.String()).
		Msg("Checkout committed")

	if h.publisher != nil {
		if err := h.publisher.PublishOrderCommitted(ctx, stored); err != nil {
			// The commit already landed; the event is best effort.
			logger.Error(ctx).Err(err).
				Str("order_ref", stored.OrderRef.String()).
				Msg("Failed to publish order committed event")
		}
		h.announceLowStock(ctx, stored)
	}
	return stored, nil
}

// announceLowStock emits a stock.low event for every committed key the
// deduction left at or below its threshold. Best effort, after the commit.
func (h *CommitCheckoutHandler) announceLowStock(ctx context.Context, order *domain.Order) {
	if h.ledger == nil {
		return
	}
	seen := make(map[locker.Key]bool, len(order.Items))
	for _, item := range order.Items {
		key := item.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		rec, err := h.ledger.FindByKey(ctx, key)
		if err != nil || rec == nil || !rec.IsLowStock() {
			continue
		}
		if err := h.publisher.PublishStockLow(ctx, rec); err != nil {
			logger.Warn(ctx).Err(err).
				Uint("product_id", key.ProductID).
				Uint("variant_id", key.VariantID).
				Msg("Failed to publish stock low event")
		}
	}
}

// buildFromCart re-validates the cart and assembles the order lines from
// its items and their backing reservations.
func (h *CommitCheckoutHandler) buildFromCart(ctx context.Context, cmd CommitCheckoutCommand, order *domain.Order) error {
	cart, err := h.carts.FindWithItems(ctx, *cmd.CartID)
	if err != nil {
		return err
	}
	result, err := h.engine.Validate(ctx, cart)
	if err != nil {
		return err
	}
	if !result.Valid {
		return errs.Newf(errs.KindInvalidState,
			"cart %s failed validation with %d errors", cart.ID, len(result.Errors))
	}

	active, err := h.reservations.FindActiveByCart(ctx, cart.ID)
	if err != nil {
		return err
	}
	byKey := make(map[locker.Key]*resdomain.Reservation, len(active))
	for i := range active {
		byKey[active[i].Key()] = &active[i]
	}

	if order.UserID == nil {
		order.UserID = cart.UserID
	}
	order.CouponCode = cart.CouponCode
	order.Subtotal = result.Totals.Subtotal
	order.Discount = result.Totals.Discount
	order.Total = result.Totals.Total

	for _, item := range cart.Items {
		line := domain.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
		key := locker.Key{ProductID: item.ProductID, VariantID: item.VariantID}
		if res, ok := byKey[key]; ok {
			id := res.ID
			line.ReservationID = &id
		}
		order.Items = append(order.Items, line)
	}
	return nil
}

func buildFromItems(cmd CommitCheckoutCommand, order *domain.Order) {
	subtotal := decimal.Zero
	for _, item := range cmd.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			Quantity:      item.Quantity,
			Price:         item.Price,
			ReservationID: item.ReservationID,
		})
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	order.Subtotal = subtotal
	order.Total = subtotal
}
