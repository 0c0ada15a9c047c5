package command_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizizzi/inventory-engine/internal/checkout/domain"
	"github.com/mizizzi/inventory-engine/internal/checkout/usecase/command"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

// memOrders reproduces the repository's idempotency contract: the first
// commit of an order_ref wins, replays get the stored order back.
type memOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *memOrders) CommitOrder(_ context.Context, order *domain.Order) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.orders[order.OrderRef]; ok {
		clone := *existing
		return &clone, false, nil
	}
	stored := *order
	stored.InventoryState = domain.InventoryCommitted
	m.orders[order.OrderRef] = &stored
	clone := stored
	return &clone, true, nil
}

func (m *memOrders) RestoreOrder(_ context.Context, orderRef uuid.UUID) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderRef]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if order.InventoryState != domain.InventoryCommitted {
		clone := *order
		return &clone, false, nil
	}
	order.InventoryState = domain.InventoryRestored
	clone := *order
	return &clone, true, nil
}

func (m *memOrders) FindByRef(_ context.Context, orderRef uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderRef]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *order
	return &clone, nil
}

var _ domain.Repository = (*memOrders)(nil)

type capturePublisher struct {
	mu        sync.Mutex
	committed []uuid.UUID
	restored  []uuid.UUID
}

func (p *capturePublisher) PublishOrderCommitted(_ context.Context, order *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.committed = append(p.committed, order.OrderRef)
	return nil
}

func (p *capturePublisher) PublishOrderRestored(_ context.Context, order *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restored = append(p.restored, order.OrderRef)
	return nil
}

func (p *capturePublisher) PublishStockLow(context.Context, *stockdomain.StockRecord) error {
	return nil
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func adHocItems() []command.CheckoutItem {
	return []command.CheckoutItem{
		{ProductID: 10, Quantity: 2, Price: price("25.00")},
		{ProductID: 11, VariantID: 3, Quantity: 1, Price: price("10.00")},
	}
}

func TestCommitCheckoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	orders := newMemOrders()
	publisher := &capturePublisher{}
	m := metrics.NewUnregistered()
	commit := command.NewCommitCheckoutHandler(orders, nil, nil, nil, nil,
		locker.NewKeyLockTable(), publisher, m, time.Second)

	cmd := command.CommitCheckoutCommand{OrderRef: uuid.New(), Items: adHocItems()}

	first, err := commit.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.InventoryCommitted, first.InventoryState)
	assert.True(t, first.Total.Equal(price("60.00")), "total %s", first.Total)

	// Replaying the same order_ref must not commit twice.
	second, err := commit.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.OrderRef, second.OrderRef)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CheckoutCommits))
	assert.Len(t, publisher.committed, 1)
	assert.Len(t, orders.orders, 1)
}

func TestCommitCheckoutReplayWithBareOrderRef(t *testing.T) {
	ctx := context.Background()
	orders := newMemOrders()
	publisher := &capturePublisher{}
	m := metrics.NewUnregistered()
	commit := command.NewCommitCheckoutHandler(orders, nil, nil, nil, nil,
		locker.NewKeyLockTable(), publisher, m, time.Second)

	orderRef := uuid.New()
	first, err := commit.Handle(ctx, command.CommitCheckoutCommand{OrderRef: orderRef, Items: adHocItems()})
	require.NoError(t, err)

	// A redelivered confirmation may carry nothing but the order_ref: by
	// then the cart is gone and no item list travels with the event. The
	// replay must answer from the store, not demand a cart or items.
	second, err := commit.Handle(ctx, command.CommitCheckoutCommand{OrderRef: orderRef})
	require.NoError(t, err)
	assert.Equal(t, first.OrderRef, second.OrderRef)
	assert.True(t, first.Total.Equal(second.Total))
	assert.Equal(t, domain.InventoryCommitted, second.InventoryState)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CheckoutCommits))
	assert.Len(t, publisher.committed, 1)
}

func TestCommitCheckoutRejectsEmptyCommand(t *testing.T) {
	ctx := context.Background()
	commit := command.NewCommitCheckoutHandler(newMemOrders(), nil, nil, nil, nil,
		locker.NewKeyLockTable(), nil, metrics.NewUnregistered(), time.Second)

	_, err := commit.Handle(ctx, command.CommitCheckoutCommand{Items: adHocItems()})
	assert.Error(t, err, "nil order_ref must be rejected")

	_, err = commit.Handle(ctx, command.CommitCheckoutCommand{OrderRef: uuid.New()})
	assert.Error(t, err, "cart-less commits need an item list")
}

func TestCommitCheckoutTimesOutOnHeldKey(t *testing.T) {
	ctx := context.Background()
	locks := locker.NewKeyLockTable()
	commit := command.NewCommitCheckoutHandler(newMemOrders(), nil, nil, nil, nil,
		locks, nil, metrics.NewUnregistered(), 50*time.Millisecond)

	blocker, err := locks.Acquire(ctx, locker.Key{ProductID: 10})
	require.NoError(t, err)
	defer blocker.Release()

	_, err = commit.Handle(ctx, command.CommitCheckoutCommand{OrderRef: uuid.New(), Items: adHocItems()})
	assert.ErrorIs(t, err, locker.ErrLockTimeout)
}

func TestRestoreOrderRunsOnce(t *testing.T) {
	ctx := context.Background()
	orders := newMemOrders()
	publisher := &capturePublisher{}
	m := metrics.NewUnregistered()
	commit := command.NewCommitCheckoutHandler(orders, nil, nil, nil, nil,
		locker.NewKeyLockTable(), publisher, m, time.Second)
	restore := command.NewRestoreOrderHandler(orders, locker.NewKeyLockTable(), publisher, m, time.Second)

	orderRef := uuid.New()
	_, err := commit.Handle(ctx, command.CommitCheckoutCommand{OrderRef: orderRef, Items: adHocItems()})
	require.NoError(t, err)

	restored, err := restore.Handle(ctx, command.RestoreOrderCommand{OrderRef: orderRef})
	require.NoError(t, err)
	assert.Equal(t, domain.InventoryRestored, restored.InventoryState)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CheckoutRestores))
	assert.Len(t, publisher.restored, 1)

	// A repeated cancellation event finds the order already restored.
	again, err := restore.Handle(ctx, command.RestoreOrderCommand{OrderRef: orderRef})
	require.NoError(t, err)
	assert.Equal(t, domain.InventoryRestored, again.InventoryState)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CheckoutRestores))
	assert.Len(t, publisher.restored, 1)
}

func TestRestoreUnknownOrderFails(t *testing.T) {
	ctx := context.Background()
	restore := command.NewRestoreOrderHandler(newMemOrders(), locker.NewKeyLockTable(), nil,
		metrics.NewUnregistered(), time.Second)

	_, err := restore.Handle(ctx, command.RestoreOrderCommand{OrderRef: uuid.New()})
	assert.Error(t, err)
}
