package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizizzi/inventory-engine/internal/checkout/domain"
	"github.com/mizizzi/inventory-engine/internal/checkout/events"
	"github.com/mizizzi/inventory-engine/internal/checkout/usecase/command"
	"github.com/mizizzi/inventory-engine/kafka"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

type stubOrders struct {
	orders map[uuid.UUID]*domain.Order
}

func (s *stubOrders) CommitOrder(_ context.Context, order *domain.Order) (*domain.Order, bool, error) {
	if existing, ok := s.orders[order.OrderRef]; ok {
		return existing, false, nil
	}
	stored := *order
	stored.InventoryState = domain.InventoryCommitted
	s.orders[order.OrderRef] = &stored
	return &stored, true, nil
}

func (s *stubOrders) RestoreOrder(_ context.Context, orderRef uuid.UUID) (*domain.Order, bool, error) {
	order, ok := s.orders[orderRef]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if order.InventoryState != domain.InventoryCommitted {
		return order, false, nil
	}
	order.InventoryState = domain.InventoryRestored
	return order, true, nil
}

func (s *stubOrders) FindByRef(_ context.Context, orderRef uuid.UUID) (*domain.Order, error) {
	order, ok := s.orders[orderRef]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func newStatusHandler(orders *stubOrders) *events.StatusHandler {
	locks := locker.NewKeyLockTable()
	m := metrics.NewUnregistered()
	commit := command.NewCommitCheckoutHandler(orders, nil, nil, nil, nil, locks, nil, m, time.Second)
	restore := command.NewRestoreOrderHandler(orders, locks, nil, m, time.Second)
	return events.NewStatusHandler(commit, restore, nil, false)
}

func TestStatusCancelledRestoresInventory(t *testing.T) {
	orderRef := uuid.New()
	orders := &stubOrders{orders: map[uuid.UUID]*domain.Order{
		orderRef: {OrderRef: orderRef, InventoryState: domain.InventoryCommitted},
	}}
	handler := newStatusHandler(orders)

	err := handler.Handle(context.Background(), kafka.OrderStatusChangedEvent{
		EventID:  uuid.NewString(),
		OrderRef: orderRef,
		Status:   kafka.StatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InventoryRestored, orders.orders[orderRef].InventoryState)

	// The storefront retries events; a second cancellation is a no-op.
	err = handler.Handle(context.Background(), kafka.OrderStatusChangedEvent{
		EventID:  uuid.NewString(),
		OrderRef: orderRef,
		Status:   kafka.StatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InventoryRestored, orders.orders[orderRef].InventoryState)
}

func TestUnknownStatusIsIgnored(t *testing.T) {
	orderRef := uuid.New()
	orders := &stubOrders{orders: map[uuid.UUID]*domain.Order{
		orderRef: {OrderRef: orderRef, InventoryState: domain.InventoryCommitted},
	}}
	handler := newStatusHandler(orders)

	err := handler.Handle(context.Background(), kafka.OrderStatusChangedEvent{
		EventID:  uuid.NewString(),
		OrderRef: orderRef,
		Status:   "shipped",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InventoryCommitted, orders.orders[orderRef].InventoryState)
}
