package command_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizizzi/inventory-engine/internal/reservation/domain"
	"github.com/mizizzi/inventory-engine/internal/reservation/usecase/command"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

// memRepo keeps reservations and a stock map in memory and applies the same
// atomic reserve/release pairing the database repository does.
type memRepo struct {
	mu           sync.Mutex
	stock        map[locker.Key]*stockdomain.StockRecord
	reservations map[uuid.UUID]*domain.Reservation
}

func newMemRepo() *memRepo {
	return &memRepo{
		stock:        make(map[locker.Key]*stockdomain.StockRecord),
		reservations: make(map[uuid.UUID]*domain.Reservation),
	}
}

func (m *memRepo) seed(key locker.Key, stock int) {
	m.stock[key] = &stockdomain.StockRecord{
		ProductID:  key.ProductID,
		VariantID:  key.VariantID,
		StockLevel: stock,
		Status:     stockdomain.StatusActive,
	}
}

func (m *memRepo) CreateWithReserve(_ context.Context, res *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stock[res.Key()]
	if !ok {
		return stockdomain.ErrNotFound
	}
	if err := rec.Reserve(res.Quantity); err != nil {
		return err
	}
	clone := *res
	m.reservations[res.ID] = &clone
	return nil
}

func (m *memRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *res
	return &clone, nil
}

func (m *memRepo) FindActiveByCart(_ context.Context, cartID uuid.UUID) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, res := range m.reservations {
		if res.CartID == cartID && res.Status == domain.StatusActive {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (m *memRepo) Renew(_ context.Context, id uuid.UUID, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok || res.Status != domain.StatusActive {
		return domain.ErrNotFound
	}
	res.ExpiresAt = until
	return nil
}

func (m *memRepo) CancelWithRelease(_ context.Context, id uuid.UUID) (bool, error) {
	return m.transition(id, domain.StatusCancelled)
}

func (m *memRepo) ExpireWithRelease(_ context.Context, id uuid.UUID) (bool, error) {
	return m.transition(id, domain.StatusExpired)
}

func (m *memRepo) transition(id uuid.UUID, to domain.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if res.Status != domain.StatusActive {
		return false, nil
	}
	res.Status = to
	m.stock[res.Key()].Release(res.Quantity)
	return true, nil
}

func (m *memRepo) FindExpired(_ context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, res := range m.reservations {
		if res.Status == domain.StatusActive && res.IsExpired(now) && len(out) < limit {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (m *memRepo) SumActiveByKey(context.Context) ([]domain.KeyReserved, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey := make(map[locker.Key]int)
	for _, res := range m.reservations {
		if res.Status == domain.StatusActive {
			byKey[res.Key()] += res.Quantity
		}
	}
	out := make([]domain.KeyReserved, 0, len(byKey))
	for key, total := range byKey {
		out = append(out, domain.KeyReserved{ProductID: key.ProductID, VariantID: key.VariantID, Total: total})
	}
	return out, nil
}

var _ domain.Repository = (*memRepo)(nil)

func TestCreateReservationHonorsAvailability(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	key := locker.Key{ProductID: 7}
	repo.seed(key, 10)

	locks := locker.NewKeyLockTable()
	m := metrics.NewUnregistered()
	create := command.NewCreateReservationHandler(repo, locks, m, time.Second, 0)
	cancel := command.NewCancelReservationHandler(repo, locks, m, time.Second)

	cartID := uuid.New()

	first, err := create.Handle(ctx, command.CreateReservationCommand{
		CartID: cartID, ProductID: 7, Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, first.Status)
	assert.Equal(t, 4, repo.stock[key].ReservedQuantity)

	// 7 more would need 11 of 10; the ledger rejects and persists nothing.
	_, err = create.Handle(ctx, command.CreateReservationCommand{
		CartID: cartID, ProductID: 7, Quantity: 7,
	})
	require.ErrorIs(t, err, stockdomain.ErrInsufficientStock)
	assert.Equal(t, 4, repo.stock[key].ReservedQuantity)
	assert.Len(t, repo.reservations, 1)

	require.NoError(t, cancel.Handle(ctx, command.CancelReservationCommand{ReservationID: first.ID}))
	assert.Equal(t, 0, repo.stock[key].ReservedQuantity)

	// With the hold released the same 7 now fit.
	_, err = create.Handle(ctx, command.CreateReservationCommand{
		CartID: cartID, ProductID: 7, Quantity: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, repo.stock[key].ReservedQuantity)
}

func TestCreateReservationRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	create := command.NewCreateReservationHandler(repo, locker.NewKeyLockTable(), metrics.NewUnregistered(), time.Second, 0)

	_, err := create.Handle(ctx, command.CreateReservationCommand{
		CartID: uuid.New(), ProductID: 7, Quantity: 0,
	})
	assert.ErrorIs(t, err, stockdomain.ErrInvalidQuantity)

	_, err = create.Handle(ctx, command.CreateReservationCommand{
		ProductID: 7, Quantity: 1,
	})
	assert.Error(t, err, "nil cart id must be rejected")
}

func TestCreateReservationAppliesDefaultTTL(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	key := locker.Key{ProductID: 7}
	repo.seed(key, 10)
	create := command.NewCreateReservationHandler(repo, locker.NewKeyLockTable(), metrics.NewUnregistered(), time.Second, 0)

	res, err := create.Handle(ctx, command.CreateReservationCommand{
		CartID: uuid.New(), ProductID: 7, Quantity: 1,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(domain.DefaultTTL), res.ExpiresAt, 5*time.Second)
}

func TestCreateReservationAppliesConfiguredTTL(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	key := locker.Key{ProductID: 7}
	repo.seed(key, 10)
	configured := 45 * time.Minute
	create := command.NewCreateReservationHandler(repo, locker.NewKeyLockTable(), metrics.NewUnregistered(), time.Second, configured)

	// No TTL on the command: the handler's configured default wins, not the
	// package constant.
	res, err := create.Handle(ctx, command.CreateReservationCommand{
		CartID: uuid.New(), ProductID: 7, Quantity: 1,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(configured), res.ExpiresAt, 5*time.Second)

	// An explicit TTL on the command still overrides the configured default.
	res, err = create.Handle(ctx, command.CreateReservationCommand{
		CartID: uuid.New(), ProductID: 7, Quantity: 1, TTL: 2 * time.Hour,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), res.ExpiresAt, 5*time.Second)
}

func TestCancelTerminalReservationIsNoOp(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	key := locker.Key{ProductID: 7}
	repo.seed(key, 10)
	locks := locker.NewKeyLockTable()
	m := metrics.NewUnregistered()
	create := command.NewCreateReservationHandler(repo, locks, m, time.Second, 0)
	cancel := command.NewCancelReservationHandler(repo, locks, m, time.Second)

	res, err := create.Handle(ctx, command.CreateReservationCommand{
		CartID: uuid.New(), ProductID: 7, Quantity: 3,
	})
	require.NoError(t, err)

	require.NoError(t, cancel.Handle(ctx, command.CancelReservationCommand{ReservationID: res.ID}))
	assert.Equal(t, 0, repo.stock[key].ReservedQuantity)

	// A second cancel finds a terminal row and must not double-release.
	require.NoError(t, cancel.Handle(ctx, command.CancelReservationCommand{ReservationID: res.ID}))
	assert.Equal(t, 0, repo.stock[key].ReservedQuantity)
	assert.Equal(t, domain.StatusCancelled, repo.reservations[res.ID].Status)
}

func TestRenewExtendsActiveOnly(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	key := locker.Key{ProductID: 7}
	repo.seed(key, 10)
	locks := locker.NewKeyLockTable()
	m := metrics.NewUnregistered()
	create := command.NewCreateReservationHandler(repo, locks, m, time.Second, 0)
	cancel := command.NewCancelReservationHandler(repo, locks, m, time.Second)
	renew := command.NewRenewReservationHandler(repo)

	res, err := create.Handle(ctx, command.CreateReservationCommand{
		CartID: uuid.New(), ProductID: 7, Quantity: 1, TTL: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, renew.Handle(ctx, command.RenewReservationCommand{
		ReservationID: res.ID, TTL: time.Hour,
	}))
	renewed, err := repo.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), renewed.ExpiresAt, 5*time.Second)

	require.NoError(t, cancel.Handle(ctx, command.CancelReservationCommand{ReservationID: res.ID}))
	err = renew.Handle(ctx, command.RenewReservationCommand{ReservationID: res.ID, TTL: time.Hour})
	assert.Error(t, err, "terminal reservations are not renewable")
}
