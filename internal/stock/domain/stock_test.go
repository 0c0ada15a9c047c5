package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizizzi/inventory-engine/internal/stock/domain"
)

func TestReserveWithinAvailability(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 10, Status: domain.StatusActive}

	require.NoError(t, rec.Reserve(4))
	assert.Equal(t, 4, rec.ReservedQuantity)
	assert.Equal(t, 6, rec.AvailableQuantity())

	// Only 6 remain; a 7 unit hold must be rejected untouched.
	err := rec.Reserve(7)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 4, rec.ReservedQuantity)

	clamped := rec.Release(4)
	assert.False(t, clamped)
	require.NoError(t, rec.Reserve(7))
	assert.Equal(t, 7, rec.ReservedQuantity)
	assert.NoError(t, rec.CheckInvariant())
}

func TestReserveRejectsNonPositive(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 10}
	assert.ErrorIs(t, rec.Reserve(0), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, rec.Reserve(-3), domain.ErrInvalidQuantity)
}

func TestReleaseClampsAtZero(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 10, ReservedQuantity: 2}
	clamped := rec.Release(5)
	assert.True(t, clamped)
	assert.Equal(t, 0, rec.ReservedQuantity)
}

func TestReduceLeavesReservedAlone(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 10, ReservedQuantity: 3}
	require.NoError(t, rec.Reduce(4))
	assert.Equal(t, 6, rec.StockLevel)
	assert.Equal(t, 3, rec.ReservedQuantity)

	assert.ErrorIs(t, rec.Reduce(7), domain.ErrInsufficientStock)
}

func TestCompleteHoldMatchingQuantities(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 10, Status: domain.StatusActive}
	require.NoError(t, rec.Reserve(4))

	clamped, err := rec.CompleteHold(4, 4)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, 6, rec.StockLevel)
	assert.Equal(t, 0, rec.ReservedQuantity)
	assert.NoError(t, rec.CheckInvariant())
}

func TestCompleteHoldReleasesEntireHold(t *testing.T) {
	// The order commits fewer units than the reservation held. The whole
	// hold must come back; releasing only the committed quantity would leave
	// the remainder reserved with no ACTIVE reservation backing it.
	rec := &domain.StockRecord{StockLevel: 10, Status: domain.StatusActive}
	require.NoError(t, rec.Reserve(5))

	clamped, err := rec.CompleteHold(3, 5)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, 7, rec.StockLevel)
	assert.Equal(t, 0, rec.ReservedQuantity)
	assert.NoError(t, rec.CheckInvariant())
}

func TestCompleteHoldRejectsOverdraw(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 2, ReservedQuantity: 2, Status: domain.StatusActive}
	_, err := rec.CompleteHold(3, 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 2, rec.StockLevel)
	assert.Equal(t, 2, rec.ReservedQuantity)
}

func TestAvailableQuantityClamped(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 2, ReservedQuantity: 5}
	assert.Equal(t, 0, rec.AvailableQuantity())
	assert.Error(t, rec.CheckInvariant())
}

func TestRecomputeStatus(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 1, Status: domain.StatusActive}
	require.NoError(t, rec.Reserve(1))
	assert.Equal(t, domain.StatusOutOfStock, rec.Status)

	rec.Release(1)
	assert.Equal(t, domain.StatusActive, rec.Status)
}

func TestRecomputeStatusSkipsDiscontinued(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 10, Status: domain.StatusDiscontinued}
	require.NoError(t, rec.Increase(5))
	assert.Equal(t, domain.StatusDiscontinued, rec.Status)
}

func TestIsLowStock(t *testing.T) {
	rec := &domain.StockRecord{StockLevel: 6, ReservedQuantity: 1, LowStockThreshold: 5}
	assert.True(t, rec.IsLowStock())

	rec.StockLevel = 20
	assert.False(t, rec.IsLowStock())
}
