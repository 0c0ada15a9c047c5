package locker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizizzi/inventory-engine/pkg/locker"
)

func TestKeyLockTableMutualExclusion(t *testing.T) {
	table := locker.NewKeyLockTable()
	key := locker.Key{ProductID: 1}

	var inCritical int32
	var overlaps int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := table.Acquire(context.Background(), key)
			if err != nil {
				t.Error(err)
				return
			}
			if atomic.AddInt32(&inCritical, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inCritical, -1)
			h.Release()
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlaps), "two holders inside the critical section")
	assert.Zero(t, table.Len(), "lock table should be empty after all releases")
}

func TestKeyLockTableIndependentKeys(t *testing.T) {
	table := locker.NewKeyLockTable()

	h1, err := table.Acquire(context.Background(), locker.Key{ProductID: 1})
	require.NoError(t, err)
	defer h1.Release()

	// A different key must not block.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	h2, err := table.Acquire(ctx, locker.Key{ProductID: 1, VariantID: 2})
	require.NoError(t, err)
	h2.Release()
}

func TestKeyLockTableTimeout(t *testing.T) {
	table := locker.NewKeyLockTable()
	key := locker.Key{ProductID: 7}

	h, err := table.Acquire(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = table.Acquire(ctx, key)
	assert.ErrorIs(t, err, locker.ErrLockTimeout)

	h.Release()
	assert.Zero(t, table.Len())
}

func TestKeyLockTableReleaseIsIdempotent(t *testing.T) {
	table := locker.NewKeyLockTable()
	key := locker.Key{ProductID: 3}

	h, err := table.Acquire(context.Background(), key)
	require.NoError(t, err)
	h.Release()
	h.Release() // second release must not free someone else's hold

	h2, err := table.Acquire(context.Background(), key)
	require.NoError(t, err)
	h2.Release()
	assert.Zero(t, table.Len())
}

func TestAcquireManyCollapsesDuplicates(t *testing.T) {
	table := locker.NewKeyLockTable()
	keys := []locker.Key{{ProductID: 2}, {ProductID: 1}, {ProductID: 2}}

	h, err := locker.AcquireMany(context.Background(), table, keys)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	h.Release()
	assert.Zero(t, table.Len())
}

func TestAcquireManyReleasesOnFailure(t *testing.T) {
	table := locker.NewKeyLockTable()
	blocker, err := table.Acquire(context.Background(), locker.Key{ProductID: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.AcquireMany(ctx, table, []locker.Key{{ProductID: 1}, {ProductID: 2}, {ProductID: 3}})
	assert.ErrorIs(t, err, locker.ErrLockTimeout)

	blocker.Release()
	// Every partially acquired lock must have been released.
	assert.Zero(t, table.Len())
}

func TestKeyOrdering(t *testing.T) {
	assert.True(t, locker.Key{ProductID: 1, VariantID: 9}.Less(locker.Key{ProductID: 2}))
	assert.True(t, locker.Key{ProductID: 1, VariantID: 1}.Less(locker.Key{ProductID: 1, VariantID: 2}))
	assert.False(t, locker.Key{ProductID: 1, VariantID: 2}.Less(locker.Key{ProductID: 1, VariantID: 2}))
	assert.Equal(t, "stock:4:2", locker.Key{ProductID: 4, VariantID: 2}.String())
}
