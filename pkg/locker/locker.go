// Package locker serializes mutators per stock key. All ledger writes happen
// while holding the key's lock; multi-key callers must acquire through
// AcquireMany so lock order stays deterministic.
package locker

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrLockTimeout is returned when a bounded wait expires before the lock is
// acquired.
var ErrLockTimeout = errors.New("timed out waiting for key lock")

// Key identifies one lockable, independently tracked stock resource.
// VariantID zero means the product has no variant dimension.
type Key struct {
	ProductID uint
	VariantID uint
}

func (k Key) String() string {
	return fmt.Sprintf("stock:%d:%d", k.ProductID, k.VariantID)
}

// Less orders keys by product id, then variant id.
func (k Key) Less(other Key) bool {
	if k.ProductID != other.ProductID {
		return k.ProductID < other.ProductID
	}
	return k.VariantID < other.VariantID
}

// Handle represents a held lock.
type Handle interface {
	Release()
}

// KeyLocker guarantees at most one concurrent mutator per key.
type KeyLocker interface {
	// Acquire blocks until the lock is held or ctx expires. A deadline or
	// cancellation surfaces ErrLockTimeout.
	Acquire(ctx context.Context, key Key) (Handle, error)
}

// AcquireMany acquires all keys in sorted order and returns a single handle
// releasing them in reverse order. Duplicate keys are collapsed. On failure
// every lock acquired so far is released.
func AcquireMany(ctx context.Context, l KeyLocker, keys []Key) (Handle, error) {
	uniq := make(map[Key]struct{}, len(keys))
	sorted := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := uniq[k]; ok {
			continue
		}
		uniq[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	held := make([]Handle, 0, len(sorted))
	for _, k := range sorted {
		h, err := l.Acquire(ctx, k)
		if err != nil {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].Release()
			}
			return nil, err
		}
		held = append(held, h)
	}
	return multiHandle(held), nil
}

type multiHandle []Handle

func (m multiHandle) Release() {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].Release()
	}
}
