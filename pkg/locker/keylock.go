package locker

import (
	"context"
	"sync"
)

// KeyLockTable is the in-process KeyLocker. Entries are reference-counted and
// removed when the last holder or waiter is done, so the table stays bounded
// by the number of keys currently in use rather than every key ever seen.
type KeyLockTable struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	ch   chan struct{} // capacity 1; holding the token means holding the lock
	refs int
}

// NewKeyLockTable creates an empty lock table.
func NewKeyLockTable() *KeyLockTable {
	return &KeyLockTable{locks: make(map[Key]*keyLock)}
}

// Acquire blocks until the key's lock is held or ctx is done.
func (t *KeyLockTable) Acquire(ctx context.Context, key Key) (Handle, error) {
	t.mu.Lock()
	kl, ok := t.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		t.locks[key] = kl
	}
	kl.refs++
	t.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return &tableHandle{table: t, key: key, lock: kl}, nil
	case <-ctx.Done():
		t.unref(key, kl)
		return nil, ErrLockTimeout
	}
}

// Len reports the number of live entries, for tests and diagnostics.
func (t *KeyLockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

func (t *KeyLockTable) unref(key Key, kl *keyLock) {
	t.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(t.locks, key)
	}
	t.mu.Unlock()
}

type tableHandle struct {
	table *KeyLockTable
	key   Key
	lock  *keyLock
	once  sync.Once
}

func (h *tableHandle) Release() {
	h.once.Do(func() {
		<-h.lock.ch
		h.table.unref(h.key, h.lock)
	})
}
