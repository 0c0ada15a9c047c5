package locker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLeaseLocker backs the key lock with a Redis lease so that two engine
// instances cannot both pass an availability check for the same key. The
// lease TTL bounds how long a crashed holder can block a key.
type RedisLeaseLocker struct {
	rdb      *redis.Client
	leaseTTL time.Duration
}

// NewRedisLeaseLocker creates a locker leasing keys for leaseTTL.
func NewRedisLeaseLocker(rdb *redis.Client, leaseTTL time.Duration) *RedisLeaseLocker {
	return &RedisLeaseLocker{rdb: rdb, leaseTTL: leaseTTL}
}

// Acquire polls SET NX PX with jittered backoff until the lease is obtained
// or ctx is done.
func (l *RedisLeaseLocker) Acquire(ctx context.Context, key Key) (Handle, error) {
	token := uuid.NewString()
	redisKey := "lock:" + key.String()
	backoff := 5 * time.Millisecond

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.leaseTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, err
		}
		if ok {
			return &leaseHandle{locker: l, key: redisKey, token: token}, nil
		}

		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)))
		if sleep > 250*time.Millisecond {
			sleep = 250 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-time.After(sleep):
		}
		if backoff < 125*time.Millisecond {
			backoff *= 2
		}
	}
}

type leaseHandle struct {
	locker *RedisLeaseLocker
	key    string
	token  string
	once   sync.Once
}

// Release drops the lease if still owned. A lease that already expired is
// left alone so a newer holder is not evicted.
func (h *leaseHandle) Release() {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, h.locker.rdb, []string{h.key}, h.token).Err()
	})
}
