// README: Per-ride mutual exclusion for transitions (in-process or Redis for multi-instance deployments).
package ride

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"weride/internal/types"
)

var ErrLockTimeout = errors.New("ride is busy")

// Locker serializes transitions of the same ride. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, rideID types.ID) (func(), error)
}

// KeyedMutex is an in-process Locker.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[types.ID]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[types.ID]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, rideID types.ID) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[rideID]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[rideID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(rideID, e)
		return nil, ctx.Err()
	}
	return func() {
		<-e.ch
		k.release(rideID, e)
	}, nil
}

func (k *KeyedMutex) release(rideID types.ID, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, rideID)
	}
}

const (
	redisLockPrefix = "weride:ride:lock:"
	redisLockTTL    = 10 * time.Second
	redisLockRetry  = 25 * time.Millisecond
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker holds SET NX PX keys so that instances sharing a Redis serialize on the same ride.
type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
	wait  time.Duration
}

func NewRedisLocker(rdb *redis.Client, wait time.Duration) *RedisLocker {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisLocker{redis: rdb, ttl: redisLockTTL, wait: wait}
}

func (l *RedisLocker) Lock(ctx context.Context, rideID types.ID) (func(), error) {
	key := redisLockPrefix + string(rideID)
	token := string(types.NewID())
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = unlockScript.Run(context.WithoutCancel(ctx), l.redis, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisLockRetry):
		}
	}
}
