package ride

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"weride/internal/types"
)

func testLockerExcludes(t *testing.T, l Locker) {
	ctx := context.Background()
	rideID := types.NewID()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, rideID)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("%d holders at once", maxSeen)
	}
}

func TestKeyedMutex(t *testing.T) {
	k := NewKeyedMutex()
	testLockerExcludes(t, k)
	if len(k.locks) != 0 {
		t.Fatalf("lock entries leaked: %d", len(k.locks))
	}
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "r1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(ctx, "r1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	other, err := k.Lock(context.Background(), "r2")
	if err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}
	other()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("WERIDE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WERIDE_TEST_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	testLockerExcludes(t, NewRedisLocker(rdb, 5*time.Second))
}
