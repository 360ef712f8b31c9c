package location

import (
	"context"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"weride/internal/types"
)

var (
	liberty  = types.Point{Lat: 31.5102, Lng: 74.3441}
	gaddafi  = types.Point{Lat: 31.5131, Lng: 74.3335}
	minarPak = types.Point{Lat: 31.5925, Lng: 74.3095}
	karachi  = types.Point{Lat: 24.8607, Lng: 67.0011}
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{"same point", liberty, liberty, 0, 0.001},
		{"Liberty to Gaddafi Stadium", liberty, gaddafi, 1.05, 0.3},
		{"Lahore to Karachi", liberty, karachi, 1030, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
	if d1, d2 := DistanceKm(liberty, karachi), DistanceKm(karachi, liberty); math.Abs(d1-d2) > 0.0001 {
		t.Errorf("distance is not symmetric: %f vs %f", d1, d2)
	}
}

func testIndex(t *testing.T, idx Index, prefix string) {
	ctx := context.Background()
	a, b, c := types.ID(prefix+"a"), types.ID(prefix+"b"), types.ID(prefix+"c")
	for id, p := range map[types.ID]types.Point{a: gaddafi, b: minarPak, c: karachi} {
		if err := idx.Set(ctx, id, p); err != nil {
			t.Fatalf("set %s: %v", id, err)
		}
	}

	got, err := idx.Nearby(ctx, liberty, 15)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 2 || got[0].DriverID != a || got[1].DriverID != b {
		t.Fatalf("unexpected nearby set: %+v", got)
	}
	if got[0].DistanceKm > got[1].DistanceKm {
		t.Fatalf("results not sorted: %+v", got)
	}

	if err := idx.Remove(ctx, a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err = idx.Nearby(ctx, liberty, 15)
	if err != nil {
		t.Fatalf("nearby after remove: %v", err)
	}
	if len(got) != 1 || got[0].DriverID != b {
		t.Fatalf("unexpected nearby set after remove: %+v", got)
	}
	_ = idx.Remove(ctx, b)
	_ = idx.Remove(ctx, c)
}

func TestMemoryIndex(t *testing.T) {
	testIndex(t, NewMemoryIndex(), "")
}

func TestRedisIndex(t *testing.T) {
	addr := os.Getenv("WERIDE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WERIDE_TEST_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	idx := NewRedisIndex(rdb)
	idx.key = fmt.Sprintf("weride:test:drivers:%d", time.Now().UnixNano())
	defer rdb.Del(context.Background(), idx.key)
	testIndex(t, idx, "")
}
