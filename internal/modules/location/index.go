// README: Geo index of online drivers (Redis GEO in production, in-memory otherwise).
package location

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"weride/internal/types"
)

const driverGeoKey = "weride:drivers:online"

type Nearby struct {
	DriverID   types.ID
	Position   types.Point
	DistanceKm float64
}

type Index interface {
	Set(ctx context.Context, driverID types.ID, p types.Point) error
	Remove(ctx context.Context, driverID types.ID) error
	// Nearby returns drivers within radiusKm of p, closest first.
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]Nearby, error)
}

type RedisIndex struct {
	redis *redis.Client
	key   string
}

func NewRedisIndex(rdb *redis.Client) *RedisIndex {
	return &RedisIndex{redis: rdb, key: driverGeoKey}
}

func (s *RedisIndex) Set(ctx context.Context, driverID types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, s.key, &redis.GeoLocation{
		Name:      string(driverID),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (s *RedisIndex) Remove(ctx context.Context, driverID types.ID) error {
	return s.redis.ZRem(ctx, s.key, string(driverID)).Err()
}

func (s *RedisIndex) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]Nearby, error) {
	locs, err := s.redis.GeoSearchLocation(ctx, s.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Nearby, len(locs))
	for i, l := range locs {
		out[i] = Nearby{
			DriverID:   types.ID(l.Name),
			Position:   types.Point{Lat: l.Latitude, Lng: l.Longitude},
			DistanceKm: l.Dist,
		}
	}
	return out, nil
}

type MemoryIndex struct {
	mu        sync.RWMutex
	positions map[types.ID]types.Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{positions: make(map[types.ID]types.Point)}
}

func (m *MemoryIndex) Set(_ context.Context, driverID types.ID, p types.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[driverID] = p
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, driverID types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, driverID)
	return nil
}

func (m *MemoryIndex) Nearby(_ context.Context, p types.Point, radiusKm float64) ([]Nearby, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Nearby
	for id, pos := range m.positions {
		if d := DistanceKm(p, pos); d <= radiusKm {
			out = append(out, Nearby{DriverID: id, Position: pos, DistanceKm: d})
		}
	}
	sortNearest(out)
	return out, nil
}
