// README: Great-circle distance and ordering helpers for driver positions.
package location

import (
	"math"
	"sort"

	"weride/internal/types"
)

const earthRadiusKm = 6371.0

// DistanceKm is the haversine distance between two points in kilometres.
func DistanceKm(a, b types.Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180.0 }

func sortNearest(items []Nearby) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].DistanceKm < items[j].DistanceKm })
}
