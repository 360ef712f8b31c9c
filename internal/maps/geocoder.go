package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"weride/internal/types"
)

var ErrNoResult = errors.New("address not found")

// Geocoder resolves free-text pickup and destination addresses to coordinates.
type Geocoder struct {
	client  *maps.Client
	region  string
	timeout time.Duration
}

// NewGeocoder creates a Geocoder with the given API key, biased towards region (a ccTLD such as "pk").
func NewGeocoder(apiKey, region string, opts ...maps.ClientOption) (*Geocoder, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client, region: region, timeout: 5 * time.Second}, nil
}

// Geocode returns the location of the best match for address.
func (g *Geocoder) Geocode(ctx context.Context, address string) (types.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return types.Point{}, ErrNoResult
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  address,
		Region:   g.region,
		Language: "en",
	})
	if err != nil {
		return types.Point{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("%w: %q", ErrNoResult, address)
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
