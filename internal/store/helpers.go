package store

import (
	"time"

	"weride/internal/types"
)

func cloneTimePtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}

func cloneIDPtr(v *types.ID) *types.ID {
	if v == nil {
		return nil
	}
	id := *v
	return &id
}

func idPtrToString(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func stringPtrToID(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}

func pointCols(p *types.Point) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

func colsPoint(lat, lng *float64) *types.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &types.Point{Lat: *lat, Lng: *lng}
}
