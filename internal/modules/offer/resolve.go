// README: Offer resolution; picks the accepted offer of a ride and settles its siblings in the caller's transaction.
package offer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weride/internal/store"
	"weride/internal/types"
)

var (
	ErrNotPending    = errors.New("offer is not pending")
	ErrDuplicate     = errors.New("driver already has a pending offer on this ride")
	ErrAlreadyChosen = errors.New("ride already has an accepted offer")
)

type Resolution struct {
	Accepted *store.Offer
	Rejected []*store.Offer
}

// CheckDuplicate enforces one pending offer per driver and ride.
func CheckDuplicate(ctx context.Context, tx store.Reader, rideID, driverID types.ID) error {
	offers, err := tx.ListOffersByRide(ctx, rideID)
	if err != nil {
		return fmt.Errorf("list offers: %w", err)
	}
	for _, o := range offers {
		if o.DriverID == driverID && o.Status == store.OfferStatusPending {
			return ErrDuplicate
		}
	}
	return nil
}

// Resolve accepts offerID and forces every other offer of the same ride to rejected.
// Nothing is written unless every check passes; the caller's transaction makes the
// writes atomic with the ride update.
func Resolve(ctx context.Context, tx store.Tx, offerID types.ID, now time.Time) (*Resolution, error) {
	chosen, err := tx.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if chosen.Status != store.OfferStatusPending {
		return nil, ErrNotPending
	}

	siblings, err := tx.ListOffersByRide(ctx, chosen.RideID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	for _, o := range siblings {
		if o.ID != chosen.ID && o.Status == store.OfferStatusAccepted {
			return nil, ErrAlreadyChosen
		}
	}

	res := &Resolution{}
	for _, o := range siblings {
		if o.ID == chosen.ID {
			continue
		}
		o.Status = store.OfferStatusRejected
		o.ResolvedAt = &now
		if err := tx.UpdateOffer(ctx, o); err != nil {
			return nil, fmt.Errorf("reject offer %s: %w", o.ID, err)
		}
		res.Rejected = append(res.Rejected, o)
	}

	chosen.Status = store.OfferStatusAccepted
	chosen.ResolvedAt = &now
	if err := tx.UpdateOffer(ctx, chosen); err != nil {
		return nil, fmt.Errorf("accept offer %s: %w", chosen.ID, err)
	}
	res.Accepted = chosen
	return res, nil
}

// Expire closes every still-pending offer of a ride that left pending without an acceptance.
func Expire(ctx context.Context, tx store.Tx, rideID types.ID, now time.Time) ([]*store.Offer, error) {
	offers, err := tx.ListOffersByRide(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	var expired []*store.Offer
	for _, o := range offers {
		if o.Status != store.OfferStatusPending {
			continue
		}
		o.Status = store.OfferStatusExpired
		o.ResolvedAt = &now
		if err := tx.UpdateOffer(ctx, o); err != nil {
			return nil, fmt.Errorf("expire offer %s: %w", o.ID, err)
		}
		expired = append(expired, o)
	}
	return expired, nil
}
