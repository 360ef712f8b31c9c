package ride

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"weride/internal/mirror"
	"weride/internal/modules/notify"
	"weride/internal/modules/offer"
	"weride/internal/observability"
	"weride/internal/store"
	"weride/internal/types"
)

type applied struct {
	ride *store.Ride
	from store.RideStatus
	at   time.Time

	// driver is the driver bound to the ride before the transition; kept for cancellations.
	driver *types.ID
}

type mutateFunc func(tx store.Tx, r *store.Ride, now time.Time) error

// apply runs one table transition: lock, guard, mutate, persist, record event.
func (s *Service) apply(ctx context.Context, rideID types.ID, trigger Trigger, actor string, mutate mutateFunc) (*applied, error) {
	unlock, err := s.locker.Lock(ctx, rideID)
	if err != nil {
		return nil, s.fail(trigger, err)
	}
	defer unlock()

	now := s.now()
	res := &applied{at: now}
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.LockRide(ctx, rideID)
		if err != nil {
			return err
		}
		to, ok := Next(r.Status, trigger)
		if !ok {
			return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, r.Status)
		}
		res.from = r.Status
		if r.DriverID != nil {
			id := *r.DriverID
			res.driver = &id
		}
		if mutate != nil {
			if err := mutate(tx, r, now); err != nil {
				return err
			}
		}
		r.Status = to
		if err := checkAssignment(r); err != nil {
			return err
		}
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		var actorID *types.ID
		switch actor {
		case actorPassenger:
			actorID = &r.PassengerID
		case actorDriver:
			actorID = res.driver
			if actorID == nil {
				actorID = r.DriverID
			}
		}
		res.ride = r
		return tx.AppendEvent(ctx, &store.Event{
			RideID:     r.ID,
			FromStatus: res.from,
			ToStatus:   to,
			Trigger:    string(trigger),
			ActorType:  actor,
			ActorID:    actorID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, s.fail(trigger, err)
	}
	s.succeed(trigger, rideID, "from", res.from, "to", res.ride.Status)
	return res, nil
}

func requireDriver(_ store.Tx, r *store.Ride, _ time.Time) error {
	if r.DriverID == nil {
		return fmt.Errorf("%w: ride has no driver", ErrInvalidTransition)
	}
	return nil
}

// checkAssignment holds driver and final price present exactly in the assigned states.
func checkAssignment(r *store.Ride) error {
	assigned := r.Status.Assigned()
	if (r.DriverID != nil) != assigned || (r.FinalPrice != nil) != assigned {
		return fmt.Errorf("%w: ride %s in %s with driver=%t final_price=%t", ErrInvalidTransition,
			r.ID, r.Status, r.DriverID != nil, r.FinalPrice != nil)
	}
	return nil
}

// contact returns the user with phone, creating it with role on first contact.
func (s *Service) contact(ctx context.Context, tx store.Tx, phone, name string, role store.Role, now time.Time) (*store.User, error) {
	u, err := tx.GetUserByPhone(ctx, phone)
	if err == nil {
		if u.Role != role {
			return nil, fmt.Errorf("%w: %s is registered as a %s", ErrBadRequest, phone, u.Role)
		}
		if !u.Active {
			return nil, fmt.Errorf("%w: %s is deactivated", ErrBadRequest, phone)
		}
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.ToUpper(string(role[:1])) + string(role[1:])
	}
	u = &store.User{
		ID:        types.NewID(),
		Name:      name,
		Phone:     phone,
		Role:      role,
		Rating:    store.DefaultRating,
		Active:    true,
		CreatedAt: now,
	}
	if err := tx.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// fail maps an error onto the service taxonomy and counts it.
func (s *Service) fail(trigger Trigger, err error) error {
	var out error
	result := "error"
	switch {
	case errors.Is(err, ErrBadRequest):
		out, result = err, "bad_request"
	case errors.Is(err, ErrInvalidTransition):
		out, result = err, "invalid_transition"
	case errors.Is(err, ErrDuplicateOffer):
		out, result = err, "duplicate_offer"
	case errors.Is(err, ErrNotFound):
		out, result = err, "not_found"
	case errors.Is(err, offer.ErrDuplicate):
		out, result = fmt.Errorf("%w: %w", ErrDuplicateOffer, err), "duplicate_offer"
	case errors.Is(err, offer.ErrNotPending), errors.Is(err, offer.ErrAlreadyChosen):
		out, result = fmt.Errorf("%w: %w", ErrInvalidTransition, err), "invalid_transition"
	case errors.Is(err, store.ErrNotFound):
		out, result = fmt.Errorf("%w: %w", ErrNotFound, err), "not_found"
	default:
		out, result = fmt.Errorf("%w: %w", ErrPersistence, err), "persistence"
		s.log.Error("transition failed", "trigger", trigger, "err", err)
	}
	observability.TransitionsTotal.WithLabelValues(string(trigger), result).Inc()
	return out
}

func (s *Service) succeed(trigger Trigger, rideID types.ID, attrs ...any) {
	observability.TransitionsTotal.WithLabelValues(string(trigger), "ok").Inc()
	s.log.Info("ride transition", append([]any{"ride_id", rideID, "trigger", trigger}, attrs...)...)
}

// snapshot gathers the parties of r for notification planning. driverID overrides
// the ride's own driver so a cancelled ride still reaches its former driver.
func (s *Service) snapshot(ctx context.Context, r *store.Ride, driverID *types.ID, o *store.Offer, reason string) notify.Snapshot {
	snap := notify.Snapshot{Ride: r, Offer: o, Reason: reason}
	if u, err := s.store.GetUser(ctx, r.PassengerID); err == nil {
		snap.Passenger = u
	} else {
		s.log.Warn("snapshot passenger", "ride_id", r.ID, "err", err)
	}
	if driverID == nil {
		driverID = r.DriverID
	}
	if driverID == nil {
		return snap
	}
	if u, err := s.store.GetUser(ctx, *driverID); err == nil {
		snap.Driver = u
	}
	if d, err := s.store.GetDriver(ctx, *driverID); err == nil {
		snap.Profile = d
	}
	if snap.Offer == nil && r.Status.Assigned() {
		if offers, err := s.store.ListOffersByRide(ctx, r.ID); err == nil {
			for _, o := range offers {
				if o.Status == store.OfferStatusAccepted {
					snap.Offer = o
					break
				}
			}
		}
	}
	return snap
}

func (s *Service) notify(ctx context.Context, ev notify.Event, snap notify.Snapshot) {
	ns := s.planner.Plan(ev, snap)
	if len(ns) == 0 {
		return
	}
	s.dispatcher.Dispatch(ctx, snap.Ride.ID, ns)
}

// publish mirrors r as of at, the time the change was committed.
func (s *Service) publish(ctx context.Context, r *store.Ride, pos *types.Point, at time.Time) {
	snap := mirror.SnapshotOf(r, at)
	snap.Position = pos
	if err := s.mirror.Publish(ctx, r.ID, snap); err != nil {
		s.log.Warn("mirror publish failed", "ride_id", r.ID, "err", err)
	}
}

func (s *Service) geocode(ctx context.Context, address string) *types.Point {
	if s.geocoder == nil {
		return nil
	}
	p, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		s.log.Debug("geocode failed", "address", address, "err", err)
		return nil
	}
	return &p
}
