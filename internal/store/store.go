// README: Entity store contract; every multi-record write runs inside InTx.
package store

import (
	"context"
	"errors"

	"weride/internal/types"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("unique constraint conflict")
)

type Reader interface {
	GetUser(ctx context.Context, id types.ID) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	GetDriver(ctx context.Context, userID types.ID) (*Driver, error)
	ListOnlineDrivers(ctx context.Context) ([]*Driver, error)

	GetRide(ctx context.Context, id types.ID) (*Ride, error)
	// ListRidesByStatus returns rides in any of the statuses, oldest request first.
	ListRidesByStatus(ctx context.Context, statuses ...RideStatus) ([]*Ride, error)
	// FindActiveRideByDriver returns ErrNotFound when the driver has no ride in ActiveDriverStatuses.
	FindActiveRideByDriver(ctx context.Context, driverID types.ID) (*Ride, error)

	GetOffer(ctx context.Context, id types.ID) (*Offer, error)
	ListOffersByRide(ctx context.Context, rideID types.ID) ([]*Offer, error)

	ListTracking(ctx context.Context, rideID types.ID) ([]*TrackingPoint, error)
	GetRatingByRater(ctx context.Context, rideID, raterID types.ID) (*Rating, error)
	ListEvents(ctx context.Context, rideID types.ID) ([]*Event, error)
	ListDispatches(ctx context.Context, rideID types.ID) ([]*Dispatch, error)
}

// Tx is a transactional scope. Writes become visible only if the InTx callback returns nil.
type Tx interface {
	Reader

	// LockRide reads a ride and holds it against concurrent writers until the scope ends.
	LockRide(ctx context.Context, id types.ID) (*Ride, error)
	LockUser(ctx context.Context, id types.ID) (*User, error)

	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	UpsertDriver(ctx context.Context, d *Driver) error

	CreateRide(ctx context.Context, r *Ride) error
	UpdateRide(ctx context.Context, r *Ride) error

	CreateOffer(ctx context.Context, o *Offer) error
	UpdateOffer(ctx context.Context, o *Offer) error

	AppendTracking(ctx context.Context, p *TrackingPoint) error
	CreateRating(ctx context.Context, r *Rating) error
	AppendEvent(ctx context.Context, e *Event) error
	AppendDispatch(ctx context.Context, d *Dispatch) error
}

type Store interface {
	Reader
	// InTx commits when fn returns nil and rolls back every write otherwise.
	// fn must only touch the store through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
