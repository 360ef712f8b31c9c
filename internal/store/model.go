// README: Entity records shared by every module (users, drivers, rides, offers, tracking, ratings, logs).
package store

import (
	"time"

	"weride/internal/types"
)

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

// DefaultRating is the rolling rating of a user nobody has rated yet.
const DefaultRating = 5.0

type User struct {
	ID          types.ID
	Name        string
	Phone       string
	Email       *string
	Role        Role
	Rating      float64
	RatingCount int
	TotalRides  int
	Active      bool
	CreatedAt   time.Time
}

// Driver is the 1:1 profile extension of a User with RoleDriver.
type Driver struct {
	UserID       types.ID
	Vehicle      string
	LicensePlate *string
	Online       bool
	Position     *types.Point
	PositionAt   *time.Time
	HourlyRate   float64
}

type RideStatus string

const (
	RideStatusPending    RideStatus = "pending"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusEnRoute    RideStatus = "en_route"
	RideStatusArrived    RideStatus = "arrived"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// ActiveDriverStatuses are the states in which a driver is bound to a ride in motion.
var ActiveDriverStatuses = []RideStatus{
	RideStatusAccepted,
	RideStatusEnRoute,
	RideStatusArrived,
	RideStatusInProgress,
}

func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Assigned reports whether a ride in this state must carry a driver and a final price.
func (s RideStatus) Assigned() bool {
	switch s {
	case RideStatusAccepted, RideStatusEnRoute, RideStatusArrived, RideStatusInProgress, RideStatusCompleted:
		return true
	}
	return false
}

type Ride struct {
	ID               types.ID
	PassengerID      types.ID
	DriverID         *types.ID
	Pickup           string
	Destination      string
	PickupPoint      *types.Point
	DestinationPoint *types.Point
	PriceOffer       types.Money
	FinalPrice       *types.Money
	Status           RideStatus
	RequestedAt      time.Time
	AcceptedAt       *time.Time
	PickupAt         *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	CancelReason     *string
	ArrivalCallMade  bool
	SafetyCheckMade  bool
	FeedbackCallMade bool
}

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
	OfferStatusExpired  OfferStatus = "expired"
)

type Offer struct {
	ID         types.ID
	RideID     types.ID
	DriverID   types.ID
	Price      types.Money
	ETAMinutes int
	Note       string
	Status     OfferStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// TrackingPoint is append-only; Seq orders points of the same ride by arrival.
type TrackingPoint struct {
	Seq        int64
	RideID     types.ID
	DriverID   types.ID
	Position   types.Point
	RecordedAt time.Time
}

type Rating struct {
	ID        types.ID
	RideID    types.ID
	RaterID   types.ID
	RatedID   types.ID
	Score     int
	Comment   string
	CreatedAt time.Time
}

// Event is one applied ride transition (or a noteworthy ride-scoped action).
type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus RideStatus
	ToStatus   RideStatus
	Trigger    string
	ActorType  string
	ActorID    *types.ID
	Note       string
	CreatedAt  time.Time
}

type DispatchStatus string

const (
	DispatchDelivered DispatchStatus = "delivered"
	DispatchFailed    DispatchStatus = "failed"
	DispatchSkipped   DispatchStatus = "skipped-demo-mode"
)

// Dispatch is one durable notification log entry.
type Dispatch struct {
	Seq         int64
	RideID      types.ID
	Destination string
	Kind        string
	Template    string
	Medium      string
	Status      DispatchStatus
	DeliveryID  string
	Error       string
	CreatedAt   time.Time
}
