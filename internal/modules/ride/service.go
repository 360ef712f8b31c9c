// README: Ride service implements the lifecycle transitions, offer acceptance and their side effects.
package ride

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"weride/internal/mirror"
	"weride/internal/modules/location"
	"weride/internal/modules/notify"
	"weride/internal/modules/offer"
	"weride/internal/observability"
	"weride/internal/store"
	"weride/internal/types"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrDuplicateOffer    = errors.New("duplicate pending offer")
	ErrPersistence       = errors.New("persistence failure")
	ErrBadRequest        = errors.New("bad request")
)

type Dispatcher interface {
	Dispatch(ctx context.Context, rideID types.ID, ns []notify.Notification) []*store.Dispatch
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

// Deps are the optional collaborators; zero values fall back to in-process defaults.
type Deps struct {
	Locker     Locker
	Dispatcher Dispatcher
	Planner    notify.Planner
	Mirror     mirror.Publisher
	Geocoder   Geocoder
	Index      location.Index
	Log        *slog.Logger
	Now        func() time.Time
}

type Service struct {
	store      store.Store
	locker     Locker
	dispatcher Dispatcher
	planner    notify.Planner
	mirror     mirror.Publisher
	geocoder   Geocoder
	index      location.Index
	log        *slog.Logger
	now        func() time.Time
}

func NewService(st store.Store, deps Deps) *Service {
	s := &Service{
		store:      st,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		planner:    deps.Planner,
		mirror:     deps.Mirror,
		geocoder:   deps.Geocoder,
		index:      deps.Index,
		log:        deps.Log,
		now:        deps.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.locker == nil {
		s.locker = NewKeyedMutex()
	}
	if s.dispatcher == nil {
		s.dispatcher = notify.NewDispatcher(st, notify.DemoChannel{}, s.log)
	}
	if s.mirror == nil {
		s.mirror = mirror.Nop{}
	}
	if s.index == nil {
		s.index = location.NewMemoryIndex()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

type CreateRideCommand struct {
	PassengerPhone   string
	PassengerName    string
	Pickup           string
	Destination      string
	PriceOffer       int64
	PickupPoint      *types.Point
	DestinationPoint *types.Point
}

type SubmitOfferCommand struct {
	RideID      types.ID
	DriverPhone string
	DriverName  string
	Price       int64
	ETAMinutes  int
	Note        string
}

type CancelCommand struct {
	RideID    types.ID
	Reason    string
	ActorType string
}

type SetOnlineCommand struct {
	Phone        string
	Name         string
	Vehicle      string
	LicensePlate string
	Online       bool
}

type AcceptResult struct {
	RideID     types.ID
	OfferID    types.ID
	DriverID   types.ID
	DriverName string
	FinalPrice types.Money
}

type LocationResult struct {
	DriverID types.ID
	RideID   *types.ID
	Tracked  bool
}

type AvailableRide struct {
	ID            types.ID
	Pickup        string
	Destination   string
	PriceOffer    types.Money
	PassengerName string
	RequestedAt   time.Time
}

type OnlineDriver struct {
	DriverID     types.ID
	Name         string
	Phone        string
	Vehicle      string
	LicensePlate string
	Rating       float64
	Position     *types.Point
}

const (
	actorPassenger = "passenger"
	actorDriver    = "driver"
	actorSystem    = "system"
)

func (s *Service) CreateRide(ctx context.Context, cmd CreateRideCommand) (types.ID, error) {
	cmd.PassengerPhone = strings.TrimSpace(cmd.PassengerPhone)
	cmd.Pickup = strings.TrimSpace(cmd.Pickup)
	cmd.Destination = strings.TrimSpace(cmd.Destination)
	if cmd.PassengerPhone == "" || cmd.Pickup == "" || cmd.Destination == "" {
		return "", fmt.Errorf("%w: passenger phone, pickup and destination are required", ErrBadRequest)
	}
	if cmd.PriceOffer <= 0 {
		return "", fmt.Errorf("%w: price offer must be positive", ErrBadRequest)
	}
	if cmd.PickupPoint == nil {
		cmd.PickupPoint = s.geocode(ctx, cmd.Pickup)
	}
	if cmd.DestinationPoint == nil {
		cmd.DestinationPoint = s.geocode(ctx, cmd.Destination)
	}

	now := s.now()
	r := &store.Ride{
		ID:               types.NewID(),
		Pickup:           cmd.Pickup,
		Destination:      cmd.Destination,
		PickupPoint:      cmd.PickupPoint,
		DestinationPoint: cmd.DestinationPoint,
		PriceOffer:       types.NewMoney(cmd.PriceOffer),
		Status:           store.RideStatusPending,
		RequestedAt:      now,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		u, err := s.contact(ctx, tx, cmd.PassengerPhone, cmd.PassengerName, store.RolePassenger, now)
		if err != nil {
			return err
		}
		r.PassengerID = u.ID
		if err := tx.CreateRide(ctx, r); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &store.Event{
			RideID:    r.ID,
			ToStatus:  store.RideStatusPending,
			Trigger:   string(TriggerCreate),
			ActorType: actorPassenger,
			ActorID:   &r.PassengerID,
			CreatedAt: now,
		})
	})
	if err != nil {
		return "", s.fail(TriggerCreate, err)
	}
	s.succeed(TriggerCreate, r.ID)
	s.notify(ctx, notify.EventRideCreated, s.snapshot(ctx, r, nil, nil, ""))
	s.publish(ctx, r, nil, now)
	return r.ID, nil
}

func (s *Service) SubmitOffer(ctx context.Context, cmd SubmitOfferCommand) (types.ID, error) {
	cmd.DriverPhone = strings.TrimSpace(cmd.DriverPhone)
	if cmd.RideID == "" || cmd.DriverPhone == "" {
		return "", fmt.Errorf("%w: ride id and driver phone are required", ErrBadRequest)
	}
	if cmd.Price <= 0 || cmd.ETAMinutes < 0 {
		return "", fmt.Errorf("%w: price must be positive and eta non-negative", ErrBadRequest)
	}
	unlock, err := s.locker.Lock(ctx, cmd.RideID)
	if err != nil {
		return "", s.fail("offer", err)
	}
	defer unlock()

	now := s.now()
	o := &store.Offer{
		ID:         types.NewID(),
		RideID:     cmd.RideID,
		Price:      types.NewMoney(cmd.Price),
		ETAMinutes: cmd.ETAMinutes,
		Note:       strings.TrimSpace(cmd.Note),
		Status:     store.OfferStatusPending,
		CreatedAt:  now,
	}
	var r *store.Ride
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.LockRide(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if r.Status != store.RideStatusPending {
			return fmt.Errorf("%w: ride is %s, offers need pending", ErrInvalidTransition, r.Status)
		}
		d, err := s.contact(ctx, tx, cmd.DriverPhone, cmd.DriverName, store.RoleDriver, now)
		if err != nil {
			return err
		}
		if d.ID == r.PassengerID {
			return fmt.Errorf("%w: a passenger cannot bid on their own ride", ErrBadRequest)
		}
		if _, err := tx.GetDriver(ctx, d.ID); errors.Is(err, store.ErrNotFound) {
			if err := tx.UpsertDriver(ctx, &store.Driver{UserID: d.ID, HourlyRate: 15}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		o.DriverID = d.ID
		if err := offer.CheckDuplicate(ctx, tx, r.ID, d.ID); err != nil {
			return err
		}
		if err := tx.CreateOffer(ctx, o); errors.Is(err, store.ErrConflict) {
			return offer.ErrDuplicate
		} else if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", s.fail("offer", err)
	}
	observability.OffersTotal.Inc()
	s.log.Info("offer submitted", "ride_id", r.ID, "offer_id", o.ID, "driver_id", o.DriverID, "price", o.Price.Amount)
	s.notify(ctx, notify.EventOfferSubmitted, s.snapshot(ctx, r, &o.DriverID, o, ""))
	return o.ID, nil
}

// AcceptOffer assigns the offer's driver and price to its ride and rejects every sibling offer.
func (s *Service) AcceptOffer(ctx context.Context, offerID types.ID) (*AcceptResult, error) {
	o, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, s.fail(TriggerAccept, err)
	}
	var chosen *store.Offer
	res, err := s.apply(ctx, o.RideID, TriggerAccept, actorPassenger, func(tx store.Tx, r *store.Ride, now time.Time) error {
		resolution, err := offer.Resolve(ctx, tx, offerID, now)
		if err != nil {
			return err
		}
		chosen = resolution.Accepted
		driverID := chosen.DriverID
		price := chosen.Price
		r.DriverID = &driverID
		r.FinalPrice = &price
		r.AcceptedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	snap := s.snapshot(ctx, res.ride, res.ride.DriverID, chosen, "")
	s.notify(ctx, notify.EventOfferAccepted, snap)
	s.publish(ctx, res.ride, nil, res.at)

	out := &AcceptResult{
		RideID:     res.ride.ID,
		OfferID:    chosen.ID,
		DriverID:   chosen.DriverID,
		FinalPrice: chosen.Price,
	}
	if snap.Driver != nil {
		out.DriverName = snap.Driver.Name
	}
	return out, nil
}

func (s *Service) MarkEnRoute(ctx context.Context, rideID types.ID) error {
	res, err := s.apply(ctx, rideID, TriggerEnRoute, actorDriver, requireDriver)
	if err != nil {
		return err
	}
	s.notify(ctx, notify.EventDriverEnRoute, s.snapshot(ctx, res.ride, res.driver, nil, ""))
	s.publish(ctx, res.ride, nil, res.at)
	return nil
}

// MarkArrived moves the ride to arrived and places the arrival call unless it was already made.
func (s *Service) MarkArrived(ctx context.Context, rideID types.ID) error {
	var first bool
	res, err := s.apply(ctx, rideID, TriggerArrive, actorDriver, func(tx store.Tx, r *store.Ride, now time.Time) error {
		if err := requireDriver(tx, r, now); err != nil {
			return err
		}
		r.PickupAt = &now
		first = markCall(r, CallArrival)
		return nil
	})
	if err != nil {
		return err
	}
	if first {
		s.notify(ctx, notify.EventDriverArrived, s.snapshot(ctx, res.ride, res.driver, nil, ""))
	}
	s.publish(ctx, res.ride, nil, res.at)
	return nil
}

func (s *Service) StartRide(ctx context.Context, rideID types.ID) error {
	res, err := s.apply(ctx, rideID, TriggerStart, actorDriver, func(tx store.Tx, r *store.Ride, now time.Time) error {
		r.StartedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(ctx, notify.EventRideStarted, s.snapshot(ctx, res.ride, res.driver, nil, ""))
	s.publish(ctx, res.ride, nil, res.at)
	return nil
}

// CompleteRide finishes the trip, counts it for both parties and requests feedback once.
func (s *Service) CompleteRide(ctx context.Context, rideID types.ID) error {
	var feedback bool
	res, err := s.apply(ctx, rideID, TriggerComplete, actorDriver, func(tx store.Tx, r *store.Ride, now time.Time) error {
		r.CompletedAt = &now
		for _, id := range []types.ID{r.PassengerID, *r.DriverID} {
			u, err := tx.LockUser(ctx, id)
			if err != nil {
				return err
			}
			u.TotalRides++
			if err := tx.UpdateUser(ctx, u); err != nil {
				return err
			}
		}
		feedback = markCall(r, CallFeedback)
		return nil
	})
	if err != nil {
		return err
	}
	snap := s.snapshot(ctx, res.ride, res.driver, nil, "")
	s.notify(ctx, notify.EventRideCompleted, snap)
	if feedback {
		s.notify(ctx, notify.EventFeedbackRequest, snap)
	}
	s.publish(ctx, res.ride, nil, res.at)
	return nil
}

// CancelRide cancels a non-terminal ride, expires its open offers and releases the driver.
func (s *Service) CancelRide(ctx context.Context, cmd CancelCommand) error {
	actor := cmd.ActorType
	switch actor {
	case "":
		actor = actorPassenger
	case actorPassenger, actorDriver, actorSystem:
	default:
		return fmt.Errorf("%w: unknown actor %q", ErrBadRequest, actor)
	}
	reason := strings.TrimSpace(cmd.Reason)
	res, err := s.apply(ctx, cmd.RideID, TriggerCancel, actor, func(tx store.Tx, r *store.Ride, now time.Time) error {
		if _, err := offer.Expire(ctx, tx, r.ID, now); err != nil {
			return err
		}
		r.CancelledAt = &now
		if reason != "" {
			r.CancelReason = &reason
		}
		r.DriverID = nil
		r.FinalPrice = nil
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(ctx, notify.EventRideCancelled, s.snapshot(ctx, res.ride, res.driver, nil, reason))
	s.publish(ctx, res.ride, nil, res.at)
	return nil
}

// TriggerCall places an interactive call of the given kind. It reports false without
// dispatching when the call was already made for this ride.
func (s *Service) TriggerCall(ctx context.Context, rideID types.ID, kind CallKind) (bool, error) {
	required, ok := callRequires[kind]
	if !ok {
		return false, fmt.Errorf("%w: unknown call kind %q", ErrBadRequest, kind)
	}
	trigger := Trigger("call_" + string(kind))
	unlock, err := s.locker.Lock(ctx, rideID)
	if err != nil {
		return false, s.fail(trigger, err)
	}
	defer unlock()

	var (
		r     *store.Ride
		first bool
	)
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.LockRide(ctx, rideID)
		if err != nil {
			return err
		}
		if r.Status != required {
			return fmt.Errorf("%w: %s call needs %s, ride is %s", ErrInvalidTransition, kind, required, r.Status)
		}
		if first = markCall(r, kind); !first {
			return nil
		}
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &store.Event{
			RideID: r.ID, FromStatus: r.Status, ToStatus: r.Status, Trigger: string(trigger),
			ActorType: actorSystem, CreatedAt: s.now(),
		})
	})
	if err != nil {
		return false, s.fail(trigger, err)
	}
	if !first {
		s.log.Info("call already made", "ride_id", rideID, "kind", kind)
		return false, nil
	}
	s.succeed(trigger, rideID)
	ev := map[CallKind]notify.Event{
		CallArrival:  notify.EventDriverArrived,
		CallSafety:   notify.EventSafetyCheck,
		CallFeedback: notify.EventFeedbackRequest,
	}[kind]
	s.notify(ctx, ev, s.snapshot(ctx, r, r.DriverID, nil, ""))
	return true, nil
}

// Escalate raises a priority alert to the safety desk for a ride and records it on the ride.
func (s *Service) Escalate(ctx context.Context, rideID types.ID, note string) error {
	r, err := s.recordAction(ctx, rideID, "emergency_escalated", actorPassenger, note, false)
	if err != nil {
		return err
	}
	s.log.Warn("emergency escalated", "ride_id", rideID, "status", r.Status)
	s.notify(ctx, notify.EventEmergency, s.snapshot(ctx, r, r.DriverID, nil, note))
	return nil
}

// NotifyDriver relays the passenger's answer to the arrival call.
func (s *Service) NotifyDriver(ctx context.Context, rideID types.ID, coming bool) error {
	trigger, ev := "passenger_coming", notify.EventPassengerComing
	if !coming {
		trigger, ev = "passenger_needs_time", notify.EventPassengerNeedsTime
	}
	r, err := s.recordAction(ctx, rideID, trigger, actorPassenger, "", true)
	if err != nil {
		return err
	}
	s.notify(ctx, ev, s.snapshot(ctx, r, r.DriverID, nil, ""))
	return nil
}

func (s *Service) recordAction(ctx context.Context, rideID types.ID, trigger, actor, note string, needDriver bool) (*store.Ride, error) {
	var r *store.Ride
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.GetRide(ctx, rideID)
		if err != nil {
			return err
		}
		if needDriver && r.DriverID == nil {
			return fmt.Errorf("%w: ride has no driver", ErrInvalidTransition)
		}
		var actorID *types.ID
		if actor == actorPassenger {
			actorID = &r.PassengerID
		}
		return tx.AppendEvent(ctx, &store.Event{
			RideID: r.ID, FromStatus: r.Status, ToStatus: r.Status, Trigger: trigger,
			ActorType: actor, ActorID: actorID, Note: note, CreatedAt: s.now(),
		})
	})
	if err != nil {
		return nil, s.fail(Trigger(trigger), err)
	}
	return r, nil
}

// UpdateDriverLocation stores the driver's position and appends a tracking point to their active ride.
func (s *Service) UpdateDriverLocation(ctx context.Context, phone string, lat, lng float64) (*LocationResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("%w: driver phone and a valid coordinate are required", ErrBadRequest)
	}
	u, err := s.store.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, s.fail("location", err)
	}
	if u.Role != store.RoleDriver {
		return nil, fmt.Errorf("%w: %s is not a driver", ErrBadRequest, phone)
	}

	now := s.now()
	pos := types.Point{Lat: lat, Lng: lng}
	out := &LocationResult{DriverID: u.ID}
	var (
		profile *store.Driver
		active  *store.Ride
	)
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		profile, err = tx.GetDriver(ctx, u.ID)
		if errors.Is(err, store.ErrNotFound) {
			profile = &store.Driver{UserID: u.ID, HourlyRate: 15}
		} else if err != nil {
			return err
		}
		profile.Position = &pos
		profile.PositionAt = &now
		if err := tx.UpsertDriver(ctx, profile); err != nil {
			return err
		}
		active, err = tx.FindActiveRideByDriver(ctx, u.ID)
		if errors.Is(err, store.ErrNotFound) {
			active = nil
			return nil
		} else if err != nil {
			return err
		}
		out.RideID = &active.ID
		out.Tracked = true
		return tx.AppendTracking(ctx, &store.TrackingPoint{
			RideID: active.ID, DriverID: u.ID, Position: pos, RecordedAt: now,
		})
	})
	if err != nil {
		return nil, s.fail("location", err)
	}
	if profile.Online {
		if err := s.index.Set(ctx, u.ID, pos); err != nil {
			s.log.Warn("geo index update failed", "driver_id", u.ID, "err", err)
		}
	}
	if active != nil {
		s.publish(ctx, active, &pos, now)
	}
	return out, nil
}

// SetDriverOnline toggles availability, creating the driver on first contact.
func (s *Service) SetDriverOnline(ctx context.Context, cmd SetOnlineCommand) (*store.Driver, error) {
	cmd.Phone = strings.TrimSpace(cmd.Phone)
	if cmd.Phone == "" {
		return nil, fmt.Errorf("%w: driver phone is required", ErrBadRequest)
	}
	now := s.now()
	var (
		profile *store.Driver
		was     bool
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		u, err := s.contact(ctx, tx, cmd.Phone, cmd.Name, store.RoleDriver, now)
		if err != nil {
			return err
		}
		profile, err = tx.GetDriver(ctx, u.ID)
		if errors.Is(err, store.ErrNotFound) {
			profile = &store.Driver{UserID: u.ID, HourlyRate: 15}
		} else if err != nil {
			return err
		}
		was = profile.Online
		profile.Online = cmd.Online
		if v := strings.TrimSpace(cmd.Vehicle); v != "" {
			profile.Vehicle = v
		}
		if p := strings.TrimSpace(cmd.LicensePlate); p != "" {
			profile.LicensePlate = &p
		}
		if err := tx.UpsertDriver(ctx, profile); errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("%w: license plate already registered", ErrBadRequest)
		} else if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("online", err)
	}
	switch {
	case cmd.Online && !was:
		observability.DriversOnline.Inc()
	case !cmd.Online && was:
		observability.DriversOnline.Dec()
	}
	var ierr error
	if cmd.Online && profile.Position != nil {
		ierr = s.index.Set(ctx, profile.UserID, *profile.Position)
	} else if !cmd.Online {
		ierr = s.index.Remove(ctx, profile.UserID)
	}
	if ierr != nil {
		s.log.Warn("geo index update failed", "driver_id", profile.UserID, "err", ierr)
	}
	s.log.Info("driver availability", "driver_id", profile.UserID, "online", cmd.Online)
	return profile, nil
}

func (s *Service) ListAvailableRides(ctx context.Context) ([]AvailableRide, error) {
	rides, err := s.store.ListRidesByStatus(ctx, store.RideStatusPending)
	if err != nil {
		return nil, s.fail("list", err)
	}
	out := make([]AvailableRide, 0, len(rides))
	for _, r := range rides {
		a := AvailableRide{
			ID: r.ID, Pickup: r.Pickup, Destination: r.Destination,
			PriceOffer: r.PriceOffer, RequestedAt: r.RequestedAt,
		}
		if u, err := s.store.GetUser(ctx, r.PassengerID); err == nil {
			a.PassengerName = u.Name
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Service) ListOnlineDrivers(ctx context.Context) ([]OnlineDriver, error) {
	drivers, err := s.store.ListOnlineDrivers(ctx)
	if err != nil {
		return nil, s.fail("list", err)
	}
	out := make([]OnlineDriver, 0, len(drivers))
	for _, d := range drivers {
		u, err := s.store.GetUser(ctx, d.UserID)
		if err != nil {
			s.log.Warn("online driver without user", "driver_id", d.UserID, "err", err)
			continue
		}
		od := OnlineDriver{
			DriverID: d.UserID, Name: u.Name, Phone: u.Phone, Vehicle: d.Vehicle,
			Rating: u.Rating, Position: d.Position,
		}
		if d.LicensePlate != nil {
			od.LicensePlate = *d.LicensePlate
		}
		out = append(out, od)
	}
	return out, nil
}

func (s *Service) NearbyDrivers(ctx context.Context, p types.Point, radiusKm float64) ([]location.Nearby, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrBadRequest)
	}
	out, err := s.index.Nearby(ctx, p, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("%w: geo index: %w", ErrPersistence, err)
	}
	return out, nil
}

func (s *Service) GetRide(ctx context.Context, id types.ID) (*store.Ride, error) {
	r, err := s.store.GetRide(ctx, id)
	if err != nil {
		return nil, s.fail("get", err)
	}
	return r, nil
}

func (s *Service) ListOffers(ctx context.Context, rideID types.ID) ([]*store.Offer, error) {
	if _, err := s.GetRide(ctx, rideID); err != nil {
		return nil, err
	}
	out, err := s.store.ListOffersByRide(ctx, rideID)
	if err != nil {
		return nil, s.fail("get", err)
	}
	return out, nil
}

func (s *Service) ListEvents(ctx context.Context, rideID types.ID) ([]*store.Event, error) {
	out, err := s.store.ListEvents(ctx, rideID)
	if err != nil {
		return nil, s.fail("get", err)
	}
	return out, nil
}

func (s *Service) ListTracking(ctx context.Context, rideID types.ID) ([]*store.TrackingPoint, error) {
	out, err := s.store.ListTracking(ctx, rideID)
	if err != nil {
		return nil, s.fail("get", err)
	}
	return out, nil
}

// ListDispatches returns the durable notification log of a ride in sequence order.
func (s *Service) ListDispatches(ctx context.Context, rideID types.ID) ([]*store.Dispatch, error) {
	out, err := s.store.ListDispatches(ctx, rideID)
	if err != nil {
		return nil, s.fail("get", err)
	}
	return out, nil
}
