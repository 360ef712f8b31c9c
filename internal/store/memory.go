// README: In-memory entity store; each InTx works on a private copy that replaces the committed state on success.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"weride/internal/types"
)

type Memory struct {
	mu   sync.RWMutex
	data *memData
}

func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

var _ Store = (*Memory)(nil)

type memData struct {
	users   map[types.ID]*User
	phones  map[string]types.ID
	drivers map[types.ID]*Driver
	plates  map[string]types.ID
	rides   map[types.ID]*Ride
	offers  map[types.ID]*Offer
	ratings map[types.ID]*Rating

	tracking   []*TrackingPoint
	events     []*Event
	dispatches []*Dispatch

	trackingSeq int64
	eventSeq    int64
	dispatchSeq int64
}

func newMemData() *memData {
	return &memData{
		users:   map[types.ID]*User{},
		phones:  map[string]types.ID{},
		drivers: map[types.ID]*Driver{},
		plates:  map[string]types.ID{},
		rides:   map[types.ID]*Ride{},
		offers:  map[types.ID]*Offer{},
		ratings: map[types.ID]*Rating{},
	}
}

// clone copies the mutable records; append-only logs share their immutable entries.
func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range d.phones {
		c.phones[k] = v
	}
	for k, v := range d.drivers {
		c.drivers[k] = cloneDriver(v)
	}
	for k, v := range d.plates {
		c.plates[k] = v
	}
	for k, v := range d.rides {
		c.rides[k] = cloneRide(v)
	}
	for k, v := range d.offers {
		c.offers[k] = cloneOffer(v)
	}
	for k, v := range d.ratings {
		c.ratings[k] = v
	}
	c.tracking = slices.Clone(d.tracking)
	c.events = slices.Clone(d.events)
	c.dispatches = slices.Clone(d.dispatches)
	c.trackingSeq = d.trackingSeq
	c.eventSeq = d.eventSeq
	c.dispatchSeq = d.dispatchSeq
	return c
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(&memTx{memData: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data = work
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id types.ID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetUser(ctx, id)
}

func (m *Memory) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetUserByPhone(ctx, phone)
}

func (m *Memory) GetDriver(ctx context.Context, userID types.ID) (*Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetDriver(ctx, userID)
}

func (m *Memory) ListOnlineDrivers(ctx context.Context) ([]*Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListOnlineDrivers(ctx)
}

func (m *Memory) GetRide(ctx context.Context, id types.ID) (*Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetRide(ctx, id)
}

func (m *Memory) ListRidesByStatus(ctx context.Context, statuses ...RideStatus) ([]*Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListRidesByStatus(ctx, statuses...)
}

func (m *Memory) FindActiveRideByDriver(ctx context.Context, driverID types.ID) (*Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.FindActiveRideByDriver(ctx, driverID)
}

func (m *Memory) GetOffer(ctx context.Context, id types.ID) (*Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetOffer(ctx, id)
}

func (m *Memory) ListOffersByRide(ctx context.Context, rideID types.ID) ([]*Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListOffersByRide(ctx, rideID)
}

func (m *Memory) ListTracking(ctx context.Context, rideID types.ID) ([]*TrackingPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListTracking(ctx, rideID)
}

func (m *Memory) GetRatingByRater(ctx context.Context, rideID, raterID types.ID) (*Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetRatingByRater(ctx, rideID, raterID)
}

func (m *Memory) ListEvents(ctx context.Context, rideID types.ID) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListEvents(ctx, rideID)
}

func (m *Memory) ListDispatches(ctx context.Context, rideID types.ID) ([]*Dispatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListDispatches(ctx, rideID)
}

// ---------------------------------------------------------------------------
// reads (shared by Memory and memTx; callers hold the lock)
// ---------------------------------------------------------------------------

func (d *memData) GetUser(_ context.Context, id types.ID) (*User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (d *memData) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	id, ok := d.phones[phone]
	if !ok {
		return nil, ErrNotFound
	}
	return d.GetUser(ctx, id)
}

func (d *memData) GetDriver(_ context.Context, userID types.ID) (*Driver, error) {
	v, ok := d.drivers[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDriver(v), nil
}

func (d *memData) ListOnlineDrivers(_ context.Context) ([]*Driver, error) {
	var out []*Driver
	for _, v := range d.drivers {
		if v.Online {
			out = append(out, cloneDriver(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (d *memData) GetRide(_ context.Context, id types.ID) (*Ride, error) {
	r, ok := d.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRide(r), nil
}

func (d *memData) ListRidesByStatus(_ context.Context, statuses ...RideStatus) ([]*Ride, error) {
	var out []*Ride
	for _, r := range d.rides {
		if slices.Contains(statuses, r.Status) {
			out = append(out, cloneRide(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (d *memData) FindActiveRideByDriver(_ context.Context, driverID types.ID) (*Ride, error) {
	for _, r := range d.rides {
		if r.DriverID != nil && *r.DriverID == driverID && slices.Contains(ActiveDriverStatuses, r.Status) {
			return cloneRide(r), nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) GetOffer(_ context.Context, id types.ID) (*Offer, error) {
	o, ok := d.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOffer(o), nil
}

func (d *memData) ListOffersByRide(_ context.Context, rideID types.ID) ([]*Offer, error) {
	var out []*Offer
	for _, o := range d.offers {
		if o.RideID == rideID {
			out = append(out, cloneOffer(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (d *memData) ListTracking(_ context.Context, rideID types.ID) ([]*TrackingPoint, error) {
	var out []*TrackingPoint
	for _, p := range d.tracking {
		if p.RideID == rideID {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (d *memData) GetRatingByRater(_ context.Context, rideID, raterID types.ID) (*Rating, error) {
	for _, r := range d.ratings {
		if r.RideID == rideID && r.RaterID == raterID {
			c := *r
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) ListEvents(_ context.Context, rideID types.ID) ([]*Event, error) {
	var out []*Event
	for _, e := range d.events {
		if e.RideID == rideID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (d *memData) ListDispatches(_ context.Context, rideID types.ID) ([]*Dispatch, error) {
	var out []*Dispatch
	for _, e := range d.dispatches {
		if e.RideID == rideID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// writes
// ---------------------------------------------------------------------------

type memTx struct {
	*memData
}

func (t *memTx) LockRide(ctx context.Context, id types.ID) (*Ride, error) {
	return t.GetRide(ctx, id)
}

func (t *memTx) LockUser(ctx context.Context, id types.ID) (*User, error) {
	return t.GetUser(ctx, id)
}

func (t *memTx) CreateUser(_ context.Context, u *User) error {
	if _, ok := t.users[u.ID]; ok {
		return ErrConflict
	}
	if _, ok := t.phones[u.Phone]; ok {
		return ErrConflict
	}
	t.users[u.ID] = cloneUser(u)
	t.phones[u.Phone] = u.ID
	return nil
}

func (t *memTx) UpdateUser(_ context.Context, u *User) error {
	prev, ok := t.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if prev.Phone != u.Phone {
		if owner, taken := t.phones[u.Phone]; taken && owner != u.ID {
			return ErrConflict
		}
		delete(t.phones, prev.Phone)
		t.phones[u.Phone] = u.ID
	}
	t.users[u.ID] = cloneUser(u)
	return nil
}

func (t *memTx) UpsertDriver(_ context.Context, d *Driver) error {
	if _, ok := t.users[d.UserID]; !ok {
		return ErrNotFound
	}
	if d.LicensePlate != nil {
		if owner, taken := t.plates[*d.LicensePlate]; taken && owner != d.UserID {
			return ErrConflict
		}
	}
	if prev, ok := t.drivers[d.UserID]; ok && prev.LicensePlate != nil {
		delete(t.plates, *prev.LicensePlate)
	}
	if d.LicensePlate != nil {
		t.plates[*d.LicensePlate] = d.UserID
	}
	t.drivers[d.UserID] = cloneDriver(d)
	return nil
}

func (t *memTx) CreateRide(_ context.Context, r *Ride) error {
	if _, ok := t.rides[r.ID]; ok {
		return ErrConflict
	}
	if _, ok := t.users[r.PassengerID]; !ok {
		return ErrNotFound
	}
	t.rides[r.ID] = cloneRide(r)
	return nil
}

func (t *memTx) UpdateRide(_ context.Context, r *Ride) error {
	if _, ok := t.rides[r.ID]; !ok {
		return ErrNotFound
	}
	t.rides[r.ID] = cloneRide(r)
	return nil
}

func (t *memTx) CreateOffer(_ context.Context, o *Offer) error {
	if _, ok := t.offers[o.ID]; ok {
		return ErrConflict
	}
	if _, ok := t.rides[o.RideID]; !ok {
		return ErrNotFound
	}
	t.offers[o.ID] = cloneOffer(o)
	return nil
}

func (t *memTx) UpdateOffer(_ context.Context, o *Offer) error {
	if _, ok := t.offers[o.ID]; !ok {
		return ErrNotFound
	}
	t.offers[o.ID] = cloneOffer(o)
	return nil
}

func (t *memTx) AppendTracking(_ context.Context, p *TrackingPoint) error {
	if _, ok := t.rides[p.RideID]; !ok {
		return ErrNotFound
	}
	t.trackingSeq++
	p.Seq = t.trackingSeq
	c := *p
	t.tracking = append(t.tracking, &c)
	return nil
}

func (t *memTx) CreateRating(_ context.Context, r *Rating) error {
	if _, ok := t.ratings[r.ID]; ok {
		return ErrConflict
	}
	for _, v := range t.ratings {
		if v.RideID == r.RideID && v.RaterID == r.RaterID {
			return ErrConflict
		}
	}
	c := *r
	t.ratings[r.ID] = &c
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, e *Event) error {
	t.eventSeq++
	e.ID = t.eventSeq
	c := *e
	c.ActorID = cloneIDPtr(e.ActorID)
	t.events = append(t.events, &c)
	return nil
}

func (t *memTx) AppendDispatch(_ context.Context, d *Dispatch) error {
	t.dispatchSeq++
	d.Seq = t.dispatchSeq
	c := *d
	t.dispatches = append(t.dispatches, &c)
	return nil
}

// ---------------------------------------------------------------------------
// deep copies
// ---------------------------------------------------------------------------

func cloneUser(u *User) *User {
	c := *u
	if u.Email != nil {
		e := *u.Email
		c.Email = &e
	}
	return &c
}

func cloneDriver(d *Driver) *Driver {
	c := *d
	if d.LicensePlate != nil {
		p := *d.LicensePlate
		c.LicensePlate = &p
	}
	if d.Position != nil {
		p := *d.Position
		c.Position = &p
	}
	c.PositionAt = cloneTimePtr(d.PositionAt)
	return &c
}

func cloneRide(r *Ride) *Ride {
	c := *r
	c.DriverID = cloneIDPtr(r.DriverID)
	if r.PickupPoint != nil {
		p := *r.PickupPoint
		c.PickupPoint = &p
	}
	if r.DestinationPoint != nil {
		p := *r.DestinationPoint
		c.DestinationPoint = &p
	}
	if r.FinalPrice != nil {
		m := *r.FinalPrice
		c.FinalPrice = &m
	}
	if r.CancelReason != nil {
		s := *r.CancelReason
		c.CancelReason = &s
	}
	c.AcceptedAt = cloneTimePtr(r.AcceptedAt)
	c.PickupAt = cloneTimePtr(r.PickupAt)
	c.StartedAt = cloneTimePtr(r.StartedAt)
	c.CompletedAt = cloneTimePtr(r.CompletedAt)
	c.CancelledAt = cloneTimePtr(r.CancelledAt)
	return &c
}

func cloneOffer(o *Offer) *Offer {
	c := *o
	c.ResolvedAt = cloneTimePtr(o.ResolvedAt)
	return &c
}
