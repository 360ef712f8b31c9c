// README: Real-time mirror of ride state for external observers; best-effort, never blocks a transition.
package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"weride/internal/observability"
	"weride/internal/store"
	"weride/internal/types"
)

// Snapshot is the public view of a ride pushed to observers.
type Snapshot struct {
	RideID      types.ID         `json:"ride_id"`
	Status      store.RideStatus `json:"status"`
	PassengerID types.ID         `json:"passenger_id"`
	DriverID    *types.ID        `json:"driver_id,omitempty"`
	Pickup      string           `json:"pickup"`
	Destination string           `json:"destination"`
	PriceOffer  int64            `json:"price_offer"`
	FinalPrice  *int64           `json:"final_price,omitempty"`
	Currency    string           `json:"currency"`
	Position    *types.Point     `json:"position,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func SnapshotOf(r *store.Ride, at time.Time) Snapshot {
	s := Snapshot{
		RideID:      r.ID,
		Status:      r.Status,
		PassengerID: r.PassengerID,
		DriverID:    r.DriverID,
		Pickup:      r.Pickup,
		Destination: r.Destination,
		PriceOffer:  r.PriceOffer.Amount,
		Currency:    r.PriceOffer.Currency,
		UpdatedAt:   at,
	}
	if r.FinalPrice != nil {
		amount := r.FinalPrice.Amount
		s.FinalPrice = &amount
	}
	return s
}

type Publisher interface {
	Publish(ctx context.Context, rideID types.ID, s Snapshot) error
}

// Nop discards every snapshot.
type Nop struct{}

func (Nop) Publish(context.Context, types.ID, Snapshot) error { return nil }

// Multi publishes to every sink and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, rideID types.ID, s Snapshot) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, rideID, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async hands snapshots to next in the background and only logs failures.
// Snapshots of one ride are published one at a time in arrival order, and a
// snapshot older than one already sent for that ride is dropped.
type Async struct {
	next    Publisher
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	queues map[types.ID]*rideQueue
	wg     sync.WaitGroup
}

type rideQueue struct {
	pending []Snapshot
	last    time.Time
	status  store.RideStatus
	running bool
}

func NewAsync(next Publisher, log *slog.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, log: log, timeout: timeout, queues: make(map[types.ID]*rideQueue)}
}

func (a *Async) Publish(ctx context.Context, rideID types.ID, s Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	q, ok := a.queues[rideID]
	if !ok {
		q = &rideQueue{}
		a.queues[rideID] = q
	}
	q.pending = append(q.pending, s)
	if !q.running {
		q.running = true
		a.wg.Add(1)
		go a.drain(context.WithoutCancel(ctx), rideID, q)
	}
	return nil
}

func (a *Async) drain(ctx context.Context, rideID types.ID, q *rideQueue) {
	defer a.wg.Done()
	for {
		a.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			if q.status.Terminal() {
				// Held for a grace period so late snapshots of a finished ride are still dropped.
				time.AfterFunc(a.timeout, func() { a.forget(rideID, q) })
			}
			a.mu.Unlock()
			return
		}
		s := q.pending[0]
		q.pending = q.pending[1:]
		stale := !q.last.IsZero() && s.UpdatedAt.Before(q.last)
		if !stale {
			q.last = s.UpdatedAt
			q.status = s.Status
		}
		a.mu.Unlock()

		if stale {
			a.log.Debug("mirror snapshot dropped as stale", "ride_id", rideID, "status", s.Status)
			continue
		}
		a.publish(ctx, rideID, s)
	}
}

func (a *Async) forget(rideID types.ID, q *rideQueue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.queues[rideID] == q && !q.running {
		delete(a.queues, rideID)
	}
}

func (a *Async) publish(ctx context.Context, rideID types.ID, s Snapshot) {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.next.Publish(cctx, rideID, s); err != nil {
		observability.MirrorErrorsTotal.WithLabelValues("any").Inc()
		a.log.Warn("mirror publish failed", "ride_id", rideID, "status", s.Status, "err", err)
	}
}

// Wait blocks until in-flight publishes finish.
func (a *Async) Wait() { a.wg.Wait() }
