// README: Renders planned notifications, delivers them, and records every outcome in the dispatch log.
package notify

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

const defaultTimeout = 10 * time.Second

type Dispatcher struct {
	store    store.Store
	channel  Channel
	log      *slog.Logger
	selector Selector
	composer Composer
	timeout  time.Duration
	async    bool
	now      func() time.Time
	wg       sync.WaitGroup
}

type Option func(*Dispatcher)

func WithSelector(s Selector) Option { return func(d *Dispatcher) { d.selector = s } }

func WithComposer(c Composer) Option { return func(d *Dispatcher) { d.composer = c } }

func WithTimeout(t time.Duration) Option { return func(d *Dispatcher) { d.timeout = t } }

// WithAsync makes Dispatch return immediately and deliver in the background.
func WithAsync(async bool) Option { return func(d *Dispatcher) { d.async = async } }

func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

func NewDispatcher(st store.Store, ch Channel, log *slog.Logger, opts ...Option) *Dispatcher {
	if ch == nil {
		ch = DemoChannel{}
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		store:    st,
		channel:  ch,
		log:      log,
		selector: NewRandSelector(uint64(time.Now().UnixNano())),
		timeout:  defaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers ns for rideID. In async mode it returns nil right away and the
// log entries become visible once delivery finishes; use Wait to drain.
func (d *Dispatcher) Dispatch(ctx context.Context, rideID types.ID, ns []Notification) []*store.Dispatch {
	if len(ns) == 0 {
		return nil
	}
	if !d.async {
		return d.send(ctx, rideID, ns)
	}
	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(bg, rideID, ns)
	}()
	return nil
}

// Wait blocks until every background dispatch has been logged.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) send(ctx context.Context, rideID types.ID, ns []Notification) []*store.Dispatch {
	out := make([]*store.Dispatch, 0, len(ns))
	// The outcome is logged even when the caller has gone away.
	logCtx := context.WithoutCancel(ctx)
	for _, n := range ns {
		entry := d.deliver(ctx, rideID, n)
		if err := d.store.InTx(logCtx, func(tx store.Tx) error { return tx.AppendDispatch(logCtx, entry) }); err != nil {
			d.log.Error("dispatch log append failed", "ride_id", rideID, "template", n.Template, "err", err)
		}
		observability.DispatchesTotal.WithLabelValues(string(n.Event), string(entry.Status)).Inc()
		d.log.Info("dispatch", "ride_id", rideID, "event", n.Event, "template", n.Template,
			"status", entry.Status, "seq", entry.Seq)
		out = append(out, entry)
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, rideID types.ID, n Notification) *store.Dispatch {
	entry := &store.Dispatch{
		RideID:      rideID,
		Destination: n.Destination,
		Kind:        string(n.Event),
		Template:    string(n.Template),
	}
	fail := func(err error) *store.Dispatch {
		entry.Status = store.DispatchFailed
		entry.Error = err.Error()
		entry.CreatedAt = d.now()
		d.log.Warn("delivery failed", "ride_id", rideID, "template", n.Template, "err", err)
		return entry
	}

	tmpl, ok := Lookup(n.Template)
	if !ok {
		return fail(deliveryErr("", errors.New("unknown template "+string(n.Template))))
	}
	entry.Medium = string(tmpl.Medium)
	if err := tmpl.Validate(n.Vars); err != nil {
		return fail(err)
	}
	msg := Message{
		RideID:      rideID,
		Destination: n.Destination,
		Template:    tmpl.ID,
		Medium:      tmpl.Medium,
		Vars:        n.Vars,
		Body:        tmpl.Render(n.Vars, d.selector.Pick(len(tmpl.Variants))),
		Voice:       tmpl.Voice,
		Gather:      tmpl.Gather,
		Priority:    tmpl.Priority,
	}

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if d.composer != nil && msg.Medium == MediumVoice {
		if body, err := d.composer.Compose(cctx, msg); err == nil && body != "" {
			msg.Body = body
		} else if err != nil {
			d.log.Debug("compose fell back to template", "template", n.Template, "err", err)
		}
	}

	id, err := d.channel.Deliver(cctx, msg)
	switch {
	case errors.Is(err, ErrDemoMode):
		entry.Status = store.DispatchSkipped
	case err != nil:
		if !errors.Is(err, ErrDelivery) {
			err = deliveryErr(msg.Medium, err)
		}
		return fail(err)
	default:
		entry.Status = store.DispatchDelivered
		entry.DeliveryID = id
	}
	entry.CreatedAt = d.now()
	return entry
}
