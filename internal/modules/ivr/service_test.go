package ivr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"weride/internal/modules/notify"
	"weride/internal/modules/rating"
	"weride/internal/modules/ride"
	"weride/internal/store"
	"weride/internal/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type env struct {
	st    *store.Memory
	rides *ride.Service
	svc   *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemory()
	disp := notify.NewDispatcher(st, notify.DemoChannel{}, quiet)
	rides := ride.NewService(st, ride.Deps{
		Dispatcher: disp,
		Planner:    notify.Planner{DriversTopic: "drivers", SafetyDesk: "+923000009999"},
		Log:        quiet,
	})
	return &env{st: st, rides: rides, svc: NewService(rides, rating.NewService(st, quiet), quiet)}
}

// advance creates a ride and drives it through the lifecycle until it reaches status.
func (e *env) advance(t *testing.T, status store.RideStatus) types.ID {
	t.Helper()
	ctx := context.Background()
	rideID, err := e.rides.CreateRide(ctx, ride.CreateRideCommand{
		PassengerPhone: "+923000000001", PassengerName: "Ayesha", Pickup: "Gulberg", Destination: "DHA", PriceOffer: 500,
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	offerID, err := e.rides.SubmitOffer(ctx, ride.SubmitOfferCommand{
		RideID: rideID, DriverPhone: "+923000000002", DriverName: "Bilal", Price: 450, ETAMinutes: 5,
	})
	if err != nil {
		t.Fatalf("submit offer: %v", err)
	}
	steps := []struct {
		reached store.RideStatus
		run     func() error
	}{
		{store.RideStatusAccepted, func() error { _, err := e.rides.AcceptOffer(ctx, offerID); return err }},
		{store.RideStatusArrived, func() error { return e.rides.MarkArrived(ctx, rideID) }},
		{store.RideStatusInProgress, func() error { return e.rides.StartRide(ctx, rideID) }},
		{store.RideStatusCompleted, func() error { return e.rides.CompleteRide(ctx, rideID) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("advance to %s: %v", s.reached, err)
		}
		if s.reached == status {
			return rideID
		}
	}
	t.Fatalf("cannot advance to %s", status)
	return ""
}

func (e *env) triggers(t *testing.T, rideID types.ID) map[string]int {
	t.Helper()
	evs, err := e.rides.ListEvents(context.Background(), rideID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	out := map[string]int{}
	for _, ev := range evs {
		out[ev.Trigger]++
	}
	return out
}

func TestFeedbackDigitRatesDriver(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rideID := e.advance(t, store.RideStatusCompleted)

	res, err := e.svc.Handle(ctx, CallContext{Kind: KindFeedback, RideID: rideID}, "1")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Action != ActionRate || res.Score != 5 {
		t.Fatalf("unexpected response %+v", res)
	}
	r, _ := e.rides.GetRide(ctx, rideID)
	driver, err := e.st.GetUser(ctx, *r.DriverID)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	if driver.RatingCount != 1 || driver.Rating != 5 {
		t.Fatalf("driver rating = %v over %d", driver.Rating, driver.RatingCount)
	}

	// A second keypress on a repeated call is answered but not counted again.
	if _, err := e.svc.Handle(ctx, CallContext{Kind: KindFeedback, RideID: rideID}, "4"); err != nil {
		t.Fatalf("repeat handle: %v", err)
	}
	driver, _ = e.st.GetUser(ctx, *r.DriverID)
	if driver.RatingCount != 1 {
		t.Fatalf("repeat rating counted: %d", driver.RatingCount)
	}
}

func TestSafetyEmergencyEscalates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rideID := e.advance(t, store.RideStatusInProgress)

	if _, err := e.svc.Handle(ctx, CallContext{Kind: KindSafety, RideID: rideID}, "9"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := e.triggers(t, rideID)["emergency_escalated"]; got != 1 {
		t.Fatalf("emergency events = %d, want 1", got)
	}
	log, err := e.rides.ListDispatches(ctx, rideID)
	if err != nil {
		t.Fatalf("list dispatches: %v", err)
	}
	alerts := 0
	for _, d := range log {
		if d.Template == string(notify.TemplateEmergencyAlert) {
			alerts++
			if d.Destination != "+923000009999" {
				t.Errorf("alert sent to %q", d.Destination)
			}
		}
	}
	if alerts != 1 {
		t.Fatalf("emergency alerts = %d, want 1", alerts)
	}

	// Confirming safety performs no follow-up.
	if _, err := e.svc.Handle(ctx, CallContext{Kind: KindSafety, RideID: rideID}, "1"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := e.triggers(t, rideID)["emergency_escalated"]; got != 1 {
		t.Fatalf("safe answer escalated: %d", got)
	}
}

func TestArrivalDigitsNotifyDriver(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rideID := e.advance(t, store.RideStatusArrived)

	for _, d := range []string{"1", "2", "5"} {
		if _, err := e.svc.Handle(ctx, CallContext{Kind: KindArrival, RideID: rideID}, d); err != nil {
			t.Fatalf("handle %s: %v", d, err)
		}
	}
	got := e.triggers(t, rideID)
	if got["passenger_coming"] != 1 || got["passenger_needs_time"] != 1 {
		t.Fatalf("unexpected events %v", got)
	}
}

type failingRides struct{ err error }

func (f failingRides) GetRide(context.Context, types.ID) (*store.Ride, error) { return nil, f.err }
func (f failingRides) NotifyDriver(context.Context, types.ID, bool) error     { return f.err }
func (f failingRides) Escalate(context.Context, types.ID, string) error       { return f.err }

func TestFollowUpFailureStillAnswers(t *testing.T) {
	boom := errors.New("store down")
	svc := NewService(failingRides{err: boom}, nil, quiet)
	res, err := svc.Handle(context.Background(), CallContext{Kind: KindSafety, RideID: "r1"}, "2")
	if !errors.Is(err, boom) {
		t.Fatalf("expected follow-up error, got %v", err)
	}
	if res.Action != ActionEmergency || res.Message == "" {
		t.Fatalf("caller left without a reply: %+v", res)
	}

	// No ride id means nothing to act on.
	if _, err := svc.Handle(context.Background(), CallContext{Kind: KindSafety}, "9"); err != nil {
		t.Fatalf("handle without ride: %v", err)
	}
}
