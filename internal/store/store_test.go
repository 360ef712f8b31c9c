// README: Contract tests run against the in-memory store and, with WERIDE_TEST_DSN, against Postgres.
package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"weride/internal/store"
	"weride/internal/store/pgtest"
	"weride/internal/types"
)

func TestMemoryStoreContract(t *testing.T) {
	runContract(t, func(t *testing.T) store.Store { return store.NewMemory() })
}

func TestPostgresStoreContract(t *testing.T) {
	runContract(t, func(t *testing.T) store.Store { return store.NewPostgres(pgtest.Open(t)) })
}

func runContract(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("create and read back", func(t *testing.T) { testCreateAndRead(t, open(t)) })
	t.Run("rollback discards every write", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("phone is unique", func(t *testing.T) { testUniquePhone(t, open(t)) })
	t.Run("tracking keeps arrival order", func(t *testing.T) { testTrackingOrder(t, open(t)) })
	t.Run("active ride by driver", func(t *testing.T) { testActiveRide(t, open(t)) })
	t.Run("dispatch sequence increases", func(t *testing.T) { testDispatchSeq(t, open(t)) })
	t.Run("one rating per rater and ride", func(t *testing.T) { testRatingUnique(t, open(t)) })
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedRide(t *testing.T, s store.Store, phone string) (*store.User, *store.Ride) {
	t.Helper()
	u := &store.User{
		ID: types.NewID(), Name: "Ayesha", Phone: phone, Role: store.RolePassenger,
		Rating: store.DefaultRating, Active: true, CreatedAt: t0,
	}
	r := &store.Ride{
		ID: types.NewID(), PassengerID: u.ID, Pickup: "A", Destination: "B",
		PriceOffer: types.NewMoney(500), Status: store.RideStatusPending, RequestedAt: t0,
	}
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateUser(context.Background(), u); err != nil {
			return err
		}
		return tx.CreateRide(context.Background(), r)
	})
	if err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return u, r
}

func seedDriver(t *testing.T, s store.Store, phone string) *store.User {
	t.Helper()
	u := &store.User{
		ID: types.NewID(), Name: "Bilal", Phone: phone, Role: store.RoleDriver,
		Rating: store.DefaultRating, Active: true, CreatedAt: t0,
	}
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateUser(context.Background(), u); err != nil {
			return err
		}
		return tx.UpsertDriver(context.Background(), &store.Driver{UserID: u.ID, Vehicle: "Toyota Corolla", HourlyRate: 15})
	})
	if err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	return u
}

func testCreateAndRead(t *testing.T, s store.Store) {
	ctx := context.Background()
	u, r := seedRide(t, s, "+920000000001")

	got, err := s.GetUserByPhone(ctx, u.Phone)
	if err != nil {
		t.Fatalf("get user by phone: %v", err)
	}
	if got.ID != u.ID || got.Rating != store.DefaultRating {
		t.Fatalf("unexpected user: %+v", got)
	}

	ride, err := s.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if ride.Status != store.RideStatusPending || ride.DriverID != nil || ride.FinalPrice != nil {
		t.Fatalf("unexpected ride: %+v", ride)
	}
	if ride.PriceOffer.Amount != 500 {
		t.Fatalf("price offer = %d, want 500", ride.PriceOffer.Amount)
	}

	pending, err := s.ListRidesByStatus(ctx, store.RideStatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != r.ID {
		t.Fatalf("unexpected pending rides: %v", pending)
	}

	if _, err := s.GetRide(ctx, types.NewID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing ride: expected ErrNotFound, got %v", err)
	}
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, r := seedRide(t, s, "+920000000002")

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx store.Tx) error {
		ride, err := tx.LockRide(ctx, r.ID)
		if err != nil {
			return err
		}
		ride.Status = store.RideStatusCancelled
		if err := tx.UpdateRide(ctx, ride); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &store.Event{RideID: r.ID, FromStatus: store.RideStatusPending,
			ToStatus: store.RideStatusCancelled, Trigger: "cancel", ActorType: "system", CreatedAt: t0}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	ride, err := s.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if ride.Status != store.RideStatusPending {
		t.Fatalf("rolled back ride has status %s", ride.Status)
	}
	events, err := s.ListEvents(ctx, r.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events after rollback, got %d", len(events))
	}
}

func testUniquePhone(t *testing.T, s store.Store) {
	ctx := context.Background()
	u, _ := seedRide(t, s, "+920000000003")
	err := s.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateUser(ctx, &store.User{ID: types.NewID(), Name: "Other", Phone: u.Phone,
			Role: store.RolePassenger, Rating: store.DefaultRating, Active: true, CreatedAt: t0})
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func testTrackingOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, r := seedRide(t, s, "+920000000004")
	d := seedDriver(t, s, "+920000000005")

	for i := 0; i < 3; i++ {
		err := s.InTx(ctx, func(tx store.Tx) error {
			return tx.AppendTracking(ctx, &store.TrackingPoint{
				RideID: r.ID, DriverID: d.ID,
				Position:   types.Point{Lat: 31.5 + float64(i)/100, Lng: 74.3},
				RecordedAt: t0.Add(time.Duration(i) * time.Second),
			})
		})
		if err != nil {
			t.Fatalf("append tracking %d: %v", i, err)
		}
	}
	points, err := s.ListTracking(ctx, r.ID)
	if err != nil {
		t.Fatalf("list tracking: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].Seq <= points[i-1].Seq {
			t.Fatalf("tracking out of order: %d after %d", points[i].Seq, points[i-1].Seq)
		}
	}
}

func testActiveRide(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, r := seedRide(t, s, "+920000000006")
	d := seedDriver(t, s, "+920000000007")

	if _, err := s.FindActiveRideByDriver(ctx, d.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before assignment, got %v", err)
	}
	err := s.InTx(ctx, func(tx store.Tx) error {
		ride, err := tx.LockRide(ctx, r.ID)
		if err != nil {
			return err
		}
		ride.DriverID = &d.ID
		price := types.NewMoney(450)
		ride.FinalPrice = &price
		ride.Status = store.RideStatusAccepted
		return tx.UpdateRide(ctx, ride)
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err := s.FindActiveRideByDriver(ctx, d.ID)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if got.ID != r.ID || got.FinalPrice == nil || got.FinalPrice.Amount != 450 {
		t.Fatalf("unexpected active ride: %+v", got)
	}
}

func testDispatchSeq(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, r := seedRide(t, s, "+920000000008")
	var last int64
	for i := 0; i < 3; i++ {
		d := &store.Dispatch{RideID: r.ID, Destination: "+920000000008", Kind: "ride_created",
			Template: "booking_confirmed", Medium: "voice", Status: store.DispatchSkipped, CreatedAt: t0}
		if err := s.InTx(ctx, func(tx store.Tx) error { return tx.AppendDispatch(ctx, d) }); err != nil {
			t.Fatalf("append dispatch: %v", err)
		}
		if d.Seq <= last {
			t.Fatalf("seq %d not greater than %d", d.Seq, last)
		}
		last = d.Seq
	}
	log, err := s.ListDispatches(ctx, r.ID)
	if err != nil {
		t.Fatalf("list dispatches: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(log))
	}
}

func testRatingUnique(t *testing.T, s store.Store) {
	ctx := context.Background()
	u, r := seedRide(t, s, "+920000000009")
	d := seedDriver(t, s, "+920000000010")
	rate := func() error {
		return s.InTx(ctx, func(tx store.Tx) error {
			return tx.CreateRating(ctx, &store.Rating{ID: types.NewID(), RideID: r.ID, RaterID: u.ID,
				RatedID: d.ID, Score: 5, CreatedAt: t0})
		})
	}
	if err := rate(); err != nil {
		t.Fatalf("first rating: %v", err)
	}
	if err := rate(); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second rating: expected ErrConflict, got %v", err)
	}
}
