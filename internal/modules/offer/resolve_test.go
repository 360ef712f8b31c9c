package offer

import (
	"context"
	"errors"
	"testing"
	"time"

	"weride/internal/store"
	"weride/internal/types"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	st   *store.Memory
	ride *store.Ride
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	p := &store.User{ID: types.NewID(), Name: "P", Phone: "+92300", Role: store.RolePassenger, Rating: 5, Active: true}
	r := &store.Ride{ID: types.NewID(), PassengerID: p.ID, Pickup: "A", Destination: "B",
		PriceOffer: types.NewMoney(500), Status: store.RideStatusPending, RequestedAt: now}
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateUser(context.Background(), p); err != nil {
			return err
		}
		return tx.CreateRide(context.Background(), r)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return &fixture{st: st, ride: r}
}

func (f *fixture) addOffer(t *testing.T, driverID types.ID, price int64, status store.OfferStatus) *store.Offer {
	t.Helper()
	o := &store.Offer{ID: types.NewID(), RideID: f.ride.ID, DriverID: driverID, Price: types.NewMoney(price),
		ETAMinutes: 5, Status: status, CreatedAt: now}
	if err := f.st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateOffer(context.Background(), o)
	}); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return o
}

func (f *fixture) status(t *testing.T, id types.ID) store.OfferStatus {
	t.Helper()
	o, err := f.st.GetOffer(context.Background(), id)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	return o.Status
}

func TestResolveRejectsEverySibling(t *testing.T) {
	f := newFixture(t)
	d1 := f.addOffer(t, "d1", 400, store.OfferStatusPending)
	d2 := f.addOffer(t, "d2", 420, store.OfferStatusPending)
	d3 := f.addOffer(t, "d3", 430, store.OfferStatusExpired)

	var res *Resolution
	err := f.st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		res, err = Resolve(context.Background(), tx, d1.ID, now)
		return err
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Accepted.ID != d1.ID || len(res.Rejected) != 2 {
		t.Fatalf("unexpected resolution: accepted=%s rejected=%d", res.Accepted.ID, len(res.Rejected))
	}
	if got := f.status(t, d1.ID); got != store.OfferStatusAccepted {
		t.Errorf("d1 status = %s, want accepted", got)
	}
	if got := f.status(t, d2.ID); got != store.OfferStatusRejected {
		t.Errorf("d2 status = %s, want rejected", got)
	}
	if got := f.status(t, d3.ID); got != store.OfferStatusRejected {
		t.Errorf("d3 status = %s, want rejected", got)
	}
}

func TestResolveNonPendingOffer(t *testing.T) {
	f := newFixture(t)
	o := f.addOffer(t, "d1", 400, store.OfferStatusRejected)
	err := f.st.InTx(context.Background(), func(tx store.Tx) error {
		_, err := Resolve(context.Background(), tx, o.ID, now)
		return err
	})
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}

func TestResolveMissingOffer(t *testing.T) {
	f := newFixture(t)
	err := f.st.InTx(context.Background(), func(tx store.Tx) error {
		_, err := Resolve(context.Background(), tx, types.NewID(), now)
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestResolveRefusesSecondAcceptance(t *testing.T) {
	f := newFixture(t)
	f.addOffer(t, "d1", 400, store.OfferStatusAccepted)
	o := f.addOffer(t, "d2", 420, store.OfferStatusPending)
	err := f.st.InTx(context.Background(), func(tx store.Tx) error {
		_, err := Resolve(context.Background(), tx, o.ID, now)
		return err
	})
	if !errors.Is(err, ErrAlreadyChosen) {
		t.Fatalf("expected ErrAlreadyChosen, got %v", err)
	}
	if got := f.status(t, o.ID); got != store.OfferStatusPending {
		t.Fatalf("offer changed to %s after refused acceptance", got)
	}
}

func TestCheckDuplicate(t *testing.T) {
	f := newFixture(t)
	f.addOffer(t, "d1", 400, store.OfferStatusPending)
	f.addOffer(t, "d2", 400, store.OfferStatusExpired)

	cases := []struct {
		driver types.ID
		want   error
	}{
		{"d1", ErrDuplicate},
		{"d2", nil},
		{"d3", nil},
	}
	for _, tc := range cases {
		err := CheckDuplicate(context.Background(), f.st, f.ride.ID, tc.driver)
		if !errors.Is(err, tc.want) {
			t.Errorf("CheckDuplicate(%s) = %v, want %v", tc.driver, err, tc.want)
		}
	}
}

func TestExpireOnlyTouchesPending(t *testing.T) {
	f := newFixture(t)
	p := f.addOffer(t, "d1", 400, store.OfferStatusPending)
	r := f.addOffer(t, "d2", 410, store.OfferStatusRejected)

	var expired []*store.Offer
	err := f.st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		expired, err = Expire(context.Background(), tx, f.ride.ID, now)
		return err
	})
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != p.ID {
		t.Fatalf("unexpected expired set: %v", expired)
	}
	if got := f.status(t, p.ID); got != store.OfferStatusExpired {
		t.Errorf("pending offer status = %s, want expired", got)
	}
	if got := f.status(t, r.ID); got != store.OfferStatusRejected {
		t.Errorf("rejected offer status = %s, want rejected", got)
	}
}
