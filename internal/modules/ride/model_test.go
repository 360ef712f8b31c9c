package ride

import (
	"testing"

	"weride/internal/store"
)

// TestNext verifies the transition table is total: every pair not listed is refused.
func TestNext(t *testing.T) {
	allowed := map[store.RideStatus]map[Trigger]store.RideStatus{
		store.RideStatusPending: {
			TriggerAccept: store.RideStatusAccepted,
			TriggerCancel: store.RideStatusCancelled,
		},
		store.RideStatusAccepted: {
			TriggerEnRoute: store.RideStatusEnRoute,
			TriggerArrive:  store.RideStatusArrived,
			TriggerCancel:  store.RideStatusCancelled,
		},
		store.RideStatusEnRoute: {
			TriggerArrive: store.RideStatusArrived,
			TriggerCancel: store.RideStatusCancelled,
		},
		store.RideStatusArrived: {
			TriggerStart:  store.RideStatusInProgress,
			TriggerCancel: store.RideStatusCancelled,
		},
		store.RideStatusInProgress: {
			TriggerComplete: store.RideStatusCompleted,
			TriggerCancel:   store.RideStatusCancelled,
		},
		store.RideStatusCompleted: {},
		store.RideStatusCancelled: {},
	}
	triggers := []Trigger{TriggerCreate, TriggerAccept, TriggerEnRoute, TriggerArrive, TriggerStart, TriggerComplete, TriggerCancel}

	for from, next := range allowed {
		for _, tr := range triggers {
			got, ok := Next(from, tr)
			want, wantOK := next[tr]
			if ok != wantOK || got != want {
				t.Errorf("Next(%s, %s) = (%s, %v), want (%s, %v)", from, tr, got, ok, want, wantOK)
			}
		}
	}
	if _, ok := Next("bogus", TriggerCancel); ok {
		t.Error("cancel accepted from an unknown state")
	}
}

func TestMarkCall(t *testing.T) {
	r := &store.Ride{}
	if !markCall(r, CallArrival) || !r.ArrivalCallMade {
		t.Fatal("first arrival call not marked")
	}
	if markCall(r, CallArrival) {
		t.Fatal("second arrival call marked again")
	}
	if !markCall(r, CallSafety) || !markCall(r, CallFeedback) {
		t.Fatal("independent flags interfered")
	}
	if markCall(r, "bogus") {
		t.Fatal("unknown call kind marked")
	}
}
