// README: Ride triggers and the transition table.
package ride

import "weride/internal/store"

type Trigger string

const (
	TriggerCreate   Trigger = "create"
	TriggerAccept   Trigger = "accept"
	TriggerEnRoute  Trigger = "enroute"
	TriggerArrive   Trigger = "arrive"
	TriggerStart    Trigger = "start"
	TriggerComplete Trigger = "complete"
	TriggerCancel   Trigger = "cancel"
)

type rule struct {
	from []store.RideStatus
	to   store.RideStatus
}

// Transitions is the state flow as code. Cancel is handled by Next for every non-terminal state.
var Transitions = map[Trigger]rule{
	TriggerAccept:   {from: []store.RideStatus{store.RideStatusPending}, to: store.RideStatusAccepted},
	TriggerEnRoute:  {from: []store.RideStatus{store.RideStatusAccepted}, to: store.RideStatusEnRoute},
	TriggerArrive:   {from: []store.RideStatus{store.RideStatusAccepted, store.RideStatusEnRoute}, to: store.RideStatusArrived},
	TriggerStart:    {from: []store.RideStatus{store.RideStatusArrived}, to: store.RideStatusInProgress},
	TriggerComplete: {from: []store.RideStatus{store.RideStatusInProgress}, to: store.RideStatusCompleted},
}

// Next returns the state trigger leads to from cur, or false if the pair is not in the table.
func Next(cur store.RideStatus, trigger Trigger) (store.RideStatus, bool) {
	if trigger == TriggerCancel {
		if cur.Terminal() || !known(cur) {
			return "", false
		}
		return store.RideStatusCancelled, true
	}
	r, ok := Transitions[trigger]
	if !ok {
		return "", false
	}
	for _, s := range r.from {
		if s == cur {
			return r.to, true
		}
	}
	return "", false
}

var statuses = []store.RideStatus{
	store.RideStatusPending, store.RideStatusAccepted, store.RideStatusEnRoute, store.RideStatusArrived,
	store.RideStatusInProgress, store.RideStatusCompleted, store.RideStatusCancelled,
}

func known(s store.RideStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// CallKind is an interactive call that may be placed at most once per ride.
type CallKind string

const (
	CallArrival  CallKind = "arrival"
	CallSafety   CallKind = "safety"
	CallFeedback CallKind = "feedback"
)

// callRequires is the ride state each call kind is valid in.
var callRequires = map[CallKind]store.RideStatus{
	CallArrival:  store.RideStatusArrived,
	CallSafety:   store.RideStatusInProgress,
	CallFeedback: store.RideStatusCompleted,
}

// markCall sets the idempotency flag for kind and reports whether it was clear.
func markCall(r *store.Ride, kind CallKind) bool {
	var flag *bool
	switch kind {
	case CallArrival:
		flag = &r.ArrivalCallMade
	case CallSafety:
		flag = &r.SafetyCheckMade
	case CallFeedback:
		flag = &r.FeedbackCallMade
	default:
		return false
	}
	if *flag {
		return false
	}
	*flag = true
	return true
}
