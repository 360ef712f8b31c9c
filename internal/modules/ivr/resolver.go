// README: Pure keypad resolver for interactive calls; maps (call context, digit) to the spoken reply and a follow-up action.
package ivr

import (
	"strings"

	"weride/internal/modules/notify"
	"weride/internal/types"
)

// Kind is the call context a digit was collected in.
type Kind string

const (
	KindArrival  Kind = notify.GatherArrival
	KindSafety   Kind = notify.GatherSafety
	KindFeedback Kind = notify.GatherFeedback
)

// Action is the follow-up a resolved digit asks for.
type Action string

const (
	ActionComing    Action = "passenger_coming"
	ActionMoreTime  Action = "passenger_needs_time"
	ActionSafe      Action = "passenger_safe"
	ActionEmergency Action = "emergency"
	ActionRate      Action = "rate"
	ActionFallback  Action = "fallback"
)

type CallContext struct {
	Kind   Kind
	RideID types.ID
}

type Response struct {
	Message string
	Voice   string
	Action  Action
	// Score is the 1..5 rating for ActionRate.
	Score int
}

var feedbackWords = map[string]string{
	"1": "excellent",
	"2": "good",
	"3": "average",
	"4": "below average",
	"5": "poor",
}

const fallbackMessage = "We did not recognise your input. If you need help, please contact WeRide support. Thank you for using WeRide!"

// Resolve maps one keystroke in a call context to the reply spoken back to the caller.
// An empty digit means the caller pressed nothing.
func Resolve(cc CallContext, digit string) Response {
	digit = strings.TrimSpace(digit)
	res := Response{Voice: voiceFor(cc.Kind)}
	switch cc.Kind {
	case KindArrival:
		switch digit {
		case "1":
			res.Action = ActionComing
			res.Message = "Perfect! We've told your driver you are on your way out. Please confirm the vehicle before getting in. Have a safe ride with WeRide!"
		case "2":
			res.Action = ActionMoreTime
			res.Message = "No problem! We've let your driver know you need a few more minutes. They will wait for you."
		}
	case KindSafety:
		switch digit {
		case "1":
			res.Action = ActionSafe
			res.Message = "Thank you for confirming you are safe. Enjoy the rest of your ride with WeRide!"
		case "2", "9":
			res.Action = ActionEmergency
			res.Message = "WeRide emergency protocol is now active. Our safety team has been alerted and will contact you immediately. Please stay on the line."
		default:
			res.Action = ActionFallback
			res.Message = "This is WeRide safety monitoring. If you are in immediate danger, please call your local emergency number. Our safety team will follow up with you."
			return res
		}
	case KindFeedback:
		if word, ok := feedbackWords[digit]; ok {
			res.Action = ActionRate
			res.Score = 6 - int(digit[0]-'0')
			res.Message = "Thank you for rating your ride as " + word + "! Your feedback helps us improve. We look forward to serving you again."
		}
	}
	if res.Action == "" {
		res.Action = ActionFallback
		res.Message = fallbackMessage
	}
	return res
}

func voiceFor(k Kind) string {
	for _, t := range notify.Templates() {
		if t.Gather == string(k) {
			return t.Voice
		}
	}
	return ""
}
