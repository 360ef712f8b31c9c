// README: Closed catalog of message templates with their medium, variants and required variables.
package notify

import (
	"errors"
	"fmt"
	"strings"
)

type TemplateID string

const (
	TemplateBookingConfirmed TemplateID = "booking_confirmed"
	TemplateNewRideBroadcast TemplateID = "new_ride_broadcast"
	TemplateNewOffer         TemplateID = "new_offer"
	TemplateDriverAssigned   TemplateID = "driver_assigned"
	TemplateOfferAccepted    TemplateID = "offer_accepted"
	TemplateDriverEnRoute    TemplateID = "driver_enroute"
	TemplateDriverArrived    TemplateID = "driver_arrived"
	TemplatePassengerComing  TemplateID = "passenger_coming"
	TemplatePassengerDelayed TemplateID = "passenger_delayed"
	TemplateRideStarted      TemplateID = "ride_started"
	TemplateSafetyCheck      TemplateID = "safety_check"
	TemplateEmergencyAlert   TemplateID = "emergency_alert"
	TemplateRideCompleted    TemplateID = "ride_completed"
	TemplateFeedbackRequest  TemplateID = "feedback_request"
	TemplateRideCancelled    TemplateID = "ride_cancelled"
)

type Medium string

const (
	MediumVoice Medium = "voice"
	MediumSMS   Medium = "sms"
	MediumPush  Medium = "push"
)

// Var names one template variable; placeholders are written {name}.
type Var string

const (
	VarBookingID      Var = "booking_id"
	VarPickup         Var = "pickup"
	VarDestination    Var = "destination"
	VarPrice          Var = "price"
	VarFinalPrice     Var = "final_price"
	VarOfferPrice     Var = "offer_price"
	VarDriverName     Var = "driver_name"
	VarPassengerName  Var = "passenger_name"
	VarPassengerPhone Var = "passenger_phone"
	VarVehicle        Var = "vehicle"
	VarPlate          Var = "plate"
	VarRating         Var = "rating"
	VarETA            Var = "eta"
	VarReason         Var = "reason"
	VarLastPosition   Var = "last_position"
)

type Vars map[Var]string

// Gather contexts understood by the interactive response webhook.
const (
	GatherArrival  = "arrival"
	GatherSafety   = "safety"
	GatherFeedback = "feedback"
)

const (
	voiceDefault  = "Polly.Joanna"
	voiceSafety   = "Polly.Matthew"
	voiceFeedback = "Polly.Ivy"
)

var ErrMissingVar = errors.New("missing template variable")

type Template struct {
	ID       TemplateID
	Medium   Medium
	Voice    string
	Gather   string
	Priority bool
	Required []Var
	Variants []string
}

var catalog = map[TemplateID]Template{
	TemplateBookingConfirmed: {
		ID: TemplateBookingConfirmed, Medium: MediumVoice, Voice: voiceDefault,
		Required: []Var{VarPrice, VarPickup, VarDestination, VarBookingID},
		Variants: []string{
			"Hello from WeRide. Your ride from {pickup} to {destination} is booked for {price} rupees. Your booking ID is {booking_id}. We will call you again when a driver accepts.",
			"WeRide here. Booking {booking_id} is confirmed: {pickup} to {destination} for {price} rupees. You will get another call once a driver is assigned.",
			"Thank you for choosing WeRide. We booked {pickup} to {destination} at {price} rupees under booking {booking_id}. Drivers can now send you offers.",
		},
	},
	TemplateNewRideBroadcast: {
		ID: TemplateNewRideBroadcast, Medium: MediumPush,
		Required: []Var{VarBookingID, VarPickup, VarDestination, VarPrice},
		Variants: []string{
			"New ride request {booking_id}: {pickup} to {destination}, passenger offers {price} rupees.",
		},
	},
	TemplateNewOffer: {
		ID: TemplateNewOffer, Medium: MediumVoice, Voice: voiceDefault,
		Required: []Var{VarDriverName, VarOfferPrice, VarETA},
		Variants: []string{
			"WeRide update: {driver_name} offered to drive you for {offer_price} rupees and can reach you in about {eta} minutes. Open the app to accept.",
			"Good news from WeRide. Driver {driver_name} sent an offer of {offer_price} rupees with pickup in {eta} minutes.",
		},
	},
	TemplateDriverAssigned: {
		ID: TemplateDriverAssigned, Medium: MediumVoice, Voice: voiceDefault,
		Required: []Var{VarDriverName, VarVehicle, VarPlate, VarRating, VarETA},
		Variants: []string{
			"Good news! {driver_name} accepted your ride. Look for a {vehicle} with plate {plate}. Driver rating is {rating} stars and pickup is in about {eta} minutes.",
			"WeRide here. Your driver is {driver_name}, in a {vehicle}, plate {plate}, rated {rating} stars. Expected pickup in {eta} minutes.",
			"Your WeRide booking is confirmed with {driver_name}. Vehicle {vehicle}, plate {plate}, {rating} star rating. See you in {eta} minutes.",
		},
	},
	TemplateOfferAccepted: {
		ID: TemplateOfferAccepted, Medium: MediumVoice, Voice: voiceDefault,
		Required: []Var{VarPassengerName, VarPickup, VarFinalPrice},
		Variants: []string{
			"Congratulations, your WeRide offer was accepted. Pick up {passenger_name} at {pickup}. Agreed fare is {final_price} rupees.",
			"WeRide here. {passenger_name} accepted your offer of {final_price} rupees. Please head to {pickup}.",
		},
	},
	TemplateDriverEnRoute: {
		ID: TemplateDriverEnRoute, Medium: MediumVoice, Voice: voiceDefault,
		Required: []Var{VarDriverName, VarVehicle, VarPlate, VarETA},
		Variants: []string{
			"Your WeRide driver {driver_name} is on the way and should arrive in about {eta} minutes. Look for a {vehicle}, plate {plate}.",
			"WeRide update: {driver_name} is heading to you in a {vehicle} with plate {plate}. Arrival in roughly {eta} minutes.",
		},
	},
	TemplateDriverArrived: {
		ID: TemplateDriverArrived, Medium: MediumVoice, Voice: voiceDefault, Gather: GatherArrival,
		Required: []Var{VarDriverName, VarVehicle, VarPlate},
		Variants: []string{
			"Your WeRide driver {driver_name} has arrived in a {vehicle} with plate {plate}. Press 1 when you are coming out, or 2 if you need more time.",
			"WeRide here. {driver_name} is waiting outside in a {vehicle}, plate {plate}. Press 1 to confirm you are on your way, or 2 for a few more minutes.",
			"Your driver {driver_name} reached the pickup point. Look for a {vehicle} with plate {plate}. Press 1 when you see them, or 2 if you need more time.",
		},
	},
	TemplatePassengerComing: {
		ID: TemplatePassengerComing, Medium: MediumSMS,
		Required: []Var{VarPassengerName, VarPickup},
		Variants: []string{
			"WeRide: {passenger_name} is coming out now at {pickup}.",
		},
	},
	TemplatePassengerDelayed: {
		ID: TemplatePassengerDelayed, Medium: MediumSMS,
		Required: []Var{VarPassengerName, VarPickup},
		Variants: []string{
			"WeRide: {passenger_name} needs a few more minutes. Please wait at {pickup}.",
		},
	},
	TemplateRideStarted: {
		ID: TemplateRideStarted, Medium: MediumVoice, Voice: voiceDefault,
		Required: []Var{VarDriverName, VarPickup, VarDestination},
		Variants: []string{
			"Your WeRide trip has started. {driver_name} is taking you from {pickup} to {destination}. We may call to check on you during the ride.",
			"WeRide here. Your trip with {driver_name} to {destination} is underway. Have a safe ride.",
		},
	},
	TemplateSafetyCheck: {
		ID: TemplateSafetyCheck, Medium: MediumVoice, Voice: voiceSafety, Gather: GatherSafety,
		Required: []Var{VarDriverName},
		Variants: []string{
			"This is WeRide safety monitoring, checking on your ride with {driver_name}. Press 1 if you feel safe. Press 2 if you need help.",
			"WeRide safety check. How is your ride with {driver_name}? Press 1 if everything is fine. Press 2 if you have a safety concern.",
		},
	},
	TemplateEmergencyAlert: {
		ID: TemplateEmergencyAlert, Medium: MediumVoice, Voice: voiceSafety, Priority: true,
		Required: []Var{VarBookingID, VarPassengerName, VarPassengerPhone, VarDriverName, VarLastPosition},
		Variants: []string{
			"Priority alert. Passenger {passenger_name}, phone {passenger_phone}, requested emergency help on ride {booking_id} with driver {driver_name}. Last known position {last_position}.",
		},
	},
	TemplateRideCompleted: {
		ID: TemplateRideCompleted, Medium: MediumSMS,
		Required: []Var{VarDestination, VarFinalPrice, VarDriverName},
		Variants: []string{
			"WeRide: you arrived at {destination}. Fare {final_price} rupees, driver {driver_name}. Thank you for riding with us.",
			"WeRide trip complete. Destination {destination}, total {final_price} rupees. Driver {driver_name} thanks you.",
		},
	},
	TemplateFeedbackRequest: {
		ID: TemplateFeedbackRequest, Medium: MediumVoice, Voice: voiceFeedback, Gather: GatherFeedback,
		Required: []Var{VarDriverName, VarPickup, VarDestination},
		Variants: []string{
			"Hi, WeRide here. How was your trip with {driver_name} from {pickup} to {destination}? Press 1 for excellent, 2 for good, 3 for average, 4 for poor, or 5 if you had serious issues.",
			"WeRide feedback: please rate your ride with {driver_name}, {pickup} to {destination}. Press 1 for 5 stars, 2 for 4 stars, 3 for 3 stars, 4 for 2 stars, or 5 for 1 star.",
		},
	},
	TemplateRideCancelled: {
		ID: TemplateRideCancelled, Medium: MediumSMS,
		Required: []Var{VarPickup, VarDestination, VarReason},
		Variants: []string{
			"WeRide: your ride from {pickup} to {destination} was cancelled. Reason: {reason}. No charges applied.",
			"WeRide update: booking {pickup} to {destination} is cancelled ({reason}). You can book again any time.",
		},
	},
}

func Lookup(id TemplateID) (Template, bool) {
	t, ok := catalog[id]
	return t, ok
}

// Templates returns every catalog entry; order is unspecified.
func Templates() []Template {
	out := make([]Template, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, t)
	}
	return out
}

// Validate reports the first required variable that is absent or blank.
func (t Template) Validate(v Vars) error {
	for _, k := range t.Required {
		if strings.TrimSpace(v[k]) == "" {
			return fmt.Errorf("%w: %s requires {%s}", ErrMissingVar, t.ID, k)
		}
	}
	return nil
}

// Render fills variant pick (clamped to the catalog) with v.
func (t Template) Render(v Vars, pick int) string {
	if len(t.Variants) == 0 {
		return ""
	}
	if pick < 0 || pick >= len(t.Variants) {
		pick = 0
	}
	pairs := make([]string, 0, 2*len(v))
	for k, val := range v {
		pairs = append(pairs, "{"+string(k)+"}", val)
	}
	return strings.NewReplacer(pairs...).Replace(t.Variants[pick])
}
