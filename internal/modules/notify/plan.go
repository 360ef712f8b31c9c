// README: Pure mapping from (event, ride snapshot) to the notifications it produces.
package notify

import (
	"fmt"
	"strconv"

	"weride/internal/store"
	"weride/internal/types"
)

// Event is the closed set of ride events that can produce notifications.
type Event string

const (
	EventRideCreated        Event = "ride_created"
	EventOfferSubmitted     Event = "offer_submitted"
	EventOfferAccepted      Event = "offer_accepted"
	EventDriverEnRoute      Event = "driver_en_route"
	EventDriverArrived      Event = "driver_arrived"
	EventPassengerComing    Event = "passenger_coming"
	EventPassengerNeedsTime Event = "passenger_needs_time"
	EventRideStarted        Event = "ride_started"
	EventSafetyCheck        Event = "safety_check"
	EventEmergency          Event = "emergency"
	EventRideCompleted      Event = "ride_completed"
	EventFeedbackRequest    Event = "feedback_request"
	EventRideCancelled      Event = "ride_cancelled"
)

// Events lists every Event; Plan handles each of them.
var Events = []Event{
	EventRideCreated, EventOfferSubmitted, EventOfferAccepted, EventDriverEnRoute,
	EventDriverArrived, EventPassengerComing, EventPassengerNeedsTime, EventRideStarted,
	EventSafetyCheck, EventEmergency, EventRideCompleted, EventFeedbackRequest, EventRideCancelled,
}

type Role string

const (
	RolePassenger  Role = "passenger"
	RoleDriver     Role = "driver"
	RoleDrivers    Role = "drivers"
	RoleSafetyDesk Role = "safety_desk"
)

// Snapshot is the state a plan is computed from. Driver and Profile stay set for a
// cancelled ride that had a driver, even though the ride itself no longer references one.
type Snapshot struct {
	Ride      *store.Ride
	Passenger *store.User
	Driver    *store.User
	Profile   *store.Driver
	Offer     *store.Offer
	Reason    string
}

type Notification struct {
	Event       Event
	Role        Role
	Destination string
	Template    TemplateID
	Vars        Vars
}

// Planner holds the fixed destinations that are not ride participants.
type Planner struct {
	DriversTopic string
	SafetyDesk   string
}

// Plan returns the notifications for ev; an event without a recipient yields none.
func (p Planner) Plan(ev Event, s Snapshot) []Notification {
	if s.Ride == nil || s.Passenger == nil {
		return nil
	}
	var out []Notification
	add := func(role Role, dest string, id TemplateID, v Vars) {
		if dest == "" {
			return
		}
		out = append(out, Notification{Event: ev, Role: role, Destination: dest, Template: id, Vars: v})
	}
	passenger := s.Passenger.Phone
	driver := ""
	if s.Driver != nil {
		driver = s.Driver.Phone
	}

	switch ev {
	case EventRideCreated:
		v := rideVars(s)
		add(RolePassenger, passenger, TemplateBookingConfirmed, v)
		add(RoleDrivers, p.DriversTopic, TemplateNewRideBroadcast, v)
	case EventOfferSubmitted:
		if s.Offer == nil {
			return nil
		}
		add(RolePassenger, passenger, TemplateNewOffer, Vars{
			VarDriverName: driverName(s),
			VarOfferPrice: s.Offer.Price.String(),
			VarETA:        strconv.Itoa(s.Offer.ETAMinutes),
		})
	case EventOfferAccepted:
		add(RolePassenger, passenger, TemplateDriverAssigned, driverVars(s))
		add(RoleDriver, driver, TemplateOfferAccepted, rideVars(s))
	case EventDriverEnRoute:
		add(RolePassenger, passenger, TemplateDriverEnRoute, driverVars(s))
	case EventDriverArrived:
		add(RolePassenger, passenger, TemplateDriverArrived, driverVars(s))
	case EventPassengerComing:
		add(RoleDriver, driver, TemplatePassengerComing, rideVars(s))
	case EventPassengerNeedsTime:
		add(RoleDriver, driver, TemplatePassengerDelayed, rideVars(s))
	case EventRideStarted:
		add(RolePassenger, passenger, TemplateRideStarted, rideVars(s))
	case EventSafetyCheck:
		add(RolePassenger, passenger, TemplateSafetyCheck, rideVars(s))
	case EventEmergency:
		v := rideVars(s)
		v[VarPassengerPhone] = passenger
		v[VarLastPosition] = lastPosition(s)
		if v[VarDriverName] == "" {
			v[VarDriverName] = "no driver assigned"
		}
		add(RoleSafetyDesk, p.SafetyDesk, TemplateEmergencyAlert, v)
	case EventRideCompleted:
		add(RolePassenger, passenger, TemplateRideCompleted, rideVars(s))
	case EventFeedbackRequest:
		add(RolePassenger, passenger, TemplateFeedbackRequest, rideVars(s))
	case EventRideCancelled:
		v := rideVars(s)
		v[VarReason] = s.Reason
		if v[VarReason] == "" {
			v[VarReason] = "no reason given"
		}
		add(RolePassenger, passenger, TemplateRideCancelled, v)
		add(RoleDriver, driver, TemplateRideCancelled, v)
	default:
		return nil
	}
	return out
}

func rideVars(s Snapshot) Vars {
	r := s.Ride
	v := Vars{
		VarBookingID:     string(r.ID),
		VarPickup:        r.Pickup,
		VarDestination:   r.Destination,
		VarPrice:         r.PriceOffer.String(),
		VarPassengerName: s.Passenger.Name,
		VarDriverName:    driverName(s),
	}
	if r.FinalPrice != nil {
		v[VarFinalPrice] = r.FinalPrice.String()
	}
	return v
}

func driverVars(s Snapshot) Vars {
	v := rideVars(s)
	v[VarVehicle] = "vehicle"
	v[VarPlate] = "unknown"
	v[VarRating] = "5.0"
	v[VarETA] = "5"
	if s.Profile != nil {
		if s.Profile.Vehicle != "" {
			v[VarVehicle] = s.Profile.Vehicle
		}
		if s.Profile.LicensePlate != nil && *s.Profile.LicensePlate != "" {
			v[VarPlate] = *s.Profile.LicensePlate
		}
	}
	if s.Driver != nil {
		v[VarRating] = strconv.FormatFloat(s.Driver.Rating, 'f', 1, 64)
	}
	if s.Offer != nil {
		v[VarETA] = strconv.Itoa(s.Offer.ETAMinutes)
	}
	return v
}

func driverName(s Snapshot) string {
	if s.Driver != nil {
		return s.Driver.Name
	}
	return ""
}

func lastPosition(s Snapshot) string {
	var p *types.Point
	if s.Profile != nil && s.Profile.Position != nil {
		p = s.Profile.Position
	} else if s.Ride.PickupPoint != nil {
		p = s.Ride.PickupPoint
	}
	if p == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng)
}
