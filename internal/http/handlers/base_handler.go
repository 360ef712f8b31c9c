// README: Base handler utilities (JSON helpers, error mapping, response views).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"weride/internal/modules/rating"
	"weride/internal/modules/ride"
	"weride/internal/store"
	"weride/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID ensures IDs are hex and 32 chars (matches current ID generator).
func isValidID(v string) bool {
	if v == "" || len(v) > 32 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}

// pathID reads the :id parameter and answers 400 when it is malformed.
func pathID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return types.ID(id), true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest), errors.Is(err, rating.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound), errors.Is(err, rating.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrInvalidTransition), errors.Is(err, ride.ErrDuplicateOffer),
		errors.Is(err, rating.ErrNotRateable), errors.Is(err, rating.ErrAlreadyRated):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

type pointView struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func viewPoint(p *types.Point) *pointView {
	if p == nil {
		return nil
	}
	return &pointView{Lat: p.Lat, Lng: p.Lng}
}

type rideView struct {
	ID               types.ID   `json:"ride_id"`
	Status           string     `json:"status"`
	PassengerID      types.ID   `json:"passenger_id"`
	DriverID         *types.ID  `json:"driver_id"`
	Pickup           string     `json:"pickup"`
	Destination      string     `json:"destination"`
	PickupPoint      *pointView `json:"pickup_point,omitempty"`
	DestinationPoint *pointView `json:"destination_point,omitempty"`
	PriceOffer       int64      `json:"price_offer"`
	FinalPrice       *int64     `json:"final_price"`
	Currency         string     `json:"currency"`
	RequestedAt      time.Time  `json:"requested_at"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	PickupAt         *time.Time `json:"pickup_at,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CancelReason     *string    `json:"cancel_reason,omitempty"`
	ArrivalCallMade  bool       `json:"arrival_call_made"`
	SafetyCheckMade  bool       `json:"safety_check_made"`
	FeedbackCallMade bool       `json:"feedback_call_made"`
}

func viewRide(r *store.Ride) rideView {
	v := rideView{
		ID: r.ID, Status: string(r.Status), PassengerID: r.PassengerID, DriverID: r.DriverID,
		Pickup: r.Pickup, Destination: r.Destination,
		PickupPoint: viewPoint(r.PickupPoint), DestinationPoint: viewPoint(r.DestinationPoint),
		PriceOffer: r.PriceOffer.Amount, Currency: r.PriceOffer.Currency,
		RequestedAt: r.RequestedAt, AcceptedAt: r.AcceptedAt, PickupAt: r.PickupAt,
		StartedAt: r.StartedAt, CompletedAt: r.CompletedAt, CancelledAt: r.CancelledAt,
		CancelReason:    r.CancelReason,
		ArrivalCallMade: r.ArrivalCallMade, SafetyCheckMade: r.SafetyCheckMade, FeedbackCallMade: r.FeedbackCallMade,
	}
	if r.FinalPrice != nil {
		amount := r.FinalPrice.Amount
		v.FinalPrice = &amount
	}
	return v
}

type offerView struct {
	ID         types.ID   `json:"offer_id"`
	RideID     types.ID   `json:"ride_id"`
	DriverID   types.ID   `json:"driver_id"`
	Price      int64      `json:"price"`
	ETAMinutes int        `json:"eta_minutes"`
	Note       string     `json:"note,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func viewOffers(list []*store.Offer) []offerView {
	out := make([]offerView, 0, len(list))
	for _, o := range list {
		out = append(out, offerView{
			ID: o.ID, RideID: o.RideID, DriverID: o.DriverID, Price: o.Price.Amount, ETAMinutes: o.ETAMinutes,
			Note: o.Note, Status: string(o.Status), CreatedAt: o.CreatedAt, ResolvedAt: o.ResolvedAt,
		})
	}
	return out
}

type eventView struct {
	ID        int64     `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Trigger   string    `json:"trigger"`
	ActorType string    `json:"actor_type"`
	ActorID   *types.ID `json:"actor_id,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func viewEvents(list []*store.Event) []eventView {
	out := make([]eventView, 0, len(list))
	for _, e := range list {
		out = append(out, eventView{
			ID: e.ID, From: string(e.FromStatus), To: string(e.ToStatus), Trigger: e.Trigger,
			ActorType: e.ActorType, ActorID: e.ActorID, Note: e.Note, CreatedAt: e.CreatedAt,
		})
	}
	return out
}

type trackingView struct {
	Seq        int64     `json:"seq"`
	DriverID   types.ID  `json:"driver_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

func viewTracking(list []*store.TrackingPoint) []trackingView {
	out := make([]trackingView, 0, len(list))
	for _, p := range list {
		out = append(out, trackingView{Seq: p.Seq, DriverID: p.DriverID, Lat: p.Position.Lat, Lng: p.Position.Lng, RecordedAt: p.RecordedAt})
	}
	return out
}

type dispatchView struct {
	Seq         int64     `json:"seq"`
	Destination string    `json:"destination"`
	Kind        string    `json:"kind"`
	Template    string    `json:"template"`
	Medium      string    `json:"medium"`
	Status      string    `json:"status"`
	DeliveryID  string    `json:"delivery_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewDispatches(list []*store.Dispatch) []dispatchView {
	out := make([]dispatchView, 0, len(list))
	for _, d := range list {
		out = append(out, dispatchView{
			Seq: d.Seq, Destination: d.Destination, Kind: d.Kind, Template: d.Template, Medium: d.Medium,
			Status: string(d.Status), DeliveryID: d.DeliveryID, Error: d.Error, CreatedAt: d.CreatedAt,
		})
	}
	return out
}
