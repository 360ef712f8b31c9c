// README: Ride handlers for the passenger side of the lifecycle, offers and ride history.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"weride/internal/modules/rating"
	"weride/internal/modules/ride"
	"weride/internal/types"
)

type RideHandler struct {
	rides   *ride.Service
	ratings *rating.Service
}

func NewRideHandler(rides *ride.Service, ratings *rating.Service) *RideHandler {
	return &RideHandler{rides: rides, ratings: ratings}
}

type createRideReq struct {
	PassengerPhone string   `json:"passenger_phone" binding:"required"`
	PassengerName  string   `json:"passenger_name"`
	Pickup         string   `json:"pickup" binding:"required"`
	Destination    string   `json:"destination" binding:"required"`
	PriceOffer     int64    `json:"price_offer"`
	PickupLat      *float64 `json:"pickup_lat"`
	PickupLng      *float64 `json:"pickup_lng"`
	DropoffLat     *float64 `json:"destination_lat"`
	DropoffLng     *float64 `json:"destination_lng"`
}

func optionalPoint(lat, lng *float64) *types.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &types.Point{Lat: *lat, Lng: *lng}
}

func (h *RideHandler) Create(c *gin.Context) {
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	id, err := h.rides.CreateRide(c.Request.Context(), ride.CreateRideCommand{
		PassengerPhone:   req.PassengerPhone,
		PassengerName:    req.PassengerName,
		Pickup:           req.Pickup,
		Destination:      req.Destination,
		PriceOffer:       req.PriceOffer,
		PickupPoint:      optionalPoint(req.PickupLat, req.PickupLng),
		DestinationPoint: optionalPoint(req.DropoffLat, req.DropoffLng),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"ride_id": id, "status": "pending"})
}

func (h *RideHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.GetRide(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewRide(r))
}

type cancelReq struct {
	Reason    string `json:"reason"`
	ActorType string `json:"actor_type"`
}

func (h *RideHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req cancelReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if err := h.rides.CancelRide(c.Request.Context(), ride.CancelCommand{RideID: id, Reason: req.Reason, ActorType: req.ActorType}); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ride_id": id, "status": "cancelled"})
}

// transition adapts a single-ride trigger to a handler that reports the reached status.
func (h *RideHandler) transition(fn func(*ride.Service, *gin.Context, types.ID) error, status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := fn(h.rides, c, id); err != nil {
			writeServiceError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, gin.H{"ride_id": id, "status": status})
	}
}

func (h *RideHandler) EnRoute() gin.HandlerFunc {
	return h.transition(func(s *ride.Service, c *gin.Context, id types.ID) error {
		return s.MarkEnRoute(c.Request.Context(), id)
	}, "en_route")
}

func (h *RideHandler) Arrive() gin.HandlerFunc {
	return h.transition(func(s *ride.Service, c *gin.Context, id types.ID) error {
		return s.MarkArrived(c.Request.Context(), id)
	}, "arrived")
}

func (h *RideHandler) Start() gin.HandlerFunc {
	return h.transition(func(s *ride.Service, c *gin.Context, id types.ID) error {
		return s.StartRide(c.Request.Context(), id)
	}, "in_progress")
}

func (h *RideHandler) Complete() gin.HandlerFunc {
	return h.transition(func(s *ride.Service, c *gin.Context, id types.ID) error {
		return s.CompleteRide(c.Request.Context(), id)
	}, "completed")
}

func (h *RideHandler) TriggerCall(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	kind := ride.CallKind(c.Param("kind"))
	dispatched, err := h.rides.TriggerCall(c.Request.Context(), id, kind)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ride_id": id, "call": kind, "dispatched": dispatched})
}

type submitOfferReq struct {
	DriverPhone string `json:"driver_phone" binding:"required"`
	DriverName  string `json:"driver_name"`
	Price       int64  `json:"price"`
	ETAMinutes  int    `json:"eta_minutes"`
	Note        string `json:"note"`
}

func (h *RideHandler) SubmitOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req submitOfferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	offerID, err := h.rides.SubmitOffer(c.Request.Context(), ride.SubmitOfferCommand{
		RideID:      id,
		DriverPhone: req.DriverPhone,
		DriverName:  req.DriverName,
		Price:       req.Price,
		ETAMinutes:  req.ETAMinutes,
		Note:        req.Note,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"offer_id": offerID, "ride_id": id, "status": "pending"})
}

func (h *RideHandler) AcceptOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.rides.AcceptOffer(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"ride_id":     res.RideID,
		"offer_id":    res.OfferID,
		"driver_id":   res.DriverID,
		"driver_name": res.DriverName,
		"final_price": res.FinalPrice.Amount,
		"currency":    res.FinalPrice.Currency,
		"status":      "accepted",
	})
}

func (h *RideHandler) ListOffers(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.rides.ListOffers(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": viewOffers(list)})
}

func (h *RideHandler) ListEvents(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.rides.ListEvents(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": viewEvents(list)})
}

func (h *RideHandler) ListTracking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.rides.ListTracking(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"tracking": viewTracking(list)})
}

func (h *RideHandler) ListDispatches(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.rides.ListDispatches(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"dispatches": viewDispatches(list)})
}

type rateReq struct {
	RaterID string `json:"rater_id" binding:"required"`
	RatedID string `json:"rated_id" binding:"required"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func (h *RideHandler) Rate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req rateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	rolling, err := h.ratings.Rate(c.Request.Context(), rating.RateCommand{
		RideID:  id,
		RaterID: types.ID(req.RaterID),
		RatedID: types.ID(req.RatedID),
		Score:   req.Score,
		Comment: req.Comment,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"ride_id": id, "rated_id": req.RatedID, "rating": rolling})
}
