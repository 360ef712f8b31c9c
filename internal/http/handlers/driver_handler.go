// README: Driver handlers for availability, location updates and the ride board.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"weride/internal/modules/ride"
	"weride/internal/types"
)

type DriverHandler struct {
	rides           *ride.Service
	defaultRadiusKm float64
}

func NewDriverHandler(rides *ride.Service, defaultRadiusKm float64) *DriverHandler {
	return &DriverHandler{rides: rides, defaultRadiusKm: defaultRadiusKm}
}

type availableRideView struct {
	ID            types.ID  `json:"ride_id"`
	Pickup        string    `json:"pickup"`
	Destination   string    `json:"destination"`
	PriceOffer    int64     `json:"price_offer"`
	Currency      string    `json:"currency"`
	PassengerName string    `json:"passenger_name"`
	RequestedAt   time.Time `json:"requested_at"`
}

func (h *DriverHandler) ListAvailable(c *gin.Context) {
	list, err := h.rides.ListAvailableRides(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]availableRideView, 0, len(list))
	for _, r := range list {
		out = append(out, availableRideView{
			ID: r.ID, Pickup: r.Pickup, Destination: r.Destination, PriceOffer: r.PriceOffer.Amount,
			Currency: r.PriceOffer.Currency, PassengerName: r.PassengerName, RequestedAt: r.RequestedAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": out})
}

type onlineReq struct {
	Phone        string `json:"driver_phone" binding:"required"`
	Name         string `json:"driver_name"`
	Vehicle      string `json:"vehicle"`
	LicensePlate string `json:"license_plate"`
	Online       *bool  `json:"online" binding:"required"`
}

func (h *DriverHandler) SetOnline(c *gin.Context) {
	var req onlineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	d, err := h.rides.SetDriverOnline(c.Request.Context(), ride.SetOnlineCommand{
		Phone: req.Phone, Name: req.Name, Vehicle: req.Vehicle, LicensePlate: req.LicensePlate, Online: *req.Online,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": d.UserID, "online": d.Online})
}

type onlineDriverView struct {
	DriverID     types.ID   `json:"driver_id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Vehicle      string     `json:"vehicle"`
	LicensePlate string     `json:"license_plate,omitempty"`
	Rating       float64    `json:"rating"`
	Position     *pointView `json:"position,omitempty"`
}

func (h *DriverHandler) ListOnline(c *gin.Context) {
	list, err := h.rides.ListOnlineDrivers(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]onlineDriverView, 0, len(list))
	for _, d := range list {
		out = append(out, onlineDriverView{
			DriverID: d.DriverID, Name: d.Name, Phone: d.Phone, Vehicle: d.Vehicle,
			LicensePlate: d.LicensePlate, Rating: d.Rating, Position: viewPoint(d.Position),
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": out})
}

type locationReq struct {
	Phone string   `json:"driver_phone" binding:"required"`
	Lat   *float64 `json:"lat" binding:"required"`
	Lng   *float64 `json:"lng" binding:"required"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	res, err := h.rides.UpdateDriverLocation(c.Request.Context(), req.Phone, *req.Lat, *req.Lng)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": res.DriverID, "ride_id": res.RideID, "tracked": res.Tracked})
}

type nearbyView struct {
	DriverID   types.ID `json:"driver_id"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	DistanceKm float64  `json:"distance_km"`
}

func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius := h.defaultRadiusKm
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid radius_km")
			return
		}
		radius = r
	}
	list, err := h.rides.NearbyDrivers(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]nearbyView, 0, len(list))
	for _, n := range list {
		out = append(out, nearbyView{DriverID: n.DriverID, Lat: n.Position.Lat, Lng: n.Position.Lng, DistanceKm: n.DistanceKm})
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": out, "radius_km": radius})
}
