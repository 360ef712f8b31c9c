// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weride/internal/http/handlers"
	"weride/internal/http/middleware"
	"weride/internal/mirror"
	"weride/internal/modules/ivr"
	"weride/internal/modules/rating"
	"weride/internal/modules/ride"
)

type Deps struct {
	Rides   *ride.Service
	Ratings *rating.Service
	IVR     *ivr.Service
	Hub     *mirror.Hub
	Log     *slog.Logger

	// TwilioAuthToken enables signature checks on the keypad webhook; WebhookBase is the public URL prefix Twilio calls.
	TwilioAuthToken string
	WebhookBase     string
	NearbyRadiusKm  float64
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(deps.Log), middleware.Recovery(deps.Log), middleware.Metrics())

	rideHandler := handlers.NewRideHandler(deps.Rides, deps.Ratings)
	api := r.Group("/api")
	api.POST("/rides", rideHandler.Create)
	api.GET("/rides/:id", rideHandler.Get)
	api.POST("/rides/:id/cancel", rideHandler.Cancel)
	api.POST("/rides/:id/enroute", rideHandler.EnRoute())
	api.POST("/rides/:id/arrive", rideHandler.Arrive())
	api.POST("/rides/:id/start", rideHandler.Start())
	api.POST("/rides/:id/complete", rideHandler.Complete())
	api.POST("/rides/:id/calls/:kind", rideHandler.TriggerCall)
	api.POST("/rides/:id/rating", rideHandler.Rate)
	api.POST("/rides/:id/offers", rideHandler.SubmitOffer)
	api.GET("/rides/:id/offers", rideHandler.ListOffers)
	api.GET("/rides/:id/events", rideHandler.ListEvents)
	api.GET("/rides/:id/tracking", rideHandler.ListTracking)
	api.GET("/rides/:id/dispatches", rideHandler.ListDispatches)
	api.POST("/offers/:id/accept", rideHandler.AcceptOffer)

	driverHandler := handlers.NewDriverHandler(deps.Rides, deps.NearbyRadiusKm)
	api.GET("/drivers/rides", driverHandler.ListAvailable)
	api.POST("/drivers/online", driverHandler.SetOnline)
	api.GET("/drivers/online", driverHandler.ListOnline)
	api.PUT("/drivers/location", driverHandler.UpdateLocation)
	api.GET("/drivers/nearby", driverHandler.Nearby)

	ivrHandler := handlers.NewIVRHandler(deps.IVR, deps.Log)
	r.POST("/ivr/digits", middleware.TwilioSignature(deps.TwilioAuthToken, deps.WebhookBase), ivrHandler.Digits)

	if deps.Hub != nil {
		streamHandler := handlers.NewStreamHandler(deps.Hub, deps.Rides, deps.Log)
		r.GET("/ws/rides/:id", streamHandler.Ride)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}
