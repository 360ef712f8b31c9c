package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"weride/internal/mirror"
	"weride/internal/modules/ride"
)

// StreamHandler upgrades observers to a WebSocket fed with ride snapshots.
type StreamHandler struct {
	hub   *mirror.Hub
	rides *ride.Service
	log   *slog.Logger
}

func NewStreamHandler(hub *mirror.Hub, rides *ride.Service, log *slog.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, rides: rides, log: log}
}

func (h *StreamHandler) Ride(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.GetRide(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, r.ID); err != nil {
		h.log.Debug("websocket upgrade failed", "ride_id", id, "err", err)
	}
}
