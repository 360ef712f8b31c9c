// README: Keypad webhook; answers Twilio with TwiML for the resolved digit.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"weride/internal/modules/ivr"
	"weride/internal/modules/notify"
	"weride/internal/types"
)

type IVRHandler struct {
	ivr *ivr.Service
	log *slog.Logger
}

func NewIVRHandler(svc *ivr.Service, log *slog.Logger) *IVRHandler {
	return &IVRHandler{ivr: svc, log: log}
}

// Digits handles the gather callback: ?context=<kind>&ride_id=<id>, form field Digits.
func (h *IVRHandler) Digits(c *gin.Context) {
	rideID := c.Query("ride_id")
	if rideID != "" && !isValidID(rideID) {
		rideID = ""
	}
	cc := ivr.CallContext{Kind: ivr.Kind(c.Query("context")), RideID: types.ID(rideID)}
	// Follow-up failures are logged by the service; the caller still hears the reply.
	res, _ := h.ivr.Handle(c.Request.Context(), cc, c.PostForm("Digits"))

	body, err := notify.VoiceTwiML(res.Message, res.Voice, "")
	if err != nil {
		h.log.Error("twiml render failed", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(body))
}
