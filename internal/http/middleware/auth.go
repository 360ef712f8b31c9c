// README: Twilio webhook signature check for the keypad callback.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"
)

const TwilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignature rejects webhook calls not signed with authToken. publicBase is the
// externally visible scheme and host Twilio used to reach the service.
// An empty authToken disables the check (demo mode).
func TwilioSignature(authToken, publicBase string) gin.HandlerFunc {
	if authToken == "" {
		return func(c *gin.Context) { c.Next() }
	}
	validator := client.NewRequestValidator(authToken)
	return func(c *gin.Context) {
		sig := c.GetHeader(TwilioSignatureHeader)
		if sig == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing signature"})
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		if !validator.Validate(publicBase+c.Request.URL.RequestURI(), params, sig) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}
