package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/dropzone-go/api/models"
	"github.com/moyoez/dropzone-go/tool"
)

const (
	PinHeader = "X-Pin"
	PinCookie = "DROPZONE_PIN"
)

// RequirePin rejects requests that do not carry pin. An empty pin disables the check.
func RequirePin(pin string, failures *models.PinFailures) gin.HandlerFunc {
	if pin == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if failures.Locked(ip) {
			tool.DefaultLogger.Warnf("[Auth] Rejected locked out client %s", ip)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, tool.FastReturnError("Too many failed PIN attempts, try again later"))
			return
		}
		given := c.GetHeader(PinHeader)
		if given == "" {
			given, _ = c.Cookie(PinCookie)
		}
		if subtle.ConstantTimeCompare([]byte(given), []byte(pin)) != 1 {
			n := failures.Fail(ip)
			tool.DefaultLogger.Warnf("[Auth] Invalid PIN from %s (%d/%d)", ip, n, models.MaxPinFailures)
			c.AbortWithStatusJSON(http.StatusUnauthorized, tool.FastReturnError("Invalid PIN"))
			return
		}
		failures.Reset(ip)
		c.Next()
	}
}
