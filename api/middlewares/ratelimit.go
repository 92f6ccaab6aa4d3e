package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/dropzone-go/api/models"
	"github.com/moyoez/dropzone-go/tool"
)

// RateLimit applies a per-client token bucket. perMinute <= 0 disables limiting.
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	table := models.NewLimiterTable(perMinute, burst)
	return func(c *gin.Context) {
		if !table.Allow(c.ClientIP()) {
			tool.DefaultLogger.Warnf("[RateLimit] %s %s throttled for %s", c.Request.Method, c.FullPath(), c.ClientIP())
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, tool.FastReturnError("Too many requests"))
			return
		}
		c.Next()
	}
}
