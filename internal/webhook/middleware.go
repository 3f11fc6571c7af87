package webhook

import (
	"net/http"

	"servewell_backend/platform/httpkit"
	"servewell_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// TokenRateLimit throttles webhook calls per security token so one noisy
// channel cannot starve the others. A nil limiter disables the check.
func TokenRateLimit(l *httpkit.KeyedRateLimiter, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		// Keyed on the hash so plaintext tokens never sit in memory maps or logs.
		key := httpkit.HashToken(c.Param("securityToken"))
		if !l.Allow(key) {
			if log != nil {
				log.RateLimitExceeded(c.ClientIP(), c.FullPath())
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
