package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/ratelimit"
)

// RateLimit throttles requests per client IP.
func RateLimit(limiter *ratelimit.KeyedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}
