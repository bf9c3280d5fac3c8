package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/services"
)

// RateLimit throttles requests per client IP.
func RateLimit(rateLimitService *services.RateLimitService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateLimitService == nil || !rateLimitService.Enabled() {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		allowed, info := rateLimitService.IsAllowed(c.Request.Context(), clientIP)

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime, 10))

		if !allowed {
			logger.WithFields(logrus.Fields{
				"client_ip": clientIP,
				"limit":     info.Limit,
			}).Warn("Rate limit exceeded")

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Rate limit exceeded. Please try again later.",
				},
				"rate_limit": info,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
