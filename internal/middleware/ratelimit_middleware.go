package middleware

import (
	"net/http"
	"strconv"

	"xianyu-autosell/internal/redis"
	"xianyu-autosell/internal/transport/httpdto"
	"xianyu-autosell/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware counts each request against action for the calling
// operator, or the client IP when no operator is authenticated. A nil limiter
// disables the check. Limiter errors let the request through.
func RateLimitMiddleware(limiter *redis.RateLimiter, action string, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		caller, ok := OperatorFromContext(c.Request.Context())
		if !ok {
			caller = c.ClientIP()
		}

		result, err := limiter.Allow(c.Request.Context(), caller, action)
		if err != nil {
			if l != nil {
				l.WithContext(c.Request.Context()).Warnf("rate limit check failed, allowing: %v", err)
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
