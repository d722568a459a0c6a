package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"
	"github.com/nithin1018/Village-Banking-App/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter enforces the quota of scope before the handler runs.
// Limiter failures let the request through.
func RateLimiter(limiter ports.RateLimiter, scope string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := Principal(c)

		decision, err := limiter.Allow(c.Request.Context(), principal, scope)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}
		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		}

		if !decision.Allowed {
			retryAfter := int64(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(retryAfter)*time.Second).Unix(), 10))

			log.Info().Str("scope", scope).Str("principal", principal).Msg("rate limit exceeded")
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// Principal keys throttles by authenticated user, falling back to client IP.
func Principal(c *gin.Context) string {
	if id, ok := UserIDFrom(c); ok {
		return "user:" + id.String()
	}
	return "ip:" + c.ClientIP()
}
