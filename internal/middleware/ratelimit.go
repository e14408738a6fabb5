package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/cache"
)

// RateLimit caps requests per client IP over a one minute window. The
// counters live in the cache so every server instance shares them when
// Redis is used. Cache failures let the request through.
func RateLimit(store cache.Store, perMinute, burst int, log zerolog.Logger) gin.HandlerFunc {
	limit := int64(perMinute + burst)
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		n, err := store.Incr(c.Request.Context(), cache.RateLimitKey(c.ClientIP()), time.Minute)
		if err != nil {
			log.Warn().Err(err).Msg("rate limit counter unavailable")
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		remaining := limit - n
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if n > limit {
			c.Header("Retry-After", "60")
			abort(c, http.StatusTooManyRequests, "Trop de requêtes, réessayez dans une minute")
			return
		}
		c.Next()
	}
}
