package httpmiddleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// CheckinLimiter caps check-in attempts per client IP with a Redis fixed
// window sized to a typical session duration. It gates the admission path
// before any validation runs and is independent of session or student
// identity.
type CheckinLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewCheckinLimiter creates a limiter allowing limit attempts per window.
func NewCheckinLimiter(client *redis.Client, limit int, window time.Duration) *CheckinLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &CheckinLimiter{client: client, limit: limit, window: window, prefix: "rollcall:ratelimit:"}
}

// Allow counts an attempt for the key and reports whether it is within the
// limit. Redis being unreachable fails open; the limiter is an abuse
// dampener, not a correctness guarantee.
func (l *CheckinLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := l.prefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		log.Printf("checkin limiter unavailable: %v", err)
		return true
	}
	if count == 1 {
		l.client.Expire(ctx, redisKey, l.window)
	}
	return count <= int64(l.limit)
}

// GinMiddleware rejects over-limit check-in attempts with 429 before the
// request body is even read.
func (l *CheckinLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(c.Request.Context(), ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": "too many attendance requests from this address, please try again later",
			})
			return
		}
		c.Next()
	}
}
