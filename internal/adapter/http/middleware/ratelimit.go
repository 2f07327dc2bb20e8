package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisStore "solarchain-ledger/internal/adapter/storage/redis"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Rate limit groups.
const (
	GroupReads  = "reads"
	GroupWrites = "writes"
	GroupTopups = "topups"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitStore is the fixed-window counter backing RateLimiter.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// DefaultRateLimitRules derives the per-group limits from the base
// per-subject limit. Writes get half of it and topups a tenth.
func DefaultRateLimitRules(base int, window time.Duration) map[string]RateLimitRule {
	limit := int64(max(base, 1))
	return map[string]RateLimitRule{
		GroupReads:  {Limit: limit, Window: window},
		GroupWrites: {Limit: max(limit/2, 1), Window: window},
		GroupTopups: {Limit: max(limit/10, 1), Window: window},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
func RateLimiter(store RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", identifier, group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys limits by authenticated subject, else by client IP.
func extractIdentifier(c *gin.Context) string {
	if subject, ok := Subject(c); ok {
		return subject
	}
	return c.ClientIP()
}
