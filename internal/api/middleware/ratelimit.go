package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Rrens/crm/internal/api/response"
	"github.com/Rrens/crm/internal/metrics"
	"github.com/Rrens/crm/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	rateLimiter ratelimit.Limiter
	metrics     *metrics.Metrics
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(rateLimiter ratelimit.Limiter, m *metrics.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter, metrics: m}
}

// Limit applies rate limiting per authenticated user. Limiter failures let
// the request through.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			response.Unauthorized(w, "unauthorized")
			return
		}

		decision, err := m.rateLimiter.Allow(r.Context(), userID.String())
		if err != nil {
			log.Warn().Err(err).Msg("Rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", decision.ResetAt.UTC().Format(time.RFC3339))

		if !decision.Allowed {
			m.metrics.IncRateLimited()
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(decision.ResetAt).Seconds())+1))
			response.TooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
