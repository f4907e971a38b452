package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/crm/internal/ratelimit"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "crm:ratelimit:"

// RateLimiter counts requests per key in fixed one-minute windows shared by
// every API instance.
type RateLimiter struct {
	client            *Client
	requestsPerMinute int
	burst             int
	now               func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:            client,
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		now:               time.Now,
	}
}

// Allow records one request for key and reports whether it fits the window.
func (r *RateLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	now := r.now()
	windowStart := now.Truncate(time.Minute)
	windowKey := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, windowStart.Unix())
	limit := r.requestsPerMinute + r.burst

	pipe := r.client.rdb.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.ExpireNX(ctx, windowKey, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return ratelimit.Decision{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return ratelimit.Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(time.Minute),
	}, nil
}

// Reset clears the current window for a key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	windowKey := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, r.now().Truncate(time.Minute).Unix())
	return r.client.rdb.Del(ctx, windowKey).Err()
}
