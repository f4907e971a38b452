// Package ratelimit defines per-user request limiting for the API. The Redis
// store counts fixed windows shared by every instance; Local keeps token
// buckets in process for single-node deployments without Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter records one request for key and reports whether it may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

const maxIdle = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local is an in-memory token bucket per key.
type Local struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	every   rate.Limit
	burst   int
	now     func() time.Time
}

// NewLocal refills requestsPerMinute tokens a minute on top of burst.
func NewLocal(requestsPerMinute, burst int) *Local {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	size := burst
	if size <= 0 {
		size = 1
	}
	return &Local{
		buckets: make(map[string]*bucket),
		every:   rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:   size,
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (l *Local) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		l.evictIdle(now)
		b = &bucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now
	if tokens < 1 {
		resetAt = now.Add(time.Duration((1 - tokens) / float64(l.every) * float64(time.Second)))
	}

	return Decision{
		Allowed:   allowed,
		Limit:     l.burst,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (l *Local) evictIdle(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > maxIdle {
			delete(l.buckets, key)
		}
	}
}
