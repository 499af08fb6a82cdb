// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements request rate limiting. RateLimit is the Gin middleware;
// the budget itself lives behind the LimitStore interface so the same
// middleware can run against:
//   - MemoryLimiter: per-key token buckets using golang.org/x/time/rate,
//     process-local, with opportunistic garbage collection of idle buckets
//   - RedisLimiter: fixed-window counters in Redis (see redis_limiter.go),
//     shared by every replica
//
// Idempotent replays flagged by IdempotencyValidator skip limiting. A store
// failure lets the request through and is logged; the limiter is abuse
// control, not an authorization mechanism.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
//
// Implementations should return a stable string for the duration of a request
// (e.g., "user:<id>" or "ip:<addr>").
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the authenticated user and falls back to the client
// IP. Keys are prefixed so the two namespaces never collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := userIDFromCtx(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP keys buckets by client IP only. Used for unauthenticated routes
// such as login, where the user is not known yet.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// LimitStore decides whether one more request for key fits the budget.
// retryAfter is a hint for rejected requests.
type LimitStore interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimit returns a Gin middleware that enforces store's budget per key.
//
// The middleware emits on rejection:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <seconds>
//	{
//	  "request_id": "<uuid>",
//	  "code":       "too_many_requests",
//	  "message":    "rate limit exceeded"
//	}
func RateLimit(store LimitStore, keyFn keyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		allowed, retry, err := store.Allow(c.Request.Context(), keyFn(c))
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if allowed {
			c.Next()
			return
		}

		rateLimited.Inc()
		c.Header("Retry-After", retryAfterSeconds(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfterSeconds renders d as whole seconds, at least 1.
func retryAfterSeconds(d time.Duration) string {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}

// IsRateBypass reports whether IdempotencyValidator marked this request for
// rate-limit bypass (i.e., it is a replay of a previously completed request).
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass) // set by IdempotencyValidator
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// visitor holds a single token bucket and the last time it was used.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a process-local LimitStore of per-key token buckets.
//
// Buckets are created on demand and idle ones are evicted after a TTL via
// opportunistic cleanup during lookups, keeping memory bounded.
// MemoryLimiter is safe for concurrent use.
type MemoryLimiter struct {
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewMemoryLimiter constructs a MemoryLimiter refilling rps tokens per second
// up to burst (values <= 0 are coerced to 1).
func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &MemoryLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// Allow implements LimitStore. It never fails.
func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if rl.getVisitor(key).Allow() {
		return true, 0, nil
	}
	var retry time.Duration
	if rl.rps > 0 {
		retry = time.Duration(float64(time.Second) / float64(rl.rps))
	}
	return false, retry, nil
}

// getVisitor returns (and touches) the bucket for key, creating it if absent.
// Every 5000 lookups idle buckets are evicted first, so a stale bucket is
// dropped even when it is the one being fetched.
func (rl *MemoryLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}
