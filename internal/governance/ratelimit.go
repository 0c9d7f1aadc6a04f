package governance

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiterConfig defines per-route rate limit settings.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// RateLimiter implements token bucket rate limiting per route.
// Routes without configuration are never limited.
type RateLimiter struct {
	now func() time.Time

	mu      sync.RWMutex
	buckets map[string]*tokenBucket
}

// NewRateLimiter creates a rate limiter with the provided configuration.
func NewRateLimiter(config map[string]RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		now:     time.Now,
		buckets: make(map[string]*tokenBucket),
	}
	rl.Configure(config)
	return rl
}

// Configure replaces the per-route limits. Buckets of routes that stay
// configured keep their remaining tokens.
func (rl *RateLimiter) Configure(config map[string]RateLimiterConfig) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	buckets := make(map[string]*tokenBucket, len(config))
	for route, cfg := range config {
		if cfg.RequestsPerSecond <= 0 {
			continue
		}
		if bucket, ok := rl.buckets[route]; ok {
			bucket.configure(cfg, now)
			buckets[route] = bucket
			continue
		}
		buckets[route] = newTokenBucket(cfg, now)
	}
	rl.buckets = buckets
}

// Allow consumes one token for route and reports whether the request may proceed.
func (rl *RateLimiter) Allow(route string) bool {
	rl.mu.RLock()
	bucket, ok := rl.buckets[route]
	rl.mu.RUnlock()
	if !ok {
		return true
	}
	return bucket.take(rl.now())
}

// RetryAfter returns how long until route has a token again.
func (rl *RateLimiter) RetryAfter(route string) time.Duration {
	rl.mu.RLock()
	bucket, ok := rl.buckets[route]
	rl.mu.RUnlock()
	if !ok {
		return 0
	}
	return bucket.wait(rl.now())
}

// Middleware rejects requests over the route's limit with 429.
func (rl *RateLimiter) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(route) {
			wait := rl.RetryAfter(route)
			seconds := int(wait.Seconds())
			if wait > 0 && seconds == 0 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type tokenBucket struct {
	mu         sync.Mutex
	rate       float64
	capacity   float64
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(cfg RateLimiterConfig, now time.Time) *tokenBucket {
	tb := &tokenBucket{lastRefill: now}
	tb.configure(cfg, now)
	tb.tokens = tb.capacity
	return tb
}

func (tb *tokenBucket) configure(cfg RateLimiterConfig, now time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(now)
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	tb.rate = cfg.RequestsPerSecond
	tb.capacity = float64(burst)
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

func (tb *tokenBucket) take(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(now)
	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

func (tb *tokenBucket) wait(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(now)
	if tb.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
}

func (tb *tokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
