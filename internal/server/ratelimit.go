package server

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// tokenBucket refills one token per interval up to maxTokens
type tokenBucket struct {
	tokens     int
	lastRefill time.Time
}

// RateLimiter keeps a token bucket per client key
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	maxTokens int
	interval  time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// NewRateLimiter allows perMinute requests per client per minute, with bursts of up to perMinute
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		buckets:   make(map[string]*tokenBucket),
		maxTokens: perMinute,
		interval:  time.Minute / time.Duration(perMinute),
		now:       time.Now,
	}
}

// Allow consumes a token for key and reports whether one was available
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: rl.maxTokens, lastRefill: now}
		rl.buckets[key] = bucket
	}
	rl.refill(bucket, now)

	if bucket.tokens <= 0 {
		return false
	}
	bucket.tokens--
	return true
}

func (rl *RateLimiter) refill(bucket *tokenBucket, now time.Time) {
	added := int(now.Sub(bucket.lastRefill) / rl.interval)
	if added <= 0 {
		return
	}
	bucket.tokens = min(bucket.tokens+added, rl.maxTokens)
	bucket.lastRefill = bucket.lastRefill.Add(time.Duration(added) * rl.interval)
}

// sweep drops buckets that have refilled completely, at most once per full refill period
func (rl *RateLimiter) sweep(now time.Time) {
	period := rl.interval * time.Duration(rl.maxTokens)
	if now.Sub(rl.lastSweep) < period {
		return
	}
	rl.lastSweep = now

	for key, bucket := range rl.buckets {
		rl.refill(bucket, now)
		if bucket.tokens >= rl.maxTokens {
			delete(rl.buckets, key)
		}
	}
}

// Middleware answers 429 once a client has used up its tokens. Clients are
// keyed by the host of RemoteAddr, which is the peer address unless the
// server trusts a proxy and middleware.RealIP has rewritten it.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}

		if !rl.Allow(key) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.interval.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
