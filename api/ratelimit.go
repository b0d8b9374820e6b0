package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sunnymovies/services/identity"
)

// Eviction knobs for idle per-IP buckets.
const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = time.Minute
)

// retryAfterSeconds is the back-off hint sent with a 429.
const retryAfterSeconds = "60"

// visitor pairs a caller's token bucket with the time it last made a request.
type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands each caller address its own token bucket. Wired onto
// the login endpoint to slow down password guessing.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter creates a limiter allowing limit events per second with
// the given burst per address, and starts the background eviction sweep.
// For "5 per minute" pass rate.Every(12*time.Second) with burst 5.
func NewIPRateLimiter(limit rate.Limit, burst int) *IPRateLimiter {
	rl := &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
	}
	go rl.sweep()
	return rl
}

// allow reports whether ip may proceed, creating its bucket on first sight.
func (rl *IPRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.bucket.Allow()
}

// sweep drops visitors idle longer than limiterIdleTTL.
func (rl *IPRateLimiter) sweep() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > limiterIdleTTL {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitHandlerFunc wraps next with per-IP rate limiting, answering 429
// when the caller's bucket is empty. The caller address is resolved the same
// way the address identity scheme resolves it.
func RateLimitHandlerFunc(rl *IPRateLimiter, next http.HandlerFunc) http.HandlerFunc {
	addr := identity.RemoteAddrScheme{}
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(addr.Resolve(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfterSeconds)
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
			return
		}
		next(w, r)
	}
}
