package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"resumechat/internal/errors"

	"golang.org/x/time/rate"
)

// limiterEvictAfter is how long a client key may stay idle before its
// bucket is dropped.
const limiterEvictAfter = 10 * time.Minute

// clientBucket pairs a token bucket with the last time its key was seen.
type clientBucket struct {
	bucket *rate.Limiter
	seen   time.Time
}

// RateLimiter hands out one token bucket per client key (IP or API key)
// and evicts buckets that have gone idle.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	perSec  rate.Limit
	burst   int
	done    chan struct{}
	logger  *errors.Logger
}

// NewRateLimiter creates a limiter allowing requestsPerMin sustained
// requests with the given burst capacity per key.
func NewRateLimiter(requestsPerMin, burstCapacity int, logger *errors.Logger) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientBucket),
		perSec:  rate.Limit(float64(requestsPerMin) / 60.0),
		burst:   burstCapacity,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go rl.evictLoop()
	return rl
}

// Allow reports whether a request under the given key may proceed. It never
// blocks; a denied request simply gets no token.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	cb, ok := rl.clients[key]
	if !ok {
		cb = &clientBucket{bucket: rate.NewLimiter(rl.perSec, rl.burst)}
		rl.clients[key] = cb
	}
	cb.seen = time.Now()
	rl.mu.Unlock()

	return cb.bucket.Allow()
}

// GetStats returns a snapshot of the limiter state for /stats
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"active_limiters": len(rl.clients),
		"rate_per_second": float64(rl.perSec),
		"rate_per_minute": float64(rl.perSec) * 60.0,
		"burst_capacity":  rl.burst,
	}
}

// Close stops the eviction goroutine
func (rl *RateLimiter) Close() {
	close(rl.done)
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(limiterEvictAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(limiterEvictAfter)
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for key, cb := range rl.clients {
		if cb.seen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}

	if rl.logger != nil {
		rl.logger.Debug("Rate limiter eviction pass completed",
			"remaining_limiters", len(rl.clients))
	}
}

// rateLimitMiddleware rejects requests whose key has exhausted its bucket
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := limiterKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key == "" {
				next(w, r)
				return
			}

			if !s.RateLimiter.Allow(key) {
				s.Logger.Info("Rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r))
				writeErrorResponse(w, "Rate limit exceeded", "RATE_LIMITED", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

// limiterKey derives the bucket key for a request. API-key identity wins
// over the client IP when both are enabled.
func limiterKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if key := requestAPIKey(r); key != "" {
			return "api:" + key
		}
	}
	if byIP {
		return "ip:" + getClientIP(r)
	}
	return ""
}

// requestAPIKey pulls the API key from the X-API-Key header or a Bearer token
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}

// getClientIP resolves the caller's address, preferring proxy headers
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := firstValidIP(xff); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// firstValidIP returns the first parseable address in a comma-separated list
func firstValidIP(list string) string {
	for entry := range strings.SplitSeq(list, ",") {
		entry = strings.TrimSpace(entry)
		if net.ParseIP(entry) != nil {
			return entry
		}
	}
	return ""
}
