package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/pinsync/internal/utils"
)

// RateLimitConfig configures a per-client token bucket.
type RateLimitConfig struct {
	Burst             int // requests allowed at once
	RefillPerIPPerMin int // tokens regained per minute
	MaxEntries        int // idle buckets are evicted beyond this many clients
	IdleTTL           time.Duration
	TrustProxy        bool                         // resolve the client from proxy headers
	Key               func(r *http.Request) string // defaults to the client IP
	Now               func() time.Time             // defaults to time.Now
}

type bucket struct {
	tokens   float64
	refilled time.Time
}

type limiter struct {
	mu       sync.Mutex
	cfg      RateLimitConfig
	perMin   float64
	buckets  map[string]*bucket
	lastScan time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerIPPerMin = max(cfg.RefillPerIPPerMin, 1)
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Key == nil {
		trust := cfg.TrustProxy
		cfg.Key = func(r *http.Request) string { return utils.ClientIP(r, trust) }
	}
	return &limiter{
		cfg:     cfg,
		perMin:  float64(cfg.RefillPerIPPerMin),
		buckets: make(map[string]*bucket),
	}
}

// take spends one token of key. When none is left it reports how long
// until the next one.
func (l *limiter) take(key string, now time.Time) (ok bool, remaining int, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, found := l.buckets[key]
	if !found {
		if len(l.buckets) >= l.cfg.MaxEntries || now.Sub(l.lastScan) >= l.cfg.IdleTTL {
			l.evictIdle(now)
		}
		b = &bucket{tokens: float64(l.cfg.Burst), refilled: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.refilled); elapsed > 0 {
		b.tokens = math.Min(float64(l.cfg.Burst), b.tokens+l.refill(elapsed))
		b.refilled = now
	}

	if b.tokens < 1 {
		missing := (1 - b.tokens) * 60 / l.perMin
		return false, 0, time.Duration(missing * float64(time.Second))
	}
	b.tokens--
	return true, int(b.tokens), 0
}

// evictIdle drops buckets that have refilled completely, which is what a
// new bucket would hold anyway. mu must be held.
func (l *limiter) evictIdle(now time.Time) {
	for key, b := range l.buckets {
		full := b.tokens+l.refill(now.Sub(b.refilled)) >= float64(l.cfg.Burst)
		if full || now.Sub(b.refilled) > l.cfg.IdleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastScan = now
}

func (l *limiter) refill(elapsed time.Duration) float64 {
	return elapsed.Seconds() * l.perMin / 60
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit rejects clients that exhausted their bucket with 429 and a
// Retry-After header in whole seconds.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, wait := l.take(l.cfg.Key(r), l.cfg.Now())

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				secs := max(int(math.Ceil(wait.Seconds())), 1)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "too many attempts, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
