package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/metrics"
	"github.com/edvin/authcore/internal/oauth"
)

const (
	limiterIdleTTL    = 30 * time.Minute
	limiterMaxEntries = 10000
)

// RateLimiter applies a token bucket per client IP. Buckets idle for longer
// than limiterIdleTTL are evicted, and at most limiterMaxEntries are kept.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	cache *ttlcache.Cache[string, *rate.Limiter]
}

// NewRateLimiter creates a RateLimiter allowing perSecond requests with the
// given burst. Call Start to run expiry in the background and Stop to end it.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		cache: ttlcache.New[string, *rate.Limiter](
			ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
			ttlcache.WithCapacity[string, *rate.Limiter](limiterMaxEntries),
		),
	}
}

func (rl *RateLimiter) Start() { go rl.cache.Start() }

func (rl *RateLimiter) Stop() { rl.cache.Stop() }

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if item := rl.cache.Get(key); item != nil {
		return item.Value()
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.cache.Set(key, l, ttlcache.DefaultTTL)
	return l
}

// Allow reports whether a request from key may proceed and, if not, how long
// the caller should wait.
func (rl *RateLimiter) Allow(key string, now time.Time) (bool, time.Duration) {
	res := rl.limiter(key).ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware rejects requests over the limit with 429 and Retry-After.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Allow(clientIP(r), time.Now())
		if !ok {
			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			metrics.RateLimited.WithLabelValues(path).Inc()

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			response.NoStore(w)
			response.WriteJSON(w, http.StatusTooManyRequests,
				oauth.New(oauth.CodeTemporarilyUnavailable, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP middleware
// has already rewritten from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
