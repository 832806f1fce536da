package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ayush/storefront/backend/internal/apperr"
	"github.com/ayush/storefront/backend/internal/httpx"
	"github.com/ayush/storefront/backend/internal/logging"
)

// MsgTooManyAttempts is returned once a client exhausts its window.
const MsgTooManyAttempts = "Too many attempts, please try again later"

// HitRecorder counts rejected requests.
type HitRecorder interface {
	RateLimitHit(scope string)
}

// RateLimiter enforces a fixed-window request budget per client IP, counted
// in Redis. When Redis is unavailable requests are let through.
type RateLimiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	logger *zap.Logger
	hits   HitRecorder
}

// NewRateLimiter returns a limiter allowing limit requests per window. A nil
// rdb disables limiting.
func NewRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, logger *zap.Logger, hits HitRecorder) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window, logger: logger, hits: hits}
}

// Limit returns middleware counting requests under scope.
func (l *RateLimiter) Limit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || l.rdb == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := "ratelimit:" + scope + ":" + clientIP(r)

			count, err := l.rdb.Incr(ctx, key).Result()
			if err != nil {
				logging.Warn(l.logger, "rate limiter unavailable, allowing request", err, zap.String("scope", scope))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				l.rdb.Expire(ctx, key, l.window)
			}

			ttl, err := l.rdb.TTL(ctx, key).Result()
			if err != nil || ttl < 0 {
				// counter without expiry, e.g. the process died between INCR and EXPIRE
				l.rdb.Expire(ctx, key, l.window)
				ttl = l.window
			}
			resetSeconds := strconv.Itoa(int(math.Ceil(ttl.Seconds())))

			remaining := l.limit - int(count)
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", resetSeconds)

			if count > int64(l.limit) {
				if l.hits != nil {
					l.hits.RateLimitHit(scope)
				}
				w.Header().Set("Retry-After", resetSeconds)
				httpx.WriteError(w, r, l.logger, apperr.RateLimited(MsgTooManyAttempts))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keys on RemoteAddr, which is the socket peer unless the router
// runs chi's RealIP behind a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
