package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/yyozen/linkgate/internal/httpx"
	"github.com/yyozen/linkgate/pkg/clienthash"
	"github.com/yyozen/linkgate/pkg/metrics"
	"github.com/yyozen/linkgate/pkg/ratelimit"
)

// RateLimit throttles requests by hashed client IP. Rate-limit headers are
// set on every response; a breach answers 429 with a JSON error body.
// The limiter itself fails open, so an unreachable counter store never
// blocks redirects.
func RateLimit(limiter *ratelimit.SlidingWindowLimiter, hasher *clienthash.Hasher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := hasher.Hash(httpx.ClientIP(r))
			res := limiter.Allow(r.Context(), identity)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

			if !res.Allowed {
				metrics.RateLimited.Inc()
				retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
