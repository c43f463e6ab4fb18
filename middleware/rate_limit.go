package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/authflow"
)

// RateChecker records one request against a route budget.
type RateChecker interface {
	CheckRateLimit(ctx context.Context, route authflow.RateLimitRoute, clientIP string) (authflow.RateLimitDecision, error)
}

// RateLimit enforces the route budget for the client address attached by
// [ClientIP]. Limited responses carry Retry-After and X-RateLimit headers.
func RateLimit(limiter RateChecker, route authflow.RateLimitRoute) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := authflow.ClientIPFromContext(r.Context())
			decision, err := limiter.CheckRateLimit(r.Context(), route, ip)
			if err != nil {
				reject(w, err)
				return
			}

			if decision.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			}
			if !decision.Allowed {
				secs := int(math.Ceil(decision.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				reject(w, authflow.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
