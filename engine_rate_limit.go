package authflow

import (
	"context"

	"github.com/samber/oops"
)

// CheckRateLimit records one request from clientIP against route. Routes
// without a policy and engines with rate limiting disabled always allow.
func (e *Engine) CheckRateLimit(ctx context.Context, route RateLimitRoute, clientIP string) (RateLimitDecision, error) {
	if e == nil {
		return RateLimitDecision{}, ErrEngineNotReady
	}
	window, limited := e.config.RateLimit.Window(route)
	if !limited || e.limiter == nil {
		return RateLimitDecision{Allowed: true}, nil
	}

	d, err := e.limiter.Allow(ctx, string(route), clientIP)
	if err != nil {
		return RateLimitDecision{}, e.internalFault(ctx, "CheckRateLimit",
			oops.Code("RATE_LIMIT_UNAVAILABLE").With("route", string(route)).Wrap(err))
	}

	decision := RateLimitDecision{
		Allowed:    d.Allowed,
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		RetryAfter: d.RetryAfter,
	}
	if !decision.Allowed {
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", ErrRateLimited, func() map[string]string {
			return map[string]string{
				"route":  string(route),
				"window": window.Window.String(),
			}
		})
	}
	return decision, nil
}
