package flows

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

type CheckAuthMetrics struct {
	Success int
	Failure int
	Latency int
}

type CheckAuthErrors struct {
	EngineNotReady error
	Unauthorized   error
	Store          StoreErrors
}

// CheckAuthDeps captures check-auth dependencies.
type CheckAuthDeps struct {
	Now func() time.Time

	GetUserByID func(context.Context, string) (UserRecord, error)

	MetricInc func(int)
	Observe   func(int, time.Duration)

	Metrics CheckAuthMetrics
	Errors  CheckAuthErrors
}

// RunCheckAuth resolves an already authenticated user id to its record. A
// record deleted since the session was issued is unauthorized.
func RunCheckAuth(ctx context.Context, userID string, deps CheckAuthDeps) (UserRecord, error) {
	normalizeCheckAuthDeps(&deps)
	if deps.GetUserByID == nil {
		return UserRecord{}, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() { deps.Observe(deps.Metrics.Latency, deps.Now().Sub(start)) }()

	if userID == "" {
		deps.MetricInc(deps.Metrics.Failure)
		return UserRecord{}, deps.Errors.Unauthorized
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.Store.RecordNotFound) {
			deps.MetricInc(deps.Metrics.Failure)
			return UserRecord{}, deps.Errors.Unauthorized
		}
		return UserRecord{}, oops.Code("CHECK_AUTH_FAILED").With("operation", "GetUserByID").With("user_id", userID).Wrap(err)
	}

	deps.MetricInc(deps.Metrics.Success)
	return user, nil
}

func normalizeCheckAuthDeps(deps *CheckAuthDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Observe == nil {
		deps.Observe = noopObserve
	}
}
