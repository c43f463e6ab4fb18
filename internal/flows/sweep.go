package flows

import (
	"context"
	"strconv"
	"time"

	"github.com/samber/oops"
)

type SweepMetrics struct {
	Run     int
	Deleted int
}

type SweepEvents struct {
	Swept string
}

// SweepDeps captures the unverified-account sweep dependencies.
type SweepDeps struct {
	Now func() time.Time

	DeleteUnverifiedExpired func(context.Context, time.Time) (int64, error)

	MetricInc func(int)
	MetricAdd func(int, uint64)
	EmitAudit AuditFunc

	Metrics SweepMetrics
	Events  SweepEvents

	ErrEngineNotReady error
}

// SweepOutcome reports one sweep pass.
type SweepOutcome struct {
	Deleted  int64
	Duration time.Duration
}

// RunSweep deletes every account still unverified after its verification
// code expired.
func RunSweep(ctx context.Context, deps SweepDeps) (SweepOutcome, error) {
	normalizeSweepDeps(&deps)
	if deps.DeleteUnverifiedExpired == nil {
		return SweepOutcome{}, deps.ErrEngineNotReady
	}

	start := deps.Now()
	deleted, err := deps.DeleteUnverifiedExpired(ctx, start.UTC())
	if err != nil {
		return SweepOutcome{}, oops.Code("SWEEP_FAILED").With("operation", "DeleteUnverifiedExpired").Wrap(err)
	}

	deps.MetricInc(deps.Metrics.Run)
	if deleted > 0 {
		deps.MetricAdd(deps.Metrics.Deleted, uint64(deleted))
		deps.EmitAudit(ctx, deps.Events.Swept, true, "", "", nil, func() map[string]string {
			return map[string]string{"deleted": strconv.FormatInt(deleted, 10)}
		})
	}

	return SweepOutcome{Deleted: deleted, Duration: deps.Now().Sub(start)}, nil
}

func normalizeSweepDeps(deps *SweepDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = func(int, uint64) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
