package authflow

import (
	"context"
	"time"
)

// SweepUnverified deletes accounts still unverified after their
// verification code expired.
func (e *Engine) SweepUnverified(ctx context.Context) (SweepResult, error) {
	if err := e.ready(); err != nil {
		return SweepResult{}, err
	}

	out, err := e.flow.Sweep(ctx)
	if err != nil {
		return SweepResult{}, e.finish(ctx, "SweepUnverified", err)
	}
	if out.Deleted > 0 {
		e.logger.InfoContext(ctx, "swept unverified accounts", "deleted", out.Deleted, "duration", out.Duration)
	}
	return SweepResult{Deleted: out.Deleted, Duration: out.Duration}, nil
}

// RunSweeper sweeps once per Sweep.Interval until ctx is cancelled. A failed
// pass is logged and retried on the next tick. It returns ctx.Err().
func (e *Engine) RunSweeper(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.config.Sweep.Enabled {
		<-ctx.Done()
		return ctx.Err()
	}

	interval := e.config.Sweep.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.InfoContext(ctx, "sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			e.logger.InfoContext(ctx, "sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			_, _ = e.SweepUnverified(ctx)
		}
	}
}
