package authflow

import (
	"context"
	"testing"
	"time"
)

func TestCheckRateLimitLoginWindow(t *testing.T) {
	env := newTestEnv(t, withRateLimit())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := env.engine.CheckRateLimit(ctx, RouteLogin, "10.0.0.1")
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d: expected allowed", i+1)
		}
		if d.Remaining != 2-i {
			t.Fatalf("attempt %d: expected remaining %d, got %d", i+1, 2-i, d.Remaining)
		}
	}

	d, err := env.engine.CheckRateLimit(ctx, RouteLogin, "10.0.0.1")
	if err != nil {
		t.Fatalf("fourth attempt: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected fourth attempt rejected")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > 15*time.Minute {
		t.Fatalf("unexpected retry-after %s", d.RetryAfter)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRateLimitHit]; got != 1 {
		t.Fatalf("expected rate limit metric 1, got %d", got)
	}

	env.clock.Advance(15*time.Minute + time.Second)
	d, err = env.engine.CheckRateLimit(ctx, RouteLogin, "10.0.0.1")
	if err != nil {
		t.Fatalf("after window: %v", err)
	}
	if !d.Allowed {
		t.Fatal("expected request allowed after the window elapsed")
	}
}

func TestCheckRateLimitIsolation(t *testing.T) {
	env := newTestEnv(t, withRateLimit())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.engine.CheckRateLimit(ctx, RouteSignup, "10.0.0.1"); err != nil {
			t.Fatalf("signup attempt %d: %v", i+1, err)
		}
	}
	if d, _ := env.engine.CheckRateLimit(ctx, RouteSignup, "10.0.0.1"); d.Allowed {
		t.Fatal("expected signup budget exhausted")
	}

	if d, err := env.engine.CheckRateLimit(ctx, RouteSignup, "10.0.0.2"); err != nil || !d.Allowed {
		t.Fatalf("other client must be unaffected, allowed=%v err=%v", d.Allowed, err)
	}
	if d, err := env.engine.CheckRateLimit(ctx, RouteForgotPassword, "10.0.0.1"); err != nil || !d.Allowed {
		t.Fatalf("other route must be unaffected, allowed=%v err=%v", d.Allowed, err)
	}
	if d, err := env.engine.CheckRateLimit(ctx, RateLimitRoute("verify_email"), "10.0.0.1"); err != nil || !d.Allowed {
		t.Fatalf("unlimited route must always allow, allowed=%v err=%v", d.Allowed, err)
	}
}

func TestCheckRateLimitDisabled(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 10; i++ {
		d, err := env.engine.CheckRateLimit(context.Background(), RouteLogin, "10.0.0.1")
		if err != nil || !d.Allowed {
			t.Fatalf("expected allow with limiter disabled, allowed=%v err=%v", d.Allowed, err)
		}
	}
}

func TestCheckRateLimitRedisDown(t *testing.T) {
	env := newTestEnv(t, withRateLimit())
	env.redis.Close()

	_, err := env.engine.CheckRateLimit(context.Background(), RouteLogin, "10.0.0.1")
	if KindOf(err) != KindInternal {
		t.Fatalf("expected internal fault, got %v", err)
	}
	requireOopsCode(t, err, "RATE_LIMIT_UNAVAILABLE")
}

func TestBuildRequiresRedisWhenRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true

	_, err := New().WithConfig(cfg).WithStore(newMemStore()).WithNotifier(&recordingNotifier{}).Build()
	if err == nil {
		t.Fatal("expected error without redis client")
	}
}
