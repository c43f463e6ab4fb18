package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for audit event")
	}
	return AuditEvent{}
}

func TestAuditSignupAndLoginFailure(t *testing.T) {
	env := newTestEnv(t, withAudit())
	ctx := WithClientIP(context.Background(), "203.0.113.9")

	if _, err := env.engine.Signup(ctx, SignupRequest{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	ev := nextEvent(t, env.sink)
	if ev.Type != auditEventSignupSuccess || !ev.Success || ev.IP != "203.0.113.9" || ev.UserID == "" {
		t.Fatalf("unexpected signup event %+v", ev)
	}

	_, _ = env.engine.Login(ctx, LoginRequest{Email: "nobody@x.com", Password: "Passw0rd!"})
	ev = nextEvent(t, env.sink)
	if ev.Type != auditEventLoginFailure || ev.Success {
		t.Fatalf("unexpected login event %+v", ev)
	}
	if ev.Reason != string(auditReasonInvalidCredentials) || ev.Metadata["reason"] != "unknown_email" {
		t.Fatalf("unexpected failure reason %+v", ev)
	}
}

func TestAuditNeverCarriesSecrets(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	notifier := &recordingNotifier{}
	cfg := testConfig()
	cfg.Audit.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithNotifier(notifier).
		WithHasher(newTestHasher(t)).
		WithAuditSink(NewJSONWriterSink(&buf)).
		WithClock(newTestClock().Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ctx := context.Background()

	if _, err := engine.Signup(ctx, SignupRequest{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	code := store.user(t, "a@x.com").VerificationToken
	if _, err := engine.VerifyEmail(ctx, code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := engine.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	link := notifier.byKind("reset")[0].Arg
	token := link[strings.LastIndexByte(link, '/')+1:]
	engine.Close()

	out := buf.String()
	for _, secret := range []string{"Passw0rd!", code, token} {
		if strings.Contains(out, secret) {
			t.Fatalf("audit log leaks %q: %s", secret, out)
		}
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 events, got %d: %s", len(lines), out)
	}
	var ev AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != auditEventEmailVerified {
		t.Fatalf("expected %s, got %s", auditEventEmailVerified, ev.Type)
	}
}

func TestAuditRateLimitEvent(t *testing.T) {
	env := newTestEnv(t, withRateLimit(), withAudit())
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	for i := 0; i < 4; i++ {
		if _, err := env.engine.CheckRateLimit(ctx, RouteForgotPassword, "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	ev := nextEvent(t, env.sink)
	if ev.Type != auditEventRateLimitTriggered || ev.Metadata["route"] != string(RouteForgotPassword) {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Reason != string(auditReasonRateLimited) {
		t.Fatalf("expected reason %s, got %s", auditReasonRateLimited, ev.Reason)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.Signup(context.Background(), SignupRequest{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	select {
	case ev := <-env.sink.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatal("expected no drops")
	}
}

func TestAuditReasonMapping(t *testing.T) {
	cases := map[error]AuditReason{
		nil:                 "",
		ErrMissingFields:    auditReasonMissingFields,
		ErrInvalidCode:      auditReasonInvalidCode,
		ErrUserExists:       auditReasonUserExists,
		ErrInvalidToken:     auditReasonUnauthorized,
		ErrEmailNotVerified: auditReasonEmailNotVerified,
		ErrDuplicateEmail:   auditReasonInternal,
	}
	for err, want := range cases {
		if got := auditReason(err); got != want {
			t.Fatalf("auditReason(%v) = %q, want %q", err, got, want)
		}
	}
}
