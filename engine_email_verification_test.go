package authflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func signupCode(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	if _, err := env.engine.Signup(context.Background(), SignupRequest{Email: email, Password: "Passw0rd!", Name: "Ada"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	return env.store.user(t, email).VerificationToken
}

func TestVerifyEmailSuccess(t *testing.T) {
	env := newTestEnv(t)
	code := signupCode(t, env, "a@x.com")

	res, err := env.engine.VerifyEmail(context.Background(), code)
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if !res.User.IsVerified {
		t.Fatal("expected verified user in response")
	}
	if userID, err := env.engine.ParseSession(res.Token); err != nil || userID != res.User.ID {
		t.Fatalf("expected fresh session, got %q err=%v", userID, err)
	}

	stored := env.store.user(t, "a@x.com")
	if !stored.IsVerified || stored.VerificationToken != "" || !stored.VerificationTokenExpiresAt.IsZero() {
		t.Fatalf("expected verification fields cleared, got %+v", stored)
	}

	welcome := env.notifier.byKind("welcome")
	if len(welcome) != 1 || welcome[0].To != "a@x.com" || welcome[0].Arg != "Ada" {
		t.Fatalf("unexpected welcome emails %+v", welcome)
	}
}

func TestVerifyEmailCodeSingleUse(t *testing.T) {
	env := newTestEnv(t)
	code := signupCode(t, env, "a@x.com")
	ctx := context.Background()

	if _, err := env.engine.VerifyEmail(ctx, code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	_, reused := env.engine.VerifyEmail(ctx, code)
	_, never := env.engine.VerifyEmail(ctx, "000000")
	if !errors.Is(reused, ErrInvalidCode) || !errors.Is(never, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for reuse and unknown code, got %v and %v", reused, never)
	}
	if PublicMessage(reused) != PublicMessage(never) {
		t.Fatal("reused and never-issued codes must fail identically")
	}
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	code := signupCode(t, env, "a@x.com")

	env.clock.Advance(24*time.Hour + time.Second)
	_, err := env.engine.VerifyEmail(context.Background(), code)
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if KindOf(err).HTTPStatus() != 400 {
		t.Fatalf("expected 400, got %d", KindOf(err).HTTPStatus())
	}
	if env.store.user(t, "a@x.com").IsVerified {
		t.Fatal("expired code must not verify the account")
	}
}

func TestVerifyEmailEmptyCode(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.VerifyEmail(context.Background(), "  "); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestVerifyEmailWelcomeFailure(t *testing.T) {
	env := newTestEnv(t)
	code := signupCode(t, env, "a@x.com")
	env.notifier.err = errors.New("smtp down")

	_, err := env.engine.VerifyEmail(context.Background(), code)
	requireOopsCode(t, err, "MAIL_FAILED")
	if !env.store.user(t, "a@x.com").IsVerified {
		t.Fatal("expected verification to persist before the welcome email")
	}
}
