package flows

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// LoginRequest is the flow-local credential form.
type LoginRequest struct {
	Email    string
	Password string
}

type LoginMetrics struct {
	Success    int
	Failure    int
	Unverified int
	Session    int
	Latency    int
}

type LoginEvents struct {
	Success string
	Failure string
}

type LoginErrors struct {
	EngineNotReady     error
	MissingFields      error
	InvalidCredentials error
	EmailNotVerified   error
	Store              StoreErrors
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	// DummyHash is verified against when the email is unknown so both
	// rejection paths spend the same hashing time.
	DummyHash string

	Now func() time.Time

	GetUserByEmail  func(context.Context, string) (UserRecord, error)
	UpdateLastLogin func(context.Context, string, time.Time) error
	VerifyPassword  func(plaintext, digest string) (bool, error)
	IssueSession    func(userID string) (string, time.Time, error)

	MetricInc func(int)
	Observe   func(int, time.Duration)
	EmitAudit AuditFunc

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin authenticates by email and password. Unknown email and wrong
// password produce the same error.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (*SessionOutcome, error) {
	normalizeLoginDeps(&deps)
	if deps.GetUserByEmail == nil || deps.UpdateLastLogin == nil || deps.VerifyPassword == nil || deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() { deps.Observe(deps.Metrics.Latency, deps.Now().Sub(start)) }()

	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, deps.Errors.MissingFields
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, deps.Errors.Store.RecordNotFound) {
			return nil, oops.Code("LOGIN_FAILED").With("operation", "GetUserByEmail").Wrap(err)
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(req.Password, deps.DummyHash)
		}
		return nil, loginRejected(ctx, "", email, "unknown_email", deps)
	}

	if !user.IsVerified {
		deps.MetricInc(deps.Metrics.Unverified)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, email, deps.Errors.EmailNotVerified, func() map[string]string {
			return map[string]string{"reason": "email_not_verified"}
		})
		return nil, deps.Errors.EmailNotVerified
	}

	ok, err := deps.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "VerifyPassword").With("user_id", user.ID).Wrap(err)
	}
	if !ok {
		return nil, loginRejected(ctx, user.ID, email, "wrong_password", deps)
	}

	token, expiresAt, err := deps.IssueSession(user.ID)
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "IssueSession").With("user_id", user.ID).Wrap(err)
	}
	deps.MetricInc(deps.Metrics.Session)

	now := deps.Now().UTC()
	if err := deps.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "UpdateLastLogin").With("user_id", user.ID).Wrap(err)
	}
	user.LastLogin = now
	user.UpdatedAt = now

	req.Password = ""
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, email, nil, nil)
	return &SessionOutcome{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func loginRejected(ctx context.Context, userID, email, reason string, deps LoginDeps) error {
	deps.MetricInc(deps.Metrics.Failure)
	deps.EmitAudit(ctx, deps.Events.Failure, false, userID, email, deps.Errors.InvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return deps.Errors.InvalidCredentials
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Observe == nil {
		deps.Observe = noopObserve
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
