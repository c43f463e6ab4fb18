package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
)

type VerifyEmailMetrics struct {
	Success     int
	Failure     int
	MailFailure int
	Session     int
}

type VerifyEmailEvents struct {
	Success string
	Failure string
}

type VerifyEmailErrors struct {
	EngineNotReady error
	InvalidCode    error
	Store          StoreErrors
}

// VerifyEmailDeps captures email verification dependencies.
type VerifyEmailDeps struct {
	Now func() time.Time

	ConsumeVerificationToken func(ctx context.Context, code string, now time.Time) (UserRecord, error)
	IssueSession             func(userID string) (string, time.Time, error)
	SendWelcomeEmail         func(ctx context.Context, to, name string) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics VerifyEmailMetrics
	Events  VerifyEmailEvents
	Errors  VerifyEmailErrors
}

// RunVerifyEmail consumes a verification code, marks the account verified,
// sends the welcome email and authenticates the caller. The code alone is
// enough to establish identity.
func RunVerifyEmail(ctx context.Context, code string, deps VerifyEmailDeps) (*SessionOutcome, error) {
	normalizeVerifyEmailDeps(&deps)
	if deps.ConsumeVerificationToken == nil || deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	code = strings.TrimSpace(code)
	if code == "" {
		deps.MetricInc(deps.Metrics.Failure)
		return nil, deps.Errors.InvalidCode
	}

	user, err := deps.ConsumeVerificationToken(ctx, code, deps.Now().UTC())
	if err != nil {
		if errors.Is(err, deps.Errors.Store.RecordNotFound) {
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Failure, false, "", "", deps.Errors.InvalidCode, nil)
			return nil, deps.Errors.InvalidCode
		}
		return nil, oops.Code("VERIFY_EMAIL_FAILED").With("operation", "ConsumeVerificationToken").Wrap(err)
	}

	if err := deps.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
		deps.MetricInc(deps.Metrics.MailFailure)
		return nil, oops.Code("MAIL_FAILED").With("operation", "SendWelcomeEmail").With("user_id", user.ID).Wrap(err)
	}

	token, expiresAt, err := deps.IssueSession(user.ID)
	if err != nil {
		return nil, oops.Code("VERIFY_EMAIL_FAILED").With("operation", "IssueSession").With("user_id", user.ID).Wrap(err)
	}
	deps.MetricInc(deps.Metrics.Session)

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, user.Email, nil, nil)
	return &SessionOutcome{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func normalizeVerifyEmailDeps(deps *VerifyEmailDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SendWelcomeEmail == nil {
		deps.SendWelcomeEmail = noopMail
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
