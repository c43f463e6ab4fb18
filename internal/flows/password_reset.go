package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
)

type ForgotPasswordMetrics struct {
	Request      int
	UnknownEmail int
	MailFailure  int
}

type ForgotPasswordEvents struct {
	Request string
}

type ForgotPasswordErrors struct {
	EngineNotReady error
	MissingFields  error
	UserNotFound   error
	Store          StoreErrors
}

// ForgotPasswordDeps captures reset-request dependencies.
type ForgotPasswordDeps struct {
	TokenTTL time.Duration

	Now func() time.Time

	GetUserByEmail         func(context.Context, string) (UserRecord, error)
	SetResetToken          func(ctx context.Context, userID, token string, expiresAt time.Time) error
	NewResetToken          func() (string, error)
	ResetURL               func(token string) string
	SendPasswordResetEmail func(ctx context.Context, to, resetURL string) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics ForgotPasswordMetrics
	Events  ForgotPasswordEvents
	Errors  ForgotPasswordErrors
}

// RunForgotPassword stores a fresh reset token and emails a link carrying it.
// An unknown email is reported as not found.
func RunForgotPassword(ctx context.Context, email string, deps ForgotPasswordDeps) error {
	normalizeForgotPasswordDeps(&deps)
	if deps.GetUserByEmail == nil || deps.SetResetToken == nil || deps.NewResetToken == nil || deps.ResetURL == nil {
		return deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	if email == "" {
		return deps.Errors.MissingFields
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Errors.Store.RecordNotFound) {
			deps.MetricInc(deps.Metrics.UnknownEmail)
			deps.EmitAudit(ctx, deps.Events.Request, false, "", email, deps.Errors.UserNotFound, nil)
			return deps.Errors.UserNotFound
		}
		return oops.Code("FORGOT_PASSWORD_FAILED").With("operation", "GetUserByEmail").Wrap(err)
	}

	token, err := deps.NewResetToken()
	if err != nil {
		return oops.Code("FORGOT_PASSWORD_FAILED").With("operation", "NewResetToken").Wrap(err)
	}
	expiresAt := deps.Now().UTC().Add(deps.TokenTTL)
	if err := deps.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return oops.Code("FORGOT_PASSWORD_FAILED").With("operation", "SetResetToken").With("user_id", user.ID).Wrap(err)
	}

	if err := deps.SendPasswordResetEmail(ctx, user.Email, deps.ResetURL(token)); err != nil {
		deps.MetricInc(deps.Metrics.MailFailure)
		return oops.Code("MAIL_FAILED").With("operation", "SendPasswordResetEmail").With("user_id", user.ID).Wrap(err)
	}

	deps.MetricInc(deps.Metrics.Request)
	deps.EmitAudit(ctx, deps.Events.Request, true, user.ID, email, nil, nil)
	return nil
}

type ResetPasswordMetrics struct {
	Success     int
	Failure     int
	MailFailure int
}

type ResetPasswordEvents struct {
	Confirm string
}

type ResetPasswordErrors struct {
	EngineNotReady    error
	PasswordTooShort  error
	InvalidResetToken error
	Store             StoreErrors
}

// ResetPasswordDeps captures reset-confirm dependencies.
type ResetPasswordDeps struct {
	MinPasswordLength int

	Now func() time.Time

	HashPassword          func(string) (string, error)
	ConsumeResetToken     func(ctx context.Context, token, newHash string, now time.Time) (UserRecord, error)
	SendResetSuccessEmail func(ctx context.Context, to string) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics ResetPasswordMetrics
	Events  ResetPasswordEvents
	Errors  ResetPasswordErrors
}

// RunResetPassword replaces the password of the account holding token. The
// hash is computed before the token is consumed so a store write is the only
// step between lookup and state change.
func RunResetPassword(ctx context.Context, token, newPassword string, deps ResetPasswordDeps) error {
	normalizeResetPasswordDeps(&deps)
	if deps.HashPassword == nil || deps.ConsumeResetToken == nil {
		return deps.Errors.EngineNotReady
	}

	if len(newPassword) < deps.MinPasswordLength {
		deps.MetricInc(deps.Metrics.Failure)
		return deps.Errors.PasswordTooShort
	}
	token = strings.TrimSpace(token)
	if token == "" {
		deps.MetricInc(deps.Metrics.Failure)
		return deps.Errors.InvalidResetToken
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "HashPassword").Wrap(err)
	}

	user, err := deps.ConsumeResetToken(ctx, token, hash, deps.Now().UTC())
	if err != nil {
		if errors.Is(err, deps.Errors.Store.RecordNotFound) {
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Confirm, false, "", "", deps.Errors.InvalidResetToken, nil)
			return deps.Errors.InvalidResetToken
		}
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "ConsumeResetToken").Wrap(err)
	}

	if err := deps.SendResetSuccessEmail(ctx, user.Email); err != nil {
		deps.MetricInc(deps.Metrics.MailFailure)
		return oops.Code("MAIL_FAILED").With("operation", "SendResetSuccessEmail").With("user_id", user.ID).Wrap(err)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Confirm, true, user.ID, user.Email, nil, nil)
	return nil
}

func normalizeForgotPasswordDeps(deps *ForgotPasswordDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TokenTTL <= 0 {
		deps.TokenTTL = time.Hour
	}
	if deps.SendPasswordResetEmail == nil {
		deps.SendPasswordResetEmail = noopMail
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}

func normalizeResetPasswordDeps(deps *ResetPasswordDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MinPasswordLength <= 0 {
		deps.MinPasswordLength = 8
	}
	if deps.SendResetSuccessEmail == nil {
		deps.SendResetSuccessEmail = func(context.Context, string) error { return nil }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
