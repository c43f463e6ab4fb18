package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
)

// SignupRequest is the flow-local registration form.
type SignupRequest struct {
	Email    string
	Password string
	Name     string
}

type SignupMetrics struct {
	Success     int
	Duplicate   int
	Failure     int
	MailFailure int
	Session     int
	Latency     int
}

type SignupEvents struct {
	Success   string
	Failure   string
	Duplicate string
}

type SignupErrors struct {
	EngineNotReady   error
	MissingFields    error
	PasswordTooShort error
	UserExists       error
	Store            StoreErrors
}

// SignupDeps captures signup dependencies.
type SignupDeps struct {
	MinPasswordLength    int
	VerificationTTL      time.Duration
	CodeCollisionRetries int

	Now func() time.Time

	GetUserByEmail        func(context.Context, string) (UserRecord, error)
	CreateUser            func(context.Context, *UserRecord) error
	HashPassword          func(string) (string, error)
	NewVerificationCode   func() (string, error)
	IssueSession          func(userID string) (string, time.Time, error)
	SendVerificationEmail func(ctx context.Context, to, code string) error

	MetricInc func(int)
	Observe   func(int, time.Duration)
	EmitAudit AuditFunc

	Metrics SignupMetrics
	Events  SignupEvents
	Errors  SignupErrors
}

// NormalizeEmail trims and lower-cases an address so lookups and the unique
// index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RunSignup registers an unverified account, authenticates it and sends the
// verification code. The record is persisted before the email is sent; a mail
// failure still fails the request.
func RunSignup(ctx context.Context, req SignupRequest, deps SignupDeps) (*SessionOutcome, error) {
	normalizeSignupDeps(&deps)
	if deps.GetUserByEmail == nil || deps.CreateUser == nil || deps.HashPassword == nil ||
		deps.NewVerificationCode == nil || deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() { deps.Observe(deps.Metrics.Latency, deps.Now().Sub(start)) }()

	email := NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || req.Password == "" || name == "" {
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", email, deps.Errors.MissingFields, func() map[string]string {
			return map[string]string{"reason": "missing_fields"}
		})
		return nil, deps.Errors.MissingFields
	}
	if len(req.Password) < deps.MinPasswordLength {
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", email, deps.Errors.PasswordTooShort, func() map[string]string {
			return map[string]string{"reason": "password_too_short"}
		})
		return nil, deps.Errors.PasswordTooShort
	}

	// Fast path only; the store's unique index is the real guard.
	_, err := deps.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, signupDuplicate(ctx, email, deps)
	case !errors.Is(err, deps.Errors.Store.RecordNotFound):
		deps.MetricInc(deps.Metrics.Failure)
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "GetUserByEmail").Wrap(err)
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "HashPassword").Wrap(err)
	}

	now := deps.Now().UTC()
	user := UserRecord{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created := false
	for attempt := 0; attempt < deps.CodeCollisionRetries; attempt++ {
		code, err := deps.NewVerificationCode()
		if err != nil {
			deps.MetricInc(deps.Metrics.Failure)
			return nil, oops.Code("SIGNUP_FAILED").With("operation", "NewVerificationCode").Wrap(err)
		}
		user.ID = ""
		user.VerificationToken = code
		user.VerificationTokenExpiresAt = now.Add(deps.VerificationTTL)

		err = deps.CreateUser(ctx, &user)
		if err == nil {
			created = true
			break
		}
		if errors.Is(err, deps.Errors.Store.DuplicateEmail) {
			return nil, signupDuplicate(ctx, email, deps)
		}
		if errors.Is(err, deps.Errors.Store.DuplicateCode) {
			continue
		}
		deps.MetricInc(deps.Metrics.Failure)
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "CreateUser").Wrap(err)
	}
	if !created {
		deps.MetricInc(deps.Metrics.Failure)
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "CreateUser").
			With("attempts", deps.CodeCollisionRetries).
			Errorf("verification code collided on every attempt")
	}

	token, expiresAt, err := deps.IssueSession(user.ID)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "IssueSession").With("user_id", user.ID).Wrap(err)
	}
	deps.MetricInc(deps.Metrics.Session)

	if err := deps.SendVerificationEmail(ctx, user.Email, user.VerificationToken); err != nil {
		deps.MetricInc(deps.Metrics.MailFailure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, email, err, func() map[string]string {
			return map[string]string{"reason": "verification_email_failed"}
		})
		return nil, oops.Code("MAIL_FAILED").With("operation", "SendVerificationEmail").With("user_id", user.ID).Wrap(err)
	}

	req.Password = ""
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, email, nil, nil)
	return &SessionOutcome{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func signupDuplicate(ctx context.Context, email string, deps SignupDeps) error {
	deps.MetricInc(deps.Metrics.Duplicate)
	deps.EmitAudit(ctx, deps.Events.Duplicate, false, "", email, deps.Errors.UserExists, nil)
	return deps.Errors.UserExists
}

func normalizeSignupDeps(deps *SignupDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MinPasswordLength <= 0 {
		deps.MinPasswordLength = 8
	}
	if deps.CodeCollisionRetries <= 0 {
		deps.CodeCollisionRetries = 1
	}
	if deps.SendVerificationEmail == nil {
		deps.SendVerificationEmail = noopMail
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
