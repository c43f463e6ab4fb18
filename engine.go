package authflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/authflow/internal"
	"github.com/MrEthical07/authflow/internal/audit"
	internalflows "github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/jwt"
	"github.com/samber/oops"
)

// Engine runs the account lifecycle flows. It is safe for concurrent use
// once built.
type Engine struct {
	config     Config
	store      UserStore
	notifier   Notifier
	hasher     PasswordHasher
	jwtManager *jwt.Manager
	limiter    *rate.Limiter
	audit      *audit.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
	dummyHash  string
	flow       internalflows.Service
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns the number of audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// ParseSession resolves a session token to its user id. Every failure is
// [ErrInvalidToken].
func (e *Engine) ParseSession(token string) (string, error) {
	userID, err := e.jwtManager.Parse(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// Logout records the event. Sessions are stateless, so the caller clearing
// the cookie is the whole of logout.
func (e *Engine) Logout(ctx context.Context) {
	userID, _ := UserIDFromContext(ctx)
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, "", nil, nil)
}

// ListUsers returns every account, sanitized. Exposed only by the
// development debug route.
func (e *Engine) ListUsers(ctx context.Context) ([]PublicUser, error) {
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return nil, e.internalFault(ctx, "ListUsers", oops.Code("LIST_USERS_FAILED").With("operation", "ListUsers").Wrap(err))
	}
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// Ping checks the store, and Redis through the limiter when configured.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return oops.Code("STORE_UNAVAILABLE").With("operation", "Ping").Wrap(err)
	}
	if e.limiter != nil {
		if err := e.limiter.Ping(ctx); err != nil {
			return oops.Code("REDIS_UNAVAILABLE").With("operation", "Ping").Wrap(err)
		}
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) issueSession(userID string) (string, time.Time, error) {
	return e.jwtManager.Issue(userID)
}

func (e *Engine) sessionResult(out *internalflows.SessionOutcome) *SessionResult {
	u := fromFlowUser(out.User)
	return &SessionResult{User: u.Public(), Token: out.Token, ExpiresAt: out.ExpiresAt}
}

// finish logs internal faults and passes every error through unchanged so
// callers can classify it with [KindOf].
func (e *Engine) finish(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindInternal {
		return e.internalFault(ctx, op, err)
	}
	e.logger.DebugContext(ctx, "request rejected", "op", op, "reason", err.Error())
	return err
}

func (e *Engine) internalFault(ctx context.Context, op string, err error) error {
	e.logger.ErrorContext(ctx, "internal fault", "op", op, "error", err)
	return err
}

/*
====================================
FLOW WIRING
====================================
*/

func toFlowUser(u *User) internalflows.UserRecord {
	if u == nil {
		return internalflows.UserRecord{}
	}
	return internalflows.UserRecord{
		ID:                         u.ID,
		Email:                      u.Email,
		Name:                       u.Name,
		PasswordHash:               u.PasswordHash,
		IsVerified:                 u.IsVerified,
		VerificationToken:          u.VerificationToken,
		VerificationTokenExpiresAt: u.VerificationTokenExpiresAt,
		ResetPasswordToken:         u.ResetPasswordToken,
		ResetPasswordExpiresAt:     u.ResetPasswordExpiresAt,
		LastLogin:                  u.LastLogin,
		CreatedAt:                  u.CreatedAt,
		UpdatedAt:                  u.UpdatedAt,
	}
}

func fromFlowUser(r internalflows.UserRecord) *User {
	return &User{
		ID:                         r.ID,
		Email:                      r.Email,
		Name:                       r.Name,
		PasswordHash:               r.PasswordHash,
		IsVerified:                 r.IsVerified,
		VerificationToken:          r.VerificationToken,
		VerificationTokenExpiresAt: r.VerificationTokenExpiresAt,
		ResetPasswordToken:         r.ResetPasswordToken,
		ResetPasswordExpiresAt:     r.ResetPasswordExpiresAt,
		LastLogin:                  r.LastLogin,
		CreatedAt:                  r.CreatedAt,
		UpdatedAt:                  r.UpdatedAt,
	}
}

func (e *Engine) lookupByEmail(ctx context.Context, email string) (internalflows.UserRecord, error) {
	u, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		return internalflows.UserRecord{}, err
	}
	return toFlowUser(u), nil
}

func (e *Engine) lookupByID(ctx context.Context, id string) (internalflows.UserRecord, error) {
	u, err := e.store.GetUserByID(ctx, id)
	if err != nil {
		return internalflows.UserRecord{}, err
	}
	return toFlowUser(u), nil
}

func (e *Engine) flowAudit(ctx context.Context, event string, success bool, userID, email string, err error, md func() map[string]string) {
	e.emitAudit(ctx, event, success, userID, email, err, md)
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) flowObserve(id int, d time.Duration) {
	e.metrics.Observe(MetricID(id), d)
}

func (e *Engine) initFlowService() {
	storeErrors := internalflows.StoreErrors{
		RecordNotFound: ErrRecordNotFound,
		DuplicateEmail: ErrDuplicateEmail,
		DuplicateCode:  ErrDuplicateCode,
	}
	cfg := e.config

	e.flow = internalflows.New(internalflows.Deps{
		Signup: internalflows.SignupDeps{
			MinPasswordLength:    cfg.Password.MinLength,
			VerificationTTL:      cfg.EmailVerification.TTL,
			CodeCollisionRetries: cfg.EmailVerification.CodeCollisionRetries,
			Now:                  e.now,
			GetUserByEmail:       e.lookupByEmail,
			CreateUser: func(ctx context.Context, rec *internalflows.UserRecord) error {
				u := fromFlowUser(*rec)
				if err := e.store.CreateUser(ctx, u); err != nil {
					return err
				}
				rec.ID = u.ID
				rec.CreatedAt = u.CreatedAt
				rec.UpdatedAt = u.UpdatedAt
				return nil
			},
			HashPassword: e.hasher.Hash,
			NewVerificationCode: func() (string, error) {
				return internal.NewVerificationCode(cfg.EmailVerification.CodeDigits)
			},
			IssueSession:          e.issueSession,
			SendVerificationEmail: e.notifier.SendVerificationEmail,
			MetricInc:             e.flowMetricInc,
			Observe:               e.flowObserve,
			EmitAudit:             e.flowAudit,
			Metrics: internalflows.SignupMetrics{
				Success:     int(MetricSignupSuccess),
				Duplicate:   int(MetricSignupDuplicate),
				Failure:     int(MetricSignupFailure),
				MailFailure: int(MetricMailFailure),
				Session:     int(MetricSessionIssued),
				Latency:     int(MetricSignupLatency),
			},
			Events: internalflows.SignupEvents{
				Success:   auditEventSignupSuccess,
				Failure:   auditEventSignupFailure,
				Duplicate: auditEventSignupDuplicate,
			},
			Errors: internalflows.SignupErrors{
				EngineNotReady:   ErrEngineNotReady,
				MissingFields:    ErrMissingFields,
				PasswordTooShort: ErrPasswordTooShort,
				UserExists:       ErrUserExists,
				Store:            storeErrors,
			},
		},
		Login: internalflows.LoginDeps{
			DummyHash:       e.dummyHash,
			Now:             e.now,
			GetUserByEmail:  e.lookupByEmail,
			UpdateLastLogin: e.store.UpdateLastLogin,
			VerifyPassword:  e.hasher.Verify,
			IssueSession:    e.issueSession,
			MetricInc:       e.flowMetricInc,
			Observe:         e.flowObserve,
			EmitAudit:       e.flowAudit,
			Metrics: internalflows.LoginMetrics{
				Success:    int(MetricLoginSuccess),
				Failure:    int(MetricLoginFailure),
				Unverified: int(MetricLoginUnverified),
				Session:    int(MetricSessionIssued),
				Latency:    int(MetricLoginLatency),
			},
			Events: internalflows.LoginEvents{
				Success: auditEventLoginSuccess,
				Failure: auditEventLoginFailure,
			},
			Errors: internalflows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				MissingFields:      ErrMissingFields,
				InvalidCredentials: ErrInvalidCredentials,
				EmailNotVerified:   ErrEmailNotVerified,
				Store:              storeErrors,
			},
		},
		VerifyEmail: internalflows.VerifyEmailDeps{
			Now: e.now,
			ConsumeVerificationToken: func(ctx context.Context, code string, now time.Time) (internalflows.UserRecord, error) {
				u, err := e.store.ConsumeVerificationToken(ctx, code, now)
				if err != nil {
					return internalflows.UserRecord{}, err
				}
				return toFlowUser(u), nil
			},
			IssueSession:     e.issueSession,
			SendWelcomeEmail: e.notifier.SendWelcomeEmail,
			MetricInc:        e.flowMetricInc,
			EmitAudit:        e.flowAudit,
			Metrics: internalflows.VerifyEmailMetrics{
				Success:     int(MetricEmailVerificationSuccess),
				Failure:     int(MetricEmailVerificationFailure),
				MailFailure: int(MetricMailFailure),
				Session:     int(MetricSessionIssued),
			},
			Events: internalflows.VerifyEmailEvents{
				Success: auditEventEmailVerified,
				Failure: auditEventEmailVerificationFailure,
			},
			Errors: internalflows.VerifyEmailErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidCode:    ErrInvalidCode,
				Store:          storeErrors,
			},
		},
		ForgotPassword: internalflows.ForgotPasswordDeps{
			TokenTTL:       cfg.PasswordReset.TTL,
			Now:            e.now,
			GetUserByEmail: e.lookupByEmail,
			SetResetToken:  e.store.SetResetToken,
			NewResetToken: func() (string, error) {
				return internal.NewResetToken(cfg.PasswordReset.TokenBytes)
			},
			ResetURL:               cfg.ResetURL,
			SendPasswordResetEmail: e.notifier.SendPasswordResetEmail,
			MetricInc:              e.flowMetricInc,
			EmitAudit:              e.flowAudit,
			Metrics: internalflows.ForgotPasswordMetrics{
				Request:      int(MetricPasswordResetRequest),
				UnknownEmail: int(MetricPasswordResetUnknownEmail),
				MailFailure:  int(MetricMailFailure),
			},
			Events: internalflows.ForgotPasswordEvents{
				Request: auditEventPasswordResetRequest,
			},
			Errors: internalflows.ForgotPasswordErrors{
				EngineNotReady: ErrEngineNotReady,
				MissingFields:  ErrMissingFields,
				UserNotFound:   ErrUserNotFound,
				Store:          storeErrors,
			},
		},
		ResetPassword: internalflows.ResetPasswordDeps{
			MinPasswordLength: cfg.Password.MinLength,
			Now:               e.now,
			HashPassword:      e.hasher.Hash,
			ConsumeResetToken: func(ctx context.Context, token, newHash string, now time.Time) (internalflows.UserRecord, error) {
				u, err := e.store.ConsumeResetToken(ctx, token, newHash, now)
				if err != nil {
					return internalflows.UserRecord{}, err
				}
				return toFlowUser(u), nil
			},
			SendResetSuccessEmail: e.notifier.SendResetSuccessEmail,
			MetricInc:             e.flowMetricInc,
			EmitAudit:             e.flowAudit,
			Metrics: internalflows.ResetPasswordMetrics{
				Success:     int(MetricPasswordResetConfirmSuccess),
				Failure:     int(MetricPasswordResetConfirmFailure),
				MailFailure: int(MetricMailFailure),
			},
			Events: internalflows.ResetPasswordEvents{
				Confirm: auditEventPasswordResetConfirm,
			},
			Errors: internalflows.ResetPasswordErrors{
				EngineNotReady:    ErrEngineNotReady,
				PasswordTooShort:  ErrPasswordTooShort,
				InvalidResetToken: ErrInvalidResetToken,
				Store:             storeErrors,
			},
		},
		CheckAuth: internalflows.CheckAuthDeps{
			Now:         e.now,
			GetUserByID: e.lookupByID,
			MetricInc:   e.flowMetricInc,
			Observe:     e.flowObserve,
			Metrics: internalflows.CheckAuthMetrics{
				Success: int(MetricCheckAuthSuccess),
				Failure: int(MetricCheckAuthFailure),
				Latency: int(MetricCheckAuthLatency),
			},
			Errors: internalflows.CheckAuthErrors{
				EngineNotReady: ErrEngineNotReady,
				Unauthorized:   ErrUnauthorized,
				Store:          storeErrors,
			},
		},
		Sweep: internalflows.SweepDeps{
			Now:                     e.now,
			DeleteUnverifiedExpired: e.store.DeleteUnverifiedExpired,
			MetricInc:               e.flowMetricInc,
			MetricAdd: func(id int, n uint64) {
				e.metrics.Add(MetricID(id), n)
			},
			EmitAudit: e.flowAudit,
			Metrics: internalflows.SweepMetrics{
				Run:     int(MetricSweepRun),
				Deleted: int(MetricSweepDeleted),
			},
			Events: internalflows.SweepEvents{
				Swept: auditEventAccountsSwept,
			},
			ErrEngineNotReady: ErrEngineNotReady,
		},
	})
}

func (e *Engine) ready() error {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

