package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.CheckAuth.GetUserByID != nil
}

func (s Service) Signup(ctx context.Context, req SignupRequest) (*SessionOutcome, error) {
	return RunSignup(ctx, req, s.deps.Signup)
}

func (s Service) Login(ctx context.Context, req LoginRequest) (*SessionOutcome, error) {
	return RunLogin(ctx, req, s.deps.Login)
}

func (s Service) VerifyEmail(ctx context.Context, code string) (*SessionOutcome, error) {
	return RunVerifyEmail(ctx, code, s.deps.VerifyEmail)
}

func (s Service) ForgotPassword(ctx context.Context, email string) error {
	return RunForgotPassword(ctx, email, s.deps.ForgotPassword)
}

func (s Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return RunResetPassword(ctx, token, newPassword, s.deps.ResetPassword)
}

func (s Service) CheckAuth(ctx context.Context, userID string) (UserRecord, error) {
	return RunCheckAuth(ctx, userID, s.deps.CheckAuth)
}

func (s Service) Sweep(ctx context.Context) (SweepOutcome, error) {
	return RunSweep(ctx, s.deps.Sweep)
}
