package authflow

import (
	"context"

	internalflows "github.com/MrEthical07/authflow/internal/flows"
)

// Signup registers an unverified account, issues a session for it and emails
// the verification code. The email is awaited; if it fails the account still
// exists and the call reports an internal fault.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*SessionResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	out, err := e.flow.Signup(ctx, internalflows.SignupRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return nil, e.finish(ctx, "Signup", err)
	}
	return e.sessionResult(out), nil
}

// Login authenticates by email and password and records the login time.
// Unknown email and wrong password both return [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*SessionResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	out, err := e.flow.Login(ctx, internalflows.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, e.finish(ctx, "Login", err)
	}
	return e.sessionResult(out), nil
}

// CheckAuth returns the sanitized record of an authenticated user id.
func (e *Engine) CheckAuth(ctx context.Context, userID string) (PublicUser, error) {
	if err := e.ready(); err != nil {
		return PublicUser{}, err
	}

	rec, err := e.flow.CheckAuth(ctx, userID)
	if err != nil {
		return PublicUser{}, e.finish(ctx, "CheckAuth", err)
	}
	return fromFlowUser(rec).Public(), nil
}
