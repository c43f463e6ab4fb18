package client

import (
	"context"
	"errors"
	"sync"

	"github.com/MrEthical07/authflow"
)

// API is the server surface the [Store] drives. [Client] implements it.
type API interface {
	Signup(ctx context.Context, email, password, name string) (*authflow.PublicUser, error)
	Login(ctx context.Context, email, password string) (*authflow.PublicUser, error)
	Logout(ctx context.Context) error
	VerifyEmail(ctx context.Context, code string) (*authflow.PublicUser, error)
	CheckAuth(ctx context.Context) (*authflow.PublicUser, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
}

var _ API = (*Client)(nil)

// State is the UI-visible session snapshot.
type State struct {
	User            *authflow.PublicUser
	IsAuthenticated bool
	IsLoading       bool
	IsCheckingAuth  bool
	Error           string
	Message         string
}

// Store mirrors the server session for a UI layer. Every action flips the
// loading flags before the call and settles them after it; subscribers see
// both transitions. Actions return the call's error after recording it.
type Store struct {
	api API

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// NewStore returns an empty, unauthenticated store.
func NewStore(api API) *Store {
	return &Store{api: api, subs: map[int]func(State){}}
}

// State returns a snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every state change and returns a function that
// removes it. fn runs on the goroutine that caused the change.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
}

func errorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func (s *Store) startLoading() {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})
}

func (s *Store) authenticated(user *authflow.PublicUser) {
	s.update(func(st *State) {
		st.User = user
		st.IsAuthenticated = true
		st.IsLoading = false
		st.Error = ""
	})
}

func (s *Store) failed(err error, fallback string) error {
	s.update(func(st *State) {
		st.Error = errorMessage(err, fallback)
		st.IsLoading = false
	})
	return err
}

// Signup registers and marks the store authenticated.
func (s *Store) Signup(ctx context.Context, email, password, name string) error {
	s.startLoading()
	user, err := s.api.Signup(ctx, email, password, name)
	if err != nil {
		return s.failed(err, "Error signing up")
	}
	s.authenticated(user)
	return nil
}

// Login starts a session.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.startLoading()
	user, err := s.api.Login(ctx, email, password)
	if err != nil {
		return s.failed(err, "Error logging in")
	}
	s.authenticated(user)
	return nil
}

// Logout ends the session.
func (s *Store) Logout(ctx context.Context) error {
	s.startLoading()
	if err := s.api.Logout(ctx); err != nil {
		return s.failed(err, "Error logging out")
	}
	s.update(func(st *State) {
		st.User = nil
		st.IsAuthenticated = false
		st.IsLoading = false
		st.Error = ""
	})
	return nil
}

// VerifyEmail submits the code and marks the store authenticated.
func (s *Store) VerifyEmail(ctx context.Context, code string) error {
	s.startLoading()
	user, err := s.api.VerifyEmail(ctx, code)
	if err != nil {
		return s.failed(err, "Error verifying email")
	}
	s.authenticated(user)
	return nil
}

// CheckAuth resolves the current session. A rejected session is not an
// error for the UI: the store just becomes unauthenticated.
func (s *Store) CheckAuth(ctx context.Context) error {
	s.update(func(st *State) {
		st.IsCheckingAuth = true
		st.Error = ""
	})
	user, err := s.api.CheckAuth(ctx)
	if err != nil {
		s.update(func(st *State) {
			st.User = nil
			st.IsAuthenticated = false
			st.IsCheckingAuth = false
			st.Error = ""
		})
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil
		}
		return err
	}
	s.update(func(st *State) {
		st.User = user
		st.IsAuthenticated = true
		st.IsCheckingAuth = false
	})
	return nil
}

// ForgotPassword requests a reset link and records the server message.
func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
		st.Message = ""
	})
	msg, err := s.api.ForgotPassword(ctx, email)
	if err != nil {
		return s.failed(err, "Error sending reset password email")
	}
	s.update(func(st *State) {
		st.Message = msg
		st.IsLoading = false
	})
	return nil
}

// ResetPassword sets a new password and records the server message.
func (s *Store) ResetPassword(ctx context.Context, token, password string) error {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
		st.Message = ""
	})
	msg, err := s.api.ResetPassword(ctx, token, password)
	if err != nil {
		return s.failed(err, "Error resetting password")
	}
	s.update(func(st *State) {
		st.Message = msg
		st.IsLoading = false
	})
	return nil
}
