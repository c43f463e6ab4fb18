// Package mock provides a testify mock of authflow.Notifier.
package mock

import (
	"context"

	"github.com/MrEthical07/authflow"
	"github.com/stretchr/testify/mock"
)

// Notifier is a mock authflow.Notifier.
type Notifier struct {
	mock.Mock
}

var _ authflow.Notifier = (*Notifier)(nil)

func (m *Notifier) SendVerificationEmail(ctx context.Context, to, code string) error {
	args := m.Called(ctx, to, code)
	return args.Error(0)
}

func (m *Notifier) SendWelcomeEmail(ctx context.Context, to, name string) error {
	args := m.Called(ctx, to, name)
	return args.Error(0)
}

func (m *Notifier) SendPasswordResetEmail(ctx context.Context, to, resetURL string) error {
	args := m.Called(ctx, to, resetURL)
	return args.Error(0)
}

func (m *Notifier) SendResetSuccessEmail(ctx context.Context, to string) error {
	args := m.Called(ctx, to)
	return args.Error(0)
}
