// Package storetest is the behavioral suite every [authflow.UserStore]
// backend must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per sub-test.
type Factory func(t *testing.T) authflow.UserStore

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s authflow.UserStore)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"DuplicateEmail", testDuplicateEmail},
		{"DuplicateCode", testDuplicateCode},
		{"NotFound", testNotFound},
		{"ConsumeVerification", testConsumeVerification},
		{"ConsumeVerificationExpired", testConsumeVerificationExpired},
		{"CodeReusableAfterConsume", testCodeReusableAfterConsume},
		{"ResetToken", testResetToken},
		{"ResetTokenReplaced", testResetTokenReplaced},
		{"ResetTokenExpired", testResetTokenExpired},
		{"UpdateLastLogin", testUpdateLastLogin},
		{"ListUsers", testListUsers},
		{"DeleteUnverifiedExpired", testDeleteUnverifiedExpired},
		{"Ping", testPing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newUser(email, code string, createdAt time.Time) *authflow.User {
	return &authflow.User{
		Email:                      email,
		Name:                       "Test " + email,
		PasswordHash:               "$2a$10$abcdefghijklmnopqrstuv",
		VerificationToken:          code,
		VerificationTokenExpiresAt: createdAt.Add(24 * time.Hour),
		CreatedAt:                  createdAt,
		UpdatedAt:                  createdAt,
	}
}

func create(t *testing.T, s authflow.UserStore, u *authflow.User) *authflow.User {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), u))
	require.NotEmpty(t, u.ID)
	return u
}

func testCreateAndGet(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()
	u := create(t, s, newUser("ada@example.com", "123456", base))

	byEmail, err := s.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)

	for _, got := range []*authflow.User{byEmail, byID} {
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "ada@example.com", got.Email)
		assert.Equal(t, "Test ada@example.com", got.Name)
		assert.Equal(t, u.PasswordHash, got.PasswordHash)
		assert.False(t, got.IsVerified)
		assert.Equal(t, "123456", got.VerificationToken)
		assert.True(t, got.VerificationTokenExpiresAt.Equal(base.Add(24*time.Hour)))
		assert.True(t, got.CreatedAt.Equal(base))
		assert.True(t, got.LastLogin.IsZero())
		assert.Empty(t, got.ResetPasswordToken)
	}
}

func testDuplicateEmail(t *testing.T, s authflow.UserStore) {
	create(t, s, newUser("dup@example.com", "111111", base))

	err := s.CreateUser(context.Background(), newUser("dup@example.com", "222222", base))
	require.ErrorIs(t, err, authflow.ErrDuplicateEmail)
}

func testDuplicateCode(t *testing.T, s authflow.UserStore) {
	create(t, s, newUser("one@example.com", "333333", base))

	err := s.CreateUser(context.Background(), newUser("two@example.com", "333333", base))
	require.ErrorIs(t, err, authflow.ErrDuplicateCode)

	_, err = s.GetUserByEmail(context.Background(), "two@example.com")
	require.ErrorIs(t, err, authflow.ErrRecordNotFound)
}

func testNotFound(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()

	_, err := s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, authflow.ErrRecordNotFound)
	_, err = s.GetUserByID(ctx, "not-an-id")
	assert.ErrorIs(t, err, authflow.ErrRecordNotFound)
	assert.ErrorIs(t, s.UpdateLastLogin(ctx, "not-an-id", base), authflow.ErrRecordNotFound)
	assert.ErrorIs(t, s.SetResetToken(ctx, "not-an-id", "tok", base), authflow.ErrRecordNotFound)
	_, err = s.ConsumeVerificationToken(ctx, "", base)
	assert.ErrorIs(t, err, authflow.ErrRecordNotFound)
	_, err = s.ConsumeResetToken(ctx, "", "hash", base)
	assert.ErrorIs(t, err, authflow.ErrRecordNotFound)
}

func testConsumeVerification(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()
	u := create(t, s, newUser("verify@example.com", "444444", base))
	now := base.Add(time.Hour)

	got, err := s.ConsumeVerificationToken(ctx, "444444", now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.IsVerified)
	assert.Empty(t, got.VerificationToken)
	assert.True(t, got.VerificationTokenExpiresAt.IsZero())
	assert.True(t, got.UpdatedAt.Equal(now))

	_, err = s.ConsumeVerificationToken(ctx, "444444", now)
	require.ErrorIs(t, err, authflow.ErrRecordNotFound)

	stored, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
}

func testConsumeVerificationExpired(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()
	u := create(t, s, newUser("late@example.com", "555555", base))

	_, err := s.ConsumeVerificationToken(ctx, "555555", base.Add(24*time.Hour))
	require.ErrorIs(t, err, authflow.ErrRecordNotFound)

	stored, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
}

func testCodeReusableAfterConsume(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()
	create(t, s, newUser("first@example.com", "666666", base))
	_, err := s.ConsumeVerificationToken(ctx, "666666", base)
	require.NoError(t, err)

	create(t, s, newUser("second@example.com", "666666", base))
}

func testResetToken(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()
	u := create(t, s, newUser("reset@example.com", "777777", base))

	require.NoError(t, s.SetResetToken(ctx, u.ID, "reset-token", base.Add(time.Hour)))
	stored, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "reset-token", stored.ResetPasswordToken)

	now := base.Add(30 * time.Minute)
	got, err := s.ConsumeResetToken(ctx, "reset-token", "new-hash", now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Empty(t, got.ResetPasswordToken)
	assert.True(t, got.ResetPasswordExpiresAt.IsZero())
	assert.True(t, got.UpdatedAt.Equal(now))

	_, err = s.ConsumeResetToken(ctx, "reset-token", "other-hash", now)
	require.ErrorIs(t, err, authflow.ErrRecordNotFound)
}

func testResetTokenReplaced(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()
	u := create(t, s, newUser("twice@example.com", "888888", base))

	require.NoError(t, s.SetResetToken(ctx, u.ID, "old-token", base.Add(time.Hour)))
	require.NoError(t, s.SetResetToken(ctx, u.ID, "new-token", base.Add(time.Hour)))

	_, err := s.ConsumeResetToken(ctx, "old-token", "hash", base)
	require.ErrorIs(t, err, authflow.ErrRecordNotFound)
	_, err = s.ConsumeResetToken(ctx, "new-token", "hash", base)
	require.NoError(t, err)
}

func testResetTokenExpired(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()
	u := create(t, s, newUser("stale@example.com", "999999", base))
	require.NoError(t, s.SetResetToken(ctx, u.ID, "stale-token", base.Add(time.Hour)))

	_, err := s.ConsumeResetToken(ctx, "stale-token", "new-hash", base.Add(time.Hour))
	require.ErrorIs(t, err, authflow.ErrRecordNotFound)

	stored, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)
}

func testUpdateLastLogin(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()
	u := create(t, s, newUser("login@example.com", "121212", base))
	at := base.Add(2 * time.Hour)

	require.NoError(t, s.UpdateLastLogin(ctx, u.ID, at))
	stored, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastLogin.Equal(at))
	assert.True(t, stored.UpdatedAt.Equal(at))
}

func testListUsers(t *testing.T, s authflow.UserStore) {
	for i := 0; i < 3; i++ {
		create(t, s, newUser(fmt.Sprintf("list%d@example.com", i), fmt.Sprintf("13131%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i, u := range users {
		assert.Equal(t, fmt.Sprintf("list%d@example.com", i), u.Email)
	}
}

func testDeleteUnverifiedExpired(t *testing.T, s authflow.UserStore) {
	ctx := context.Background()
	expired := create(t, s, newUser("expired@example.com", "141414", base))
	fresh := create(t, s, newUser("fresh@example.com", "151515", base.Add(48*time.Hour)))
	verified := create(t, s, newUser("verified@example.com", "161616", base))
	_, err := s.ConsumeVerificationToken(ctx, "161616", base)
	require.NoError(t, err)

	deleted, err := s.DeleteUnverifiedExpired(ctx, base.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = s.GetUserByID(ctx, expired.ID)
	assert.ErrorIs(t, err, authflow.ErrRecordNotFound)
	_, err = s.GetUserByEmail(ctx, "expired@example.com")
	assert.ErrorIs(t, err, authflow.ErrRecordNotFound)
	_, err = s.GetUserByID(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = s.GetUserByID(ctx, verified.ID)
	assert.NoError(t, err)

	// The email is free again once the stale account is gone.
	create(t, s, newUser("expired@example.com", "171717", base.Add(25*time.Hour)))
}

func testPing(t *testing.T, s authflow.UserStore) {
	assert.NoError(t, s.Ping(context.Background()))
}
