package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/client"
	"github.com/MrEthical07/authflow/httpapi"
	mailmock "github.com/MrEthical07/authflow/mailer/mock"
	"github.com/MrEthical07/authflow/password"
	"github.com/MrEthical07/authflow/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
	links map[string]string
}

func newServer(t *testing.T) (*httptest.Server, *mailbox) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	box := &mailbox{codes: map[string]string{}, links: map[string]string{}}
	notifier := &mailmock.Notifier{}
	notifier.On("SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			box.mu.Lock()
			box.codes[args.String(1)] = args.String(2)
			box.mu.Unlock()
		}).Return(nil)
	notifier.On("SendPasswordResetEmail", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			box.mu.Lock()
			box.links[args.String(1)] = args.String(2)
			box.mu.Unlock()
		}).Return(nil)
	notifier.On("SendWelcomeEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendResetSuccessEmail", mock.Anything, mock.Anything).Return(nil)

	cfg := authflow.DefaultConfig()
	cfg.JWT.Secret = []byte("client-test-secret-client-test-secret")
	cfg.RateLimit.Enabled = false

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	engine, err := authflow.New().
		WithConfig(cfg).
		WithStore(store.NewRedis(rdb, "client")).
		WithNotifier(notifier).
		WithHasher(hasher).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(httpapi.NewHandler(engine, httpapi.Options{}))
	t.Cleanup(srv.Close)
	return srv, box
}

func TestClientSessionRoundTrip(t *testing.T) {
	srv, box := newServer(t)
	ctx := context.Background()

	c, err := client.New(srv.URL)
	require.NoError(t, err)

	user, err := c.Signup(ctx, "ada@example.com", "Passw0rd!", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	// The signup cookie is in the jar.
	me, err := c.CheckAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	require.NoError(t, c.Logout(ctx))
	_, err = c.CheckAuth(ctx)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Unauthorized, please login", apiErr.Message)

	box.mu.Lock()
	code := box.codes["ada@example.com"]
	box.mu.Unlock()
	verified, err := c.VerifyEmail(ctx, code)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	msg, err := c.ForgotPassword(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Password reset link sent to your email", msg)

	box.mu.Lock()
	link := box.links["ada@example.com"]
	box.mu.Unlock()
	token := link[strings.LastIndex(link, "/")+1:]
	msg, err = c.ResetPassword(ctx, token, "N3wPassw0rd!")
	require.NoError(t, err)
	assert.Equal(t, "Password reset successful", msg)

	_, err = c.Login(ctx, "ada@example.com", "Passw0rd!")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = c.Login(ctx, "ada@example.com", "N3wPassw0rd!")
	require.NoError(t, err)
}

func TestStoreAgainstServer(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	c, err := client.New(srv.URL + "/")
	require.NoError(t, err)
	s := client.NewStore(c)

	require.NoError(t, s.CheckAuth(ctx))
	assert.False(t, s.State().IsAuthenticated)

	require.NoError(t, s.Signup(ctx, "a@x.com", "Passw0rd!", "A"))
	assert.True(t, s.State().IsAuthenticated)

	err = s.Signup(ctx, "a@x.com", "Passw0rd!", "A")
	require.Error(t, err)
	assert.Equal(t, "User already exists", s.State().Error)

	require.Error(t, s.Login(ctx, "a@x.com", "Passw0rd!"))
	assert.Equal(t, "Please verify your email before logging in", s.State().Error)
}

func TestClientTransportError(t *testing.T) {
	c, err := client.New("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.CheckAuth(context.Background())
	require.Error(t, err)
	var apiErr *client.APIError
	assert.False(t, errors.As(err, &apiErr))
}
