package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/samber/oops"
)

// APIError is a non-2xx response. Message is the server's public message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Client calls the auth routes. The session cookie lives in the client's
// cookie jar, so one Client is one browser session.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Jar is replaced with a
// fresh cookie jar if nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the server at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, oops.Code("CLIENT_CONFIG").With("base_url", baseURL).Wrap(err)
	}
	c := &Client{base: base, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, oops.Code("CLIENT_CONFIG").Wrap(err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

type response struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	User    *authflow.PublicUser `json:"user"`
}

// Signup registers an account and starts a session.
func (c *Client) Signup(ctx context.Context, email, password, name string) (*authflow.PublicUser, error) {
	res, err := c.post(ctx, "/signup", authflow.SignupRequest{Email: email, Password: password, Name: name})
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

// Login starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (*authflow.PublicUser, error) {
	res, err := c.post(ctx, "/login", authflow.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

// Logout clears the session cookie.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.post(ctx, "/logout", nil)
	return err
}

// VerifyEmail submits the emailed code and starts a session.
func (c *Client) VerifyEmail(ctx context.Context, code string) (*authflow.PublicUser, error) {
	res, err := c.post(ctx, "/verify-email", map[string]string{"code": code})
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

// CheckAuth returns the user behind the current session.
func (c *Client) CheckAuth(ctx context.Context) (*authflow.PublicUser, error) {
	res, err := c.do(ctx, http.MethodGet, "/check-auth", nil)
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

// ForgotPassword requests a reset link and returns the server message.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	res, err := c.post(ctx, "/forgot-password", map[string]string{"email": email})
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

// ResetPassword sets a new password with the token from the reset link.
func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	res, err := c.post(ctx, "/reset-password/"+url.PathEscape(token), map[string]string{"password": password})
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, oops.Code("CLIENT_ENCODE").With("path", path).Wrap(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+"/api/auth"+path, &buf)
	if err != nil {
		return nil, oops.Code("CLIENT_REQUEST").With("path", path).Wrap(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, oops.Code("CLIENT_TRANSPORT").With("path", path).Wrap(err)
	}
	defer resp.Body.Close()

	var out response
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode >= http.StatusBadRequest {
		msg := out.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, oops.Code("CLIENT_DECODE").With("path", path).With("status", resp.StatusCode).Wrap(decodeErr)
	}
	return &out, nil
}
