package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/middleware"
)

// Prefix is the mount point of the auth routes.
const Prefix = "/api/auth"

// Options tunes [NewHandler].
type Options struct {
	Logger *slog.Logger
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
	// Metrics records per-route request counts and latency. Optional.
	Metrics *RequestMetrics
	Now     func() time.Time
}

// NewHandler returns the complete HTTP surface: the auth routes under
// [Prefix] plus /healthz and /readyz.
func NewHandler(engine *authflow.Engine, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfg := engine.Config()
	h := &handlers{engine: engine, cfg: cfg, logger: opts.Logger, now: opts.Now}

	limit := func(route authflow.RateLimitRoute, fn http.HandlerFunc) http.Handler {
		return middleware.RateLimit(engine, route)(fn)
	}
	requireSession := middleware.RequireSession(engine, cfg.Cookie.Name)

	mux := http.NewServeMux()
	mux.Handle("POST "+Prefix+"/signup", limit(authflow.RouteSignup, h.signup))
	mux.Handle("POST "+Prefix+"/login", limit(authflow.RouteLogin, h.login))
	mux.HandleFunc("POST "+Prefix+"/logout", h.logout)
	mux.HandleFunc("POST "+Prefix+"/verify-email", h.verifyEmail)
	mux.Handle("POST "+Prefix+"/forgot-password", limit(authflow.RouteForgotPassword, h.forgotPassword))
	mux.HandleFunc("POST "+Prefix+"/reset-password/{token}", h.resetPassword)
	mux.Handle("GET "+Prefix+"/check-auth", requireSession(http.HandlerFunc(h.checkAuth)))
	if !cfg.IsProduction() {
		mux.HandleFunc("GET "+Prefix+"/{$}", h.listUsers)
	}

	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)

	var handler http.Handler = mux
	handler = RequestLogger(opts.Logger, opts.Metrics)(handler)
	handler = middleware.ClientIP(opts.TrustProxy)(handler)
	return handler
}
