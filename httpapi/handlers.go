package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authflow"
)

type handlers struct {
	engine *authflow.Engine
	cfg    authflow.Config
	logger *slog.Logger
	now    func() time.Time
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req authflow.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.engine.Signup(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	setSessionCookie(w, h.cfg, res, h.now())
	writeOK(w, http.StatusCreated, "User created successfully", &res.User)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req authflow.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.engine.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	setSessionCookie(w, h.cfg, res, h.now())
	writeOK(w, http.StatusOK, "Logged in successfully", &res.User)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c, err := r.Cookie(h.cfg.Cookie.Name); err == nil {
		if userID, err := h.engine.ParseSession(c.Value); err == nil {
			ctx = authflow.WithUserID(ctx, userID)
		}
	}
	h.engine.Logout(ctx)
	clearSessionCookie(w, h.cfg)
	writeOK(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.engine.VerifyEmail(r.Context(), body.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	setSessionCookie(w, h.cfg, res, h.now())
	writeOK(w, http.StatusOK, "Email verified successfully", &res.User)
}

func (h *handlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.ForgotPassword(r.Context(), body.Email); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Password reset link sent to your email", nil)
}

func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.ResetPassword(r.Context(), r.PathValue("token"), body.Password); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Password reset successful", nil)
}

func (h *handlers) checkAuth(w http.ResponseWriter, r *http.Request) {
	userID, ok := authflow.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, authflow.ErrNoToken)
		return
	}

	user, err := h.engine.CheckAuth(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", &user)
}

// listUsers is the development-only enumeration route.
func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.engine.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Users: users})
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
		return
	}
	h.healthz(w, r)
}
