package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/authflow"
)

// SessionParser resolves a session token to a user id.
type SessionParser interface {
	ParseSession(token string) (string, error)
}

// RequireSession rejects requests without a valid session cookie and
// attaches the resolved user id with [authflow.WithUserID]. It never reads
// the user store.
func RequireSession(sessions SessionParser, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions == nil {
				reject(w, authflow.ErrNoToken)
				return
			}

			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				reject(w, authflow.ErrNoToken)
				return
			}

			userID, err := sessions.ParseSession(cookie.Value)
			if err != nil {
				reject(w, authflow.ErrInvalidToken)
				return
			}

			ctx := authflow.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// reject writes the standard {success, message} envelope for err.
func reject(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authflow.KindOf(err).HTTPStatus())
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{false, authflow.PublicMessage(err)})
}
