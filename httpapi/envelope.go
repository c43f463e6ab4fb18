package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/authflow"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// envelope is the response shape of every API route.
type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	User    *authflow.PublicUser  `json:"user,omitempty"`
	Users   []authflow.PublicUser `json:"users,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, message string, user *authflow.PublicUser) {
	writeJSON(w, status, envelope{Success: true, Message: message, User: user})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, authflow.KindOf(err).HTTPStatus(), envelope{Success: false, Message: authflow.PublicMessage(err)})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst zeroed so
// the flow reports the missing fields itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &authflow.Error{Kind: authflow.KindValidation, Message: "Invalid request body"}
	}
	return nil
}
