package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/authflow"
)

func sessionCookie(cfg authflow.Config, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.Cookie.Name,
		Value:    value,
		Path:     cfg.Cookie.Path,
		Domain:   cfg.Cookie.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.SecureCookies(),
		SameSite: cfg.Cookie.SameSite,
	}
}

func setSessionCookie(w http.ResponseWriter, cfg authflow.Config, res *authflow.SessionResult, now time.Time) {
	maxAge := int(res.ExpiresAt.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = int(cfg.JWT.TTL.Seconds())
	}
	http.SetCookie(w, sessionCookie(cfg, res.Token, maxAge))
}

// clearSessionCookie expires the cookie with the attributes it was set with,
// otherwise browsers keep the original.
func clearSessionCookie(w http.ResponseWriter, cfg authflow.Config) {
	http.SetCookie(w, sessionCookie(cfg, "", -1))
}
