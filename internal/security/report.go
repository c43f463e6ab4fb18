package security

import (
	"fmt"
	"time"
)

// PasswordReport holds the active hashing parameters.
type PasswordReport struct {
	Algorithm   string
	BcryptCost  int
	Memory      uint32
	Time        uint32
	Parallelism uint8
	MinLength   int
}

// Report is a read-only snapshot of the security-relevant settings.
type Report struct {
	ProductionMode     bool
	SecureCookies      bool
	CookieSameSite     string
	SecretLength       int
	SessionTTL         time.Duration
	Password           PasswordReport
	VerificationTTL    time.Duration
	VerificationDigits int
	ResetTTL           time.Duration
	ResetTokenBytes    int
	RateLimitingActive bool
	SweepActive        bool
	AuditActive        bool
}

// Warnings lists settings that are accepted but weaker than production
// defaults. An empty result means nothing to report.
func (r Report) Warnings() []string {
	var out []string
	if r.ProductionMode && !r.SecureCookies {
		out = append(out, "session cookie is sent without Secure in production")
	}
	if r.SecretLength < 32 {
		out = append(out, fmt.Sprintf("JWT secret is %d bytes; use at least 32", r.SecretLength))
	}
	if r.SessionTTL > 30*24*time.Hour {
		out = append(out, fmt.Sprintf("sessions live %s; consider 30 days or less", r.SessionTTL))
	}
	if !r.RateLimitingActive {
		out = append(out, "rate limiting is disabled; login and signup are open to brute force")
	}
	if !r.SweepActive {
		out = append(out, "unverified account sweep is disabled; run the sweep command on a schedule")
	}
	if r.ResetTTL > 24*time.Hour {
		out = append(out, fmt.Sprintf("reset links stay valid for %s", r.ResetTTL))
	}
	return out
}
