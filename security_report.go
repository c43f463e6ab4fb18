package authflow

import (
	"net/http"

	"github.com/MrEthical07/authflow/internal/security"
)

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport = security.Report

// PasswordConfigReport contains the hashing parameters active in the engine.
type PasswordConfigReport = security.PasswordReport

// SecurityReport summarizes the active configuration. Call Warnings on the
// result for settings weaker than the defaults.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	return SecurityReport{
		ProductionMode: cfg.IsProduction(),
		SecureCookies:  cfg.SecureCookies(),
		CookieSameSite: sameSiteName(cfg.Cookie.SameSite),
		SecretLength:   len(cfg.JWT.Secret),
		SessionTTL:     cfg.JWT.TTL,
		Password: PasswordConfigReport{
			Algorithm:   cfg.Password.Algorithm,
			BcryptCost:  cfg.Password.BcryptCost,
			Memory:      cfg.Password.Argon2Memory,
			Time:        cfg.Password.Argon2Time,
			Parallelism: cfg.Password.Argon2Parallelism,
			MinLength:   cfg.Password.MinLength,
		},
		VerificationTTL:    cfg.EmailVerification.TTL,
		VerificationDigits: cfg.EmailVerification.CodeDigits,
		ResetTTL:           cfg.PasswordReset.TTL,
		ResetTokenBytes:    cfg.PasswordReset.TokenBytes,
		RateLimitingActive: e.limiter != nil,
		SweepActive:        cfg.Sweep.Enabled,
		AuditActive:        cfg.Audit.Enabled,
	}
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return "Default"
	}
}
