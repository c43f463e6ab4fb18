package internaldefs

import (
	"github.com/MrEthical07/authflow"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricSignupSuccess, Name: "authflow_signup_success_total", Help: "Accounts registered."},
	{ID: authflow.MetricSignupDuplicate, Name: "authflow_signup_duplicate_total", Help: "Signups rejected because the email is taken."},
	{ID: authflow.MetricSignupFailure, Name: "authflow_signup_failure_total", Help: "Signups that failed on an internal fault."},
	{ID: authflow.MetricEmailVerificationSuccess, Name: "authflow_email_verification_success_total", Help: "Verification codes consumed."},
	{ID: authflow.MetricEmailVerificationFailure, Name: "authflow_email_verification_failure_total", Help: "Invalid or expired verification codes."},
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Successful logins."},
	{ID: authflow.MetricLoginFailure, Name: "authflow_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: authflow.MetricLoginUnverified, Name: "authflow_login_unverified_total", Help: "Logins rejected because the email is unverified."},
	{ID: authflow.MetricLogout, Name: "authflow_logout_total", Help: "Logouts."},
	{ID: authflow.MetricCheckAuthSuccess, Name: "authflow_check_auth_success_total", Help: "Session checks that resolved a user."},
	{ID: authflow.MetricCheckAuthFailure, Name: "authflow_check_auth_failure_total", Help: "Session checks for vanished users."},
	{ID: authflow.MetricPasswordResetRequest, Name: "authflow_password_reset_request_total", Help: "Reset links sent."},
	{ID: authflow.MetricPasswordResetUnknownEmail, Name: "authflow_password_reset_unknown_email_total", Help: "Reset requests for unregistered emails."},
	{ID: authflow.MetricPasswordResetConfirmSuccess, Name: "authflow_password_reset_confirm_success_total", Help: "Passwords replaced through a reset token."},
	{ID: authflow.MetricPasswordResetConfirmFailure, Name: "authflow_password_reset_confirm_failure_total", Help: "Invalid or expired reset tokens."},
	{ID: authflow.MetricRateLimitHit, Name: "authflow_rate_limit_hit_total", Help: "Requests rejected by a route rate limit."},
	{ID: authflow.MetricSessionIssued, Name: "authflow_session_issued_total", Help: "Session tokens issued."},
	{ID: authflow.MetricMailFailure, Name: "authflow_mail_failure_total", Help: "Lifecycle emails that failed to send."},
	{ID: authflow.MetricSweepRun, Name: "authflow_sweep_run_total", Help: "Unverified-account sweep passes."},
	{ID: authflow.MetricSweepDeleted, Name: "authflow_sweep_deleted_total", Help: "Unverified accounts deleted by the sweep."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricSignupLatency, Name: "authflow_signup_latency_seconds", Help: "Signup latency."},
	{ID: authflow.MetricLoginLatency, Name: "authflow_login_latency_seconds", Help: "Login latency."},
	{ID: authflow.MetricCheckAuthLatency, Name: "authflow_check_auth_latency_seconds", Help: "Session check latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "authflow_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without native
// histogram support.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
