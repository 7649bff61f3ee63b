package internaldefs

import (
	"github.com/sablehq/authgate"
)

// CounterDef binds an engine counter to its exported metric name.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported metric name.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter. Order is the exposition order.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful logins."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed login attempts."},
	{ID: authgate.MetricLoginThrottled, Name: "authgate_login_throttled_total", Help: "Logins denied by the attempt throttle."},
	{ID: authgate.MetricRefreshSuccess, Name: "authgate_refresh_success_total", Help: "Successful token refreshes."},
	{ID: authgate.MetricRefreshFailure, Name: "authgate_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: authgate.MetricReplayDetected, Name: "authgate_replay_detected_total", Help: "Refresh tokens presented again after rotation."},
	{ID: authgate.MetricRegisterSuccess, Name: "authgate_register_success_total", Help: "Successful registrations."},
	{ID: authgate.MetricRegisterDuplicate, Name: "authgate_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authgate.MetricVerificationSent, Name: "authgate_verification_sent_total", Help: "Email verification challenges issued."},
	{ID: authgate.MetricVerificationSuccess, Name: "authgate_verification_success_total", Help: "Completed email verifications."},
	{ID: authgate.MetricVerificationFailure, Name: "authgate_verification_failure_total", Help: "Rejected verification redemptions."},
	{ID: authgate.MetricResetRequested, Name: "authgate_password_reset_request_total", Help: "Password reset requests."},
	{ID: authgate.MetricResetSuccess, Name: "authgate_password_reset_success_total", Help: "Completed password resets."},
	{ID: authgate.MetricResetFailure, Name: "authgate_password_reset_failure_total", Help: "Rejected password reset confirmations."},
	{ID: authgate.MetricPasswordChanged, Name: "authgate_password_change_total", Help: "Authenticated password changes."},
	{ID: authgate.MetricSessionCreated, Name: "authgate_session_created_total", Help: "Sessions created."},
	{ID: authgate.MetricSessionRevoked, Name: "authgate_session_revoked_total", Help: "Sessions revoked."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Single-session logouts."},
	{ID: authgate.MetricLogoutAll, Name: "authgate_logout_all_total", Help: "Revoke-all-sessions operations."},
	{ID: authgate.MetricPasswordRehashNeeded, Name: "authgate_password_rehash_needed_total", Help: "Logins whose stored hash uses outdated parameters."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricVerifyLatency, Name: "authgate_verify_latency_seconds", Help: "Access token verification latency."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's fixed millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds flattened for backends that
// cannot carry a label per bucket.
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

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form the
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
