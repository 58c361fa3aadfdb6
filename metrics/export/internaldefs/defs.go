package internaldefs

import (
	"github.com/MrEthical07/docgate"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   docgate.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   docgate.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: docgate.MetricAdmitted, Name: "docgate_admitted_total", Help: "Requests admitted by the authentication pipeline."},
	{ID: docgate.MetricRejectedNoToken, Name: "docgate_rejected_no_token_total", Help: "Requests rejected for a missing token."},
	{ID: docgate.MetricRejectedToken, Name: "docgate_rejected_token_total", Help: "Requests rejected for an invalid or expired token."},
	{ID: docgate.MetricRejectedSession, Name: "docgate_rejected_session_total", Help: "Requests rejected for a revoked or expired session."},
	{ID: docgate.MetricRejectedUser, Name: "docgate_rejected_user_total", Help: "Requests rejected because the user no longer exists."},
	{ID: docgate.MetricRejectedUnverified, Name: "docgate_rejected_unverified_total", Help: "Requests rejected for an unverified email."},
	{ID: docgate.MetricRejectedLocked, Name: "docgate_rejected_locked_total", Help: "Requests rejected for a locked account."},
	{ID: docgate.MetricRejectedRole, Name: "docgate_rejected_role_total", Help: "Requests rejected for an insufficient role."},
	{ID: docgate.MetricRejectedCredits, Name: "docgate_rejected_credits_total", Help: "Requests rejected for insufficient credits."},
	{ID: docgate.MetricIPBlocked, Name: "docgate_ip_blocked_total", Help: "Requests rejected from a blocked IP."},
	{ID: docgate.MetricSuspiciousTrip, Name: "docgate_suspicious_trip_total", Help: "IPs blocked by the suspicious score."},
	{ID: docgate.MetricBurstTrip, Name: "docgate_burst_trip_total", Help: "IPs blocked by the burst counter."},
	{ID: docgate.MetricRateLimitHit, Name: "docgate_rate_limit_hit_total", Help: "Requests rejected by a route-class rate limit."},
	{ID: docgate.MetricFailOpen, Name: "docgate_fail_open_total", Help: "Abuse checks admitted because the counter store failed."},
	{ID: docgate.MetricLoginSuccess, Name: "docgate_login_success_total", Help: "Successful logins."},
	{ID: docgate.MetricLoginFailure, Name: "docgate_login_failure_total", Help: "Failed logins."},
	{ID: docgate.MetricLoginLocked, Name: "docgate_login_locked_total", Help: "Login attempts against a locked account."},
	{ID: docgate.MetricTwoFactorRequired, Name: "docgate_two_factor_required_total", Help: "Logins that issued a two-factor challenge."},
	{ID: docgate.MetricTwoFactorSuccess, Name: "docgate_two_factor_success_total", Help: "Successful two-factor validations."},
	{ID: docgate.MetricTwoFactorFailure, Name: "docgate_two_factor_failure_total", Help: "Failed two-factor validations."},
	{ID: docgate.MetricBackupCodeUsed, Name: "docgate_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: docgate.MetricSessionCreated, Name: "docgate_session_created_total", Help: "Sessions created."},
	{ID: docgate.MetricSessionInvalidated, Name: "docgate_session_invalidated_total", Help: "Sessions invalidated."},
	{ID: docgate.MetricSessionTouchFailed, Name: "docgate_session_touch_failed_total", Help: "Failed session activity updates."},
	{ID: docgate.MetricRegistration, Name: "docgate_registration_total", Help: "Accounts registered."},
	{ID: docgate.MetricPasswordReset, Name: "docgate_password_reset_total", Help: "Completed password resets."},
	{ID: docgate.MetricCreditReset, Name: "docgate_credit_reset_total", Help: "Daily credit resets applied."},
	{ID: docgate.MetricCreditConsumed, Name: "docgate_credit_consumed_total", Help: "Credits consumed."},
	{ID: docgate.MetricDocumentScanned, Name: "docgate_document_scanned_total", Help: "Documents analyzed."},
	{ID: docgate.MetricAnalysisFailed, Name: "docgate_analysis_failed_total", Help: "Failed document analyses."},
}

var HistogramDefs = []HistogramDef{
	{ID: docgate.MetricAuthenticateLatency, Name: "docgate_authenticate_latency_seconds", Help: "Authentication pipeline latency."},
}

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

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
