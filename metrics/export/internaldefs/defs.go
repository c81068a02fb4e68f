package internaldefs

import (
	"github.com/santokhan/authkit"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful logins."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed logins (unknown account or wrong password)."},
	{ID: authkit.MetricLoginRateLimited, Name: "authkit_login_rate_limited_total", Help: "Logins rejected by the failed-login throttle."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Successful refreshes."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Failed refreshes."},
	{ID: authkit.MetricRefreshRotated, Name: "authkit_refresh_rotated_total", Help: "Refresh tokens replaced by rotation."},
	{ID: authkit.MetricRefreshRevoked, Name: "authkit_refresh_revoked_total", Help: "Refresh tokens presented after revocation."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Logouts."},
	{ID: authkit.MetricSessionCreated, Name: "authkit_session_created_total", Help: "Sessions opened by login."},
	{ID: authkit.MetricSessionInvalidated, Name: "authkit_session_invalidated_total", Help: "Sessions ended by logout or password reset."},
	{ID: authkit.MetricAuthenticateFailure, Name: "authkit_authenticate_failure_total", Help: "Rejected access tokens."},
	{ID: authkit.MetricPasswordRehashed, Name: "authkit_password_rehashed_total", Help: "Password hashes upgraded on login."},
	{ID: authkit.MetricPasswordResetRequest, Name: "authkit_password_reset_request_total", Help: "Reset tokens issued."},
	{ID: authkit.MetricPasswordResetRateLimited, Name: "authkit_password_reset_rate_limited_total", Help: "Reset requests rejected by the throttle."},
	{ID: authkit.MetricPasswordResetConfirmSuccess, Name: "authkit_password_reset_confirm_success_total", Help: "Redeemed reset tokens."},
	{ID: authkit.MetricPasswordResetConfirmFailure, Name: "authkit_password_reset_confirm_failure_total", Help: "Failed reset redemptions."},
	{ID: authkit.MetricEmailVerificationRequest, Name: "authkit_email_verification_request_total", Help: "Verification tokens issued."},
	{ID: authkit.MetricEmailVerificationSuccess, Name: "authkit_email_verification_success_total", Help: "Redeemed verification tokens."},
	{ID: authkit.MetricEmailVerificationFailure, Name: "authkit_email_verification_failure_total", Help: "Failed verification redemptions."},
	{ID: authkit.MetricDeliveryFailure, Name: "authkit_delivery_failure_total", Help: "Links the delivery collaborator failed to send."},
	{ID: authkit.MetricAccountCreationSuccess, Name: "authkit_account_creation_success_total", Help: "Registered accounts."},
	{ID: authkit.MetricAccountCreationDuplicate, Name: "authkit_account_creation_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authkit.MetricAccountRoleChanged, Name: "authkit_account_role_changed_total", Help: "Role changes."},
	{ID: authkit.MetricAccountDeleted, Name: "authkit_account_deleted_total", Help: "Deleted accounts."},
	{ID: authkit.MetricAccessDenied, Name: "authkit_access_denied_total", Help: "Role checks that denied a caller."},
	{ID: authkit.MetricPresenceHeartbeat, Name: "authkit_presence_heartbeat_total", Help: "Online heartbeats."},
	{ID: authkit.MetricAuditDropped, Name: "authkit_audit_dropped_total", Help: "Audit events dropped on a full buffer, a canceled request or after shutdown."},
}

var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricAuthenticateLatency, Name: "authkit_authenticate_latency_seconds", Help: "Access token verification latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more bucket for +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters without
// native histograms.
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

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// entry is the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
