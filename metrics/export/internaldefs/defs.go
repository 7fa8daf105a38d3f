// Package internaldefs maps engine metric IDs to stable wire names shared
// by the exporters. Names follow the prometheus naming conventions so the
// same definitions serve both the OTel and the text-exposition exporter.
package internaldefs

import (
	careauth "github.com/clinicore/careauth"
)

type CounterDef struct {
	ID   careauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   careauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: careauth.MetricTokenIssueSuccess, Name: "careauth_token_issue_success_total", Help: "Issued token pairs."},
	{ID: careauth.MetricTokenIssueFailure, Name: "careauth_token_issue_failure_total", Help: "Failed token pair issuances."},
	{ID: careauth.MetricTokenValidateSuccess, Name: "careauth_token_validate_success_total", Help: "Successful access token validations."},
	{ID: careauth.MetricTokenValidateFailure, Name: "careauth_token_validate_failure_total", Help: "Rejected access token validations."},
	{ID: careauth.MetricTokenRenewSuccess, Name: "careauth_token_renew_success_total", Help: "Successful refresh renewals."},
	{ID: careauth.MetricTokenRenewFailure, Name: "careauth_token_renew_failure_total", Help: "Failed refresh renewals."},
	{ID: careauth.MetricLoginSuccess, Name: "careauth_login_success_total", Help: "Successful login attempts."},
	{ID: careauth.MetricLoginFailure, Name: "careauth_login_failure_total", Help: "Failed login attempts."},
	{ID: careauth.MetricRegisterSuccess, Name: "careauth_register_success_total", Help: "Successful registrations."},
	{ID: careauth.MetricRegisterDuplicate, Name: "careauth_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: careauth.MetricVerificationRequest, Name: "careauth_verification_request_total", Help: "Email verification code requests."},
	{ID: careauth.MetricVerificationSuccess, Name: "careauth_verification_success_total", Help: "Successful email verifications."},
	{ID: careauth.MetricVerificationFailure, Name: "careauth_verification_failure_total", Help: "Failed email verification attempts."},
	{ID: careauth.MetricVerificationLocked, Name: "careauth_verification_locked_total", Help: "Code requests denied by challenge lockout."},
	{ID: careauth.MetricEmailChangeRequest, Name: "careauth_email_change_request_total", Help: "Email change code requests."},
	{ID: careauth.MetricEmailChangeSuccess, Name: "careauth_email_change_success_total", Help: "Confirmed email changes."},
	{ID: careauth.MetricResetRequest, Name: "careauth_reset_request_total", Help: "Password reset code requests."},
	{ID: careauth.MetricResetConfirmSuccess, Name: "careauth_reset_confirm_success_total", Help: "Successful reset code confirmations."},
	{ID: careauth.MetricResetConfirmFailure, Name: "careauth_reset_confirm_failure_total", Help: "Failed reset code confirmations."},
	{ID: careauth.MetricResetCompleted, Name: "careauth_reset_completed_total", Help: "Completed password resets."},
	{ID: careauth.MetricPasswordChangeSuccess, Name: "careauth_password_change_success_total", Help: "Successful password changes."},
	{ID: careauth.MetricPasswordChangeInvalidOld, Name: "careauth_password_change_invalid_old_total", Help: "Password change attempts with wrong current password."},
	{ID: careauth.MetricAccountDeactivated, Name: "careauth_account_deactivated_total", Help: "Account deactivations."},
	{ID: careauth.MetricAccountReactivated, Name: "careauth_account_reactivated_total", Help: "Account reactivations."},
}

var HistogramDefs = []HistogramDef{
	{ID: careauth.MetricValidateLatency, Name: "careauth_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the upper bounds of the engine's fixed buckets, in
// seconds, index-aligned with the snapshot slices.
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

// HistogramBoundSuffix holds metric-name-safe spellings of HistogramBounds.
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
