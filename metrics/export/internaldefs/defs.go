package internaldefs

import (
	goAccess "github.com/MrEthical07/goAccess"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goAccess.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goAccess.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dispatcher overflow.
const AuditDroppedName = "goaccess_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: goAccess.MetricLoginSuccess, Name: "goaccess_login_success_total", Help: "Successful authentications."},
	{ID: goAccess.MetricLoginFailure, Name: "goaccess_login_failure_total", Help: "Failed logins recorded against an account."},
	{ID: goAccess.MetricLoginLockedOut, Name: "goaccess_login_locked_out_total", Help: "Logins rejected while the account was locked."},
	{ID: goAccess.MetricAccountLocked, Name: "goaccess_account_locked_total", Help: "Accounts transitioned into the locked state."},
	{ID: goAccess.MetricLoginAttemptsReset, Name: "goaccess_login_attempts_reset_total", Help: "Explicit lockout resets."},
	{ID: goAccess.MetricTwoFactorRequired, Name: "goaccess_two_factor_required_total", Help: "Logins that stopped for a missing second factor."},
	{ID: goAccess.MetricTwoFactorSuccess, Name: "goaccess_two_factor_success_total", Help: "Successful TOTP verifications."},
	{ID: goAccess.MetricTwoFactorFailure, Name: "goaccess_two_factor_failure_total", Help: "Failed TOTP verifications."},
	{ID: goAccess.MetricTwoFactorEnabled, Name: "goaccess_two_factor_enabled_total", Help: "Two-factor enrolments confirmed."},
	{ID: goAccess.MetricTwoFactorDisabled, Name: "goaccess_two_factor_disabled_total", Help: "Two-factor disable operations."},
	{ID: goAccess.MetricRecoveryCodeUsed, Name: "goaccess_recovery_code_used_total", Help: "Recovery codes consumed."},
	{ID: goAccess.MetricRecoveryCodeFailed, Name: "goaccess_recovery_code_failed_total", Help: "Recovery code attempts that matched nothing."},
	{ID: goAccess.MetricRecoveryCodesRegenerated, Name: "goaccess_recovery_codes_regenerated_total", Help: "Recovery code set regenerations."},
	{ID: goAccess.MetricPermissionGranted, Name: "goaccess_permission_granted_total", Help: "Direct permission grants that changed an account."},
	{ID: goAccess.MetricPermissionRevoked, Name: "goaccess_permission_revoked_total", Help: "Direct permission revocations that changed an account."},
	{ID: goAccess.MetricAccountCreated, Name: "goaccess_account_created_total", Help: "Accounts created."},
	{ID: goAccess.MetricAccountDeleted, Name: "goaccess_account_deleted_total", Help: "Accounts soft-deleted."},
	{ID: goAccess.MetricAdminRoleChanged, Name: "goaccess_admin_role_changed_total", Help: "Admin role changes."},
	{ID: goAccess.MetricTenantJoined, Name: "goaccess_tenant_joined_total", Help: "Tenant memberships created or accepted."},
	{ID: goAccess.MetricTenantLeft, Name: "goaccess_tenant_left_total", Help: "Tenant memberships removed."},
	{ID: goAccess.MetricImpersonationStarted, Name: "goaccess_impersonation_started_total", Help: "Impersonation sessions issued."},
	{ID: goAccess.MetricImpersonationDenied, Name: "goaccess_impersonation_denied_total", Help: "Impersonation requests refused by the gate."},
	{ID: goAccess.MetricStoreConflict, Name: "goaccess_store_conflict_total", Help: "Optimistic save conflicts, including retried ones."},
}

var HistogramDefs = []HistogramDef{
	{ID: goAccess.MetricAuthenticateLatency, Name: "goaccess_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// HistogramBounds are the finite bucket upper bounds in seconds; the engine's last bucket
// is the implicit +Inf.
var HistogramBounds = goAccess.HistogramUpperBounds()

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
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
