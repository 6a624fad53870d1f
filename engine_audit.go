package goAccess

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventAccountLocked          = "account_locked"
	auditEventLoginAttemptsReset     = "login_attempts_reset"
	auditEventAccountCreated         = "account_created"
	auditEventAccountDeleted         = "account_deleted"
	auditEventAccountStatusChange    = "account_status_change"
	auditEventAdminRoleChanged       = "admin_role_changed"
	auditEventUserRoleChanged        = "user_role_changed"
	auditEventPasswordChanged        = "password_changed"
	auditEventAdminCreatorChanged    = "admin_creator_changed"
	auditEventPermissionGranted      = "permission_granted"
	auditEventPermissionRevoked      = "permission_revoked"
	auditEventTwoFactorSecretIssued  = "two_factor_secret_issued"
	auditEventTwoFactorEnabled       = "two_factor_enabled"
	auditEventTwoFactorDisabled      = "two_factor_disabled"
	auditEventTwoFactorFailure       = "two_factor_failure"
	auditEventRecoveryCodesGenerated = "recovery_codes_generated"
	auditEventRecoveryCodeUsed       = "recovery_code_used"
	auditEventRecoveryCodeFailed     = "recovery_code_failed"
	auditEventTenantCreated          = "tenant_created"
	auditEventTenantJoined           = "tenant_joined"
	auditEventTenantInvited          = "tenant_invited"
	auditEventTenantLeft             = "tenant_left"
	auditEventImpersonationStarted   = "impersonation_started"
	auditEventImpersonationStopped   = "impersonation_stopped"
	auditEventImpersonationDenied    = "impersonation_denied"
)

// AuditErrorCode is the stable, non-sensitive error classification attached to
// unsuccessful audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrTwoFactorRequired  AuditErrorCode = "two_factor_required"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrNoSecret           AuditErrorCode = "no_secret_configured"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrSelfImpersonation  AuditErrorCode = "self_impersonation"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrConflict           AuditErrorCode = "conflict"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// auditRecord is the engine-side view of an event before context enrichment.
type auditRecord struct {
	eventType string
	ref       AccountRef
	tenantID  string
	success   bool
	err       error
	changed   []string
	metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp:     e.now().UTC(),
		EventType:     rec.eventType,
		AccountKind:   string(rec.ref.Kind),
		AccountID:     rec.ref.ID,
		TenantID:      rec.tenantID,
		IP:            clientIPFromContext(ctx),
		Success:       rec.success,
		ChangedFields: rec.changed,
		Metadata:      rec.metadata,
	}
	if actor, ok := actorFromContext(ctx); ok {
		event.ActorID = actor.String()
	}
	if code := auditErrorCode(rec.err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrTwoFactorRequired):
		return auditErrTwoFactorRequired
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrNoSecretConfigured):
		return auditErrNoSecret
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrSelfImpersonation):
		return auditErrSelfImpersonation
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrConflict):
		return auditErrConflict
	default:
		return auditErrInternal
	}
}
