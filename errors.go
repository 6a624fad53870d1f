package goAccess

import "errors"

var (
	// ErrNotFound is returned when an account, tenant or membership does not exist
	// (soft-deleted rows count as missing).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyMember is returned by JoinTenant and InviteToTenant when the user already
	// has a membership row for the tenant.
	ErrAlreadyMember = errors.New("already a member of tenant")
	// ErrNoSecretConfigured is returned by two-factor operations before a secret exists.
	ErrNoSecretConfigured = errors.New("two-factor secret not configured")
	// ErrInvalidCode is returned when a TOTP or recovery code does not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrConflict is returned when a concurrent writer advanced the record first and the
	// retry budget is exhausted.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrInvalidRole is returned when a role outside the account kind's role set is written.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidPermission is returned when a permission token is empty or malformed.
	ErrInvalidPermission = errors.New("invalid permission")

	// ErrInvalidCredentials is returned by Authenticate for unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned by Authenticate while LockedUntil is in the future.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned for suspended, inactive or deactivated accounts.
	ErrAccountInactive = errors.New("account inactive")
	// ErrTwoFactorRequired is returned by Authenticate when 2FA is enabled and no code was given.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrPermissionDenied is returned when the acting principal fails an authorization check.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrSelfImpersonation is returned when an actor targets its own account.
	ErrSelfImpersonation = errors.New("cannot impersonate self")
	// ErrCreatorCycle is returned when a creator assignment would close a loop in the admin
	// ownership forest.
	ErrCreatorCycle = errors.New("admin creator cycle")
	// ErrEmailTaken is returned when an account with the same email exists for the kind.
	ErrEmailTaken = errors.New("email already registered")
	// ErrSlugTaken is returned when a live tenant already uses the slug.
	ErrSlugTaken = errors.New("tenant slug already registered")
	// ErrDomainTaken is returned when a live tenant already uses the domain.
	ErrDomainTaken = errors.New("tenant domain already registered")
	// ErrInvalidAccount is returned for malformed creation input.
	ErrInvalidAccount = errors.New("invalid account")
	// ErrInvalidTenant is returned for malformed tenant input.
	ErrInvalidTenant = errors.New("invalid tenant")
	// ErrEngineNotReady is returned when a required collaborator was not configured.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidConfig is returned by Build when configuration validation fails.
	ErrInvalidConfig = errors.New("invalid config")
)
