package goAccess

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"
)

// AccountKind distinguishes the two account tables.
type AccountKind string

const (
	// KindAdmin identifies platform administrator accounts.
	KindAdmin AccountKind = "admin"
	// KindUser identifies end-user accounts.
	KindUser AccountKind = "user"
)

// Valid reports whether k is a known kind.
func (k AccountKind) Valid() bool {
	return k == KindAdmin || k == KindUser
}

// AccountRef addresses one account row.
type AccountRef struct {
	Kind AccountKind
	ID   string
}

// AdminRef returns a reference to an admin account.
func AdminRef(id string) AccountRef { return AccountRef{Kind: KindAdmin, ID: id} }

// UserRef returns a reference to a user account.
func UserRef(id string) AccountRef { return AccountRef{Kind: KindUser, ID: id} }

func (r AccountRef) String() string { return string(r.Kind) + ":" + r.ID }

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
	StatusInactive  UserStatus = "inactive"
	StatusTrial     UserStatus = "trial"
)

// Valid reports whether s is a known user status.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusInactive, StatusTrial:
		return true
	}
	return false
}

// Account is the shared record shape for admins and users. Kind-specific fields are
// zero for the other kind.
type Account struct {
	ID           string
	Kind         AccountKind
	Email        string
	PasswordHash string
	Avatar       string

	// Admin lifecycle flag.
	IsActive bool
	// User lifecycle state.
	Status UserStatus

	Name      string
	FirstName string
	LastName  string
	Phone     string
	Timezone  string
	Locale    string

	Role        Role
	Permissions []string

	TwoFactorEnabled       bool
	TwoFactorSecret        []byte
	TwoFactorRecoveryCodes []byte

	LoginAttempts int
	LockedUntil   *time.Time
	LastLoginAt   *time.Time
	LastLoginIP   string

	// CreatedBy is a weak parent pointer to the creating admin.
	CreatedBy string

	EmailVerifiedAt   *time.Time
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time

	// Version is the optimistic concurrency token advanced on every save.
	Version uint64
}

// Ref returns the account's reference.
func (a Account) Ref() AccountRef {
	return AccountRef{Kind: a.Kind, ID: a.ID}
}

// Active reports the lifecycle flag appropriate to the kind.
func (a Account) Active() bool {
	if a.DeletedAt != nil {
		return false
	}
	if a.Kind == KindAdmin {
		return a.IsActive
	}
	return a.Status == StatusActive
}

// Deleted reports whether the account was soft-deleted.
func (a Account) Deleted() bool {
	return a.DeletedAt != nil
}

// IsLocked reports whether LockedUntil is strictly after now. A past LockedUntil reads
// as unlocked without any write.
func (a Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// HasTwoFactorEnabled reports whether 2FA is on and a secret is stored.
func (a Account) HasTwoFactorEnabled() bool {
	return a.TwoFactorEnabled && len(a.TwoFactorSecret) > 0
}

// FullName joins first and last name for users and returns Name for admins.
func (a Account) FullName() string {
	if a.Kind == KindAdmin {
		return a.Name
	}
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Initials returns the upper-cased display initials: the first two characters of an
// admin's name, or the first letter of a user's first and last names.
func (a Account) Initials() string {
	if a.Kind == KindAdmin {
		r := []rune(a.Name)
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	}
	return strings.ToUpper(firstRune(a.FirstName) + firstRune(a.LastName))
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// Clone returns a deep copy safe to mutate.
func (a Account) Clone() Account {
	out := a
	out.Permissions = slices.Clone(a.Permissions)
	out.TwoFactorSecret = slices.Clone(a.TwoFactorSecret)
	out.TwoFactorRecoveryCodes = slices.Clone(a.TwoFactorRecoveryCodes)
	out.LockedUntil = cloneTime(a.LockedUntil)
	out.LastLoginAt = cloneTime(a.LastLoginAt)
	out.EmailVerifiedAt = cloneTime(a.EmailVerifiedAt)
	out.PasswordChangedAt = cloneTime(a.PasswordChangedAt)
	out.DeletedAt = cloneTime(a.DeletedAt)
	return out
}

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantTrial     TenantStatus = "trial"
	TenantActive    TenantStatus = "active"
	TenantInactive  TenantStatus = "inactive"
	TenantSuspended TenantStatus = "suspended"
)

// Valid reports whether s is a known tenant status.
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantTrial, TenantActive, TenantInactive, TenantSuspended:
		return true
	}
	return false
}

// Tenant is one customer organization.
type Tenant struct {
	ID     string
	Name   string
	Slug   string
	Domain string
	Email  string
	Phone  string

	Status                TenantStatus
	SubscriptionPlan      string
	TrialEndsAt           *time.Time
	SubscriptionExpiresAt *time.Time

	UserLimit    int
	StorageLimit int
	Features     []string
	Settings     map[string]string

	OwnerID    string
	OwnerEmail string
	OwnerName  string

	SetupCompletedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// HasFeature reports whether flag is enabled for the tenant.
func (t Tenant) HasFeature(flag string) bool {
	return slices.Contains(t.Features, flag)
}

// OnTrial reports whether the tenant is in trial status and the trial has not ended.
func (t Tenant) OnTrial(now time.Time) bool {
	if t.Status != TenantTrial {
		return false
	}
	return t.TrialEndsAt == nil || t.TrialEndsAt.After(now)
}

// SubscriptionActive reports whether the tenant is active and its subscription has not
// expired. A nil expiry means open-ended.
func (t Tenant) SubscriptionActive(now time.Time) bool {
	if t.Status != TenantActive || t.DeletedAt != nil {
		return false
	}
	return t.SubscriptionExpiresAt == nil || t.SubscriptionExpiresAt.After(now)
}

// Clone returns a deep copy safe to mutate.
func (t Tenant) Clone() Tenant {
	out := t
	out.Features = slices.Clone(t.Features)
	if t.Settings != nil {
		out.Settings = make(map[string]string, len(t.Settings))
		for k, v := range t.Settings {
			out.Settings[k] = v
		}
	}
	out.TrialEndsAt = cloneTime(t.TrialEndsAt)
	out.SubscriptionExpiresAt = cloneTime(t.SubscriptionExpiresAt)
	out.SetupCompletedAt = cloneTime(t.SetupCompletedAt)
	out.DeletedAt = cloneTime(t.DeletedAt)
	return out
}

// Membership links a user to a tenant. Role and Permissions are tenant-scoped and
// independent of the user's global role.
type Membership struct {
	UserID      string
	TenantID    string
	Role        string
	Permissions []string
	InvitedAt   *time.Time
	JoinedAt    *time.Time
	CreatedAt   time.Time
}

// Joined reports whether the membership is active (the user accepted or joined directly).
func (m Membership) Joined() bool {
	return m.JoinedAt != nil
}

// Clone returns a deep copy safe to mutate.
func (m Membership) Clone() Membership {
	out := m
	out.Permissions = slices.Clone(m.Permissions)
	out.InvitedAt = cloneTime(m.InvitedAt)
	out.JoinedAt = cloneTime(m.JoinedAt)
	return out
}

// AccountQuery filters ListAccounts. Zero values mean "no filter"; soft-deleted rows are
// always excluded.
type AccountQuery struct {
	Kind          AccountKind
	Roles         []Role
	ActiveOnly    bool
	TwoFactorOnly bool
	CreatedBy     string
}

// Matches applies the query to one account; backends without native filtering use it.
func (q AccountQuery) Matches(a Account) bool {
	if a.Deleted() || a.Kind != q.Kind {
		return false
	}
	if len(q.Roles) > 0 && !slices.Contains(q.Roles, a.Role) {
		return false
	}
	if q.ActiveOnly && !a.Active() {
		return false
	}
	if q.TwoFactorOnly && !a.TwoFactorEnabled {
		return false
	}
	if q.CreatedBy != "" && a.CreatedBy != q.CreatedBy {
		return false
	}
	return true
}

// AccountStore persists accounts. SaveAccount must only succeed when the stored Version
// equals acct.Version, must advance Version by one, and must return ErrConflict otherwise.
type AccountStore interface {
	LoadAccount(ctx context.Context, ref AccountRef) (Account, error)
	FindAccountByEmail(ctx context.Context, kind AccountKind, email string) (Account, error)
	CreateAccount(ctx context.Context, acct Account) (Account, error)
	SaveAccount(ctx context.Context, acct Account) (Account, error)
	ListAccounts(ctx context.Context, q AccountQuery) ([]Account, error)
}

// TenantStore persists tenants.
type TenantStore interface {
	LoadTenant(ctx context.Context, id string) (Tenant, error)
	FindTenantBySlug(ctx context.Context, slug string) (Tenant, error)
	CreateTenant(ctx context.Context, t Tenant) (Tenant, error)
}

// MembershipStore persists user/tenant memberships. InsertMembership must be an atomic
// insert-if-absent returning ErrAlreadyMember on conflict. DeleteMembership reports
// whether a row was removed.
type MembershipStore interface {
	GetMembership(ctx context.Context, userID, tenantID string) (Membership, error)
	ListMemberships(ctx context.Context, userID string) ([]Membership, error)
	InsertMembership(ctx context.Context, m Membership) error
	UpdateMembership(ctx context.Context, m Membership) error
	DeleteMembership(ctx context.Context, userID, tenantID string) (bool, error)
}

// Store is the full credential store.
type Store interface {
	AccountStore
	TenantStore
	MembershipStore
}

// Encrypter protects two-factor material at rest. Key material is owned by the
// implementation, never by the engine.
type Encrypter interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// ImpersonationClaims describes an active impersonation session.
type ImpersonationClaims struct {
	Actor     AccountRef
	Target    AccountRef
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Impersonator performs the session swap once the gate has approved it.
type Impersonator interface {
	Begin(ctx context.Context, actor, target AccountRef) (string, error)
	Restore(ctx context.Context, token string) (ImpersonationClaims, error)
}

var permissionToken = regexp.MustCompile(`^[a-z0-9][a-z0-9_.:-]*$`)

const maxPermissionLength = 128

// NormalizePermission lower-cases and validates a capability token.
func NormalizePermission(token string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" || len(t) > maxPermissionLength || !permissionToken.MatchString(t) {
		return "", ErrInvalidPermission
	}
	return t, nil
}

// NormalizePermissions validates tokens and returns a sorted, de-duplicated set.
func NormalizePermissions(tokens []string) ([]string, error) {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		t, err := NormalizePermission(token)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// NormalizeEmail lower-cases and trims an email for uniqueness comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
