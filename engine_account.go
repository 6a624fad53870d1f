package goAccess

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/MrEthical07/goAccess/password"
	"github.com/google/uuid"
)

// NewUser is the input to CreateUser. Zero Role and Status default to user and active.
type NewUser struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	Timezone    string
	Locale      string
	Role        Role
	Status      UserStatus
	Permissions []string
}

// NewAdmin is the input to CreateAdmin. CreatedBy is the creating admin's ID; empty means
// a system bootstrap that skips the management check. A zero Role defaults to moderator.
type NewAdmin struct {
	Email       string
	Password    string
	Name        string
	Role        Role
	Permissions []string
	Inactive    bool
	CreatedBy   string
}

/*
====================================
ACCOUNT CREATION
====================================
*/

// CreateUser hashes the password and stores a new end-user account.
func (e *Engine) CreateUser(ctx context.Context, in NewUser) (Account, error) {
	if in.Role == "" {
		in.Role = RoleUser
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	if !in.Status.Valid() {
		return Account{}, ErrInvalidAccount
	}

	acct, err := e.newAccount(KindUser, in.Email, in.Password, in.Role, in.Permissions)
	if err != nil {
		return Account{}, err
	}
	acct.FirstName = strings.TrimSpace(in.FirstName)
	acct.LastName = strings.TrimSpace(in.LastName)
	acct.Phone = strings.TrimSpace(in.Phone)
	acct.Timezone = in.Timezone
	acct.Locale = in.Locale
	acct.Status = in.Status

	return e.createAccount(ctx, acct)
}

// CreateAdmin describes the createadmin operation and its observable behavior.
//
// When CreatedBy is set the creator must pass AuthorizeAdminManagement for the requested
// role, so only a super_admin creates admins and only admin or moderator roles.
func (e *Engine) CreateAdmin(ctx context.Context, in NewAdmin) (Account, error) {
	if in.Role == "" {
		in.Role = RoleModerator
	}

	acct, err := e.newAccount(KindAdmin, in.Email, in.Password, in.Role, in.Permissions)
	if err != nil {
		return Account{}, err
	}
	acct.Name = strings.TrimSpace(in.Name)
	acct.IsActive = !in.Inactive

	if in.CreatedBy != "" {
		creator, err := e.loadAccount(ctx, AdminRef(in.CreatedBy))
		if err != nil {
			return Account{}, err
		}
		if err := AuthorizeAdminManagement(creator, acct, acct.Role); err != nil {
			return Account{}, err
		}
		acct.CreatedBy = creator.ID
	}

	return e.createAccount(ctx, acct)
}

func (e *Engine) newAccount(kind AccountKind, email, password string, role Role, perms []string) (Account, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Account{}, fmt.Errorf("%w: email", ErrInvalidAccount)
	}
	role, err := ParseRole(kind, string(role))
	if err != nil {
		return Account{}, err
	}
	normalized, err := NormalizePermissions(perms)
	if err != nil {
		return Account{}, err
	}
	hash, err := e.hasher.Hash(password)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}

	now := e.now()
	return Account{
		ID:                uuid.NewString(),
		Kind:              kind,
		Email:             email,
		PasswordHash:      hash,
		Role:              role,
		Permissions:       normalized,
		PasswordChangedAt: &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (e *Engine) createAccount(ctx context.Context, acct Account) (Account, error) {
	created, err := e.store.CreateAccount(ctx, acct)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Account{}, ErrEmailTaken
		}
		return Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAccountCreated,
		ref:       created.Ref(),
		success:   true,
		metadata:  map[string]string{"role": string(created.Role)},
	})
	return created, nil
}

/*
====================================
LOOKUP & QUERY SCOPES
====================================
*/

// GetAccount returns the live account for ref.
func (e *Engine) GetAccount(ctx context.Context, ref AccountRef) (Account, error) {
	return e.loadAccount(ctx, ref)
}

// FindAccountByEmail returns the live account of kind registered under email.
func (e *Engine) FindAccountByEmail(ctx context.Context, kind AccountKind, email string) (Account, error) {
	if !kind.Valid() {
		return Account{}, ErrInvalidAccount
	}
	acct, err := e.store.FindAccountByEmail(ctx, kind, NormalizeEmail(email))
	if err != nil {
		return Account{}, storeErr("find account", err)
	}
	return acct, nil
}

// ListAccounts returns the non-deleted accounts matching q.
func (e *Engine) ListAccounts(ctx context.Context, q AccountQuery) ([]Account, error) {
	if !q.Kind.Valid() {
		return nil, ErrInvalidAccount
	}
	out, err := e.store.ListAccounts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return out, nil
}

// ActiveAdmins selects admins whose IsActive flag is set.
func ActiveAdmins() AccountQuery {
	return AccountQuery{Kind: KindAdmin, ActiveOnly: true}
}

// SuperAdmins selects admins holding the super_admin role.
func SuperAdmins() AccountQuery {
	return AccountQuery{Kind: KindAdmin, Roles: []Role{RoleSuperAdmin}}
}

// RegularAdmins selects admin and moderator accounts.
func RegularAdmins() AccountQuery {
	return AccountQuery{Kind: KindAdmin, Roles: []Role{RoleAdmin, RoleModerator}}
}

// TwoFactorAccounts selects accounts of kind with two-factor enabled.
func TwoFactorAccounts(kind AccountKind) AccountQuery {
	return AccountQuery{Kind: kind, TwoFactorOnly: true}
}

/*
====================================
ADMIN MANAGEMENT
====================================
*/

// loadManagementPair loads actor and target admins and checks that actor may manage the
// target's current role and, when non-empty, the requested role.
func (e *Engine) loadManagementPair(ctx context.Context, actorID, targetID string, requested Role) (Account, Account, error) {
	actor, err := e.loadAccount(ctx, AdminRef(actorID))
	if err != nil {
		return Account{}, Account{}, err
	}
	target, err := e.loadAccount(ctx, AdminRef(targetID))
	if err != nil {
		return Account{}, Account{}, err
	}
	if err := AuthorizeAdminManagement(actor, target, target.Role); err != nil {
		return Account{}, Account{}, err
	}
	if requested != "" {
		if err := AuthorizeAdminManagement(actor, target, requested); err != nil {
			return Account{}, Account{}, err
		}
	}
	return actor, target, nil
}

// ChangeAdminRole moves target to role. Both the target's current role and the new role
// must be ones the actor may manage.
func (e *Engine) ChangeAdminRole(ctx context.Context, actorID, targetID string, role Role) error {
	role, err := ParseRole(KindAdmin, string(role))
	if err != nil {
		return err
	}
	if _, _, err := e.loadManagementPair(ctx, actorID, targetID, role); err != nil {
		return err
	}

	_, changed, err := e.mutateAccount(ctx, AdminRef(targetID), func(acct *Account) ([]string, error) {
		if acct.Role == role {
			return nil, errNoChange
		}
		acct.Role = role
		return []string{"role"}, nil
	})
	if err != nil || changed == nil {
		return err
	}

	e.metricInc(MetricAdminRoleChanged)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAdminRoleChanged,
		ref:       AdminRef(targetID),
		success:   true,
		changed:   changed,
		metadata:  map[string]string{"role": string(role)},
	})
	return nil
}

// SetAdminActive activates or deactivates target.
func (e *Engine) SetAdminActive(ctx context.Context, actorID, targetID string, active bool) error {
	if _, _, err := e.loadManagementPair(ctx, actorID, targetID, ""); err != nil {
		return err
	}

	_, changed, err := e.mutateAccount(ctx, AdminRef(targetID), func(acct *Account) ([]string, error) {
		if acct.IsActive == active {
			return nil, errNoChange
		}
		acct.IsActive = active
		return []string{"is_active"}, nil
	})
	if err != nil || changed == nil {
		return err
	}

	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAccountStatusChange,
		ref:       AdminRef(targetID),
		success:   true,
		changed:   changed,
	})
	return nil
}

// DeleteAdmin soft-deletes target.
func (e *Engine) DeleteAdmin(ctx context.Context, actorID, targetID string) error {
	if _, _, err := e.loadManagementPair(ctx, actorID, targetID, ""); err != nil {
		return err
	}
	return e.softDelete(ctx, AdminRef(targetID))
}

// SetAdminCreator re-parents target under creatorID. An empty creatorID detaches it. The
// write is refused with ErrCreatorCycle when target is creatorID itself or one of its
// ancestors.
func (e *Engine) SetAdminCreator(ctx context.Context, actorID, targetID, creatorID string) error {
	if _, _, err := e.loadManagementPair(ctx, actorID, targetID, ""); err != nil {
		return err
	}
	if creatorID != "" {
		if err := e.checkCreatorChain(ctx, targetID, creatorID); err != nil {
			return err
		}
	}

	_, changed, err := e.mutateAccount(ctx, AdminRef(targetID), func(acct *Account) ([]string, error) {
		if acct.CreatedBy == creatorID {
			return nil, errNoChange
		}
		acct.CreatedBy = creatorID
		return []string{"created_by"}, nil
	})
	if err != nil || changed == nil {
		return err
	}

	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAdminCreatorChanged,
		ref:       AdminRef(targetID),
		success:   true,
		changed:   changed,
	})
	return nil
}

// checkCreatorChain walks up from creatorID and fails if it reaches targetID. A parent
// pointer to a deleted or missing admin ends the chain.
func (e *Engine) checkCreatorChain(ctx context.Context, targetID, creatorID string) error {
	seen := map[string]struct{}{}
	for id := creatorID; id != ""; {
		if id == targetID {
			return ErrCreatorCycle
		}
		if _, ok := seen[id]; ok {
			// pre-existing loop not involving target
			return ErrCreatorCycle
		}
		seen[id] = struct{}{}

		parent, err := e.loadAccount(ctx, AdminRef(id))
		if errors.Is(err, ErrNotFound) {
			if id == creatorID {
				return ErrNotFound
			}
			return nil
		}
		if err != nil {
			return err
		}
		id = parent.CreatedBy
	}
	return nil
}

// CreatedAdmins lists the live admins whose creator is adminID.
func (e *Engine) CreatedAdmins(ctx context.Context, adminID string) ([]Account, error) {
	return e.ListAccounts(ctx, AccountQuery{Kind: KindAdmin, CreatedBy: adminID})
}

// AdminCreator returns the admin that created adminID, or ErrNotFound when it has none
// or the creator was deleted.
func (e *Engine) AdminCreator(ctx context.Context, adminID string) (Account, error) {
	acct, err := e.loadAccount(ctx, AdminRef(adminID))
	if err != nil {
		return Account{}, err
	}
	if acct.CreatedBy == "" {
		return Account{}, ErrNotFound
	}
	return e.loadAccount(ctx, AdminRef(acct.CreatedBy))
}

/*
====================================
USER LIFECYCLE
====================================
*/

// SetUserStatus moves a user to status.
func (e *Engine) SetUserStatus(ctx context.Context, userID string, status UserStatus) error {
	if !status.Valid() {
		return ErrInvalidAccount
	}

	_, changed, err := e.mutateAccount(ctx, UserRef(userID), func(acct *Account) ([]string, error) {
		if acct.Status == status {
			return nil, errNoChange
		}
		acct.Status = status
		return []string{"status"}, nil
	})
	if err != nil || changed == nil {
		return err
	}

	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAccountStatusChange,
		ref:       UserRef(userID),
		success:   true,
		changed:   changed,
		metadata:  map[string]string{"status": string(status)},
	})
	return nil
}

// SetUserRole assigns a global role to a user.
func (e *Engine) SetUserRole(ctx context.Context, userID string, role Role) error {
	role, err := ParseRole(KindUser, string(role))
	if err != nil {
		return err
	}

	_, changed, err := e.mutateAccount(ctx, UserRef(userID), func(acct *Account) ([]string, error) {
		if acct.Role == role {
			return nil, errNoChange
		}
		acct.Role = role
		return []string{"role"}, nil
	})
	if err != nil || changed == nil {
		return err
	}

	e.emitAudit(ctx, auditRecord{
		eventType: auditEventUserRoleChanged,
		ref:       UserRef(userID),
		success:   true,
		changed:   changed,
		metadata:  map[string]string{"role": string(role)},
	})
	return nil
}

// DeleteUser soft-deletes a user. The row is kept but disappears from every lookup.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	return e.softDelete(ctx, UserRef(userID))
}

func (e *Engine) softDelete(ctx context.Context, ref AccountRef) error {
	now := e.now()
	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		acct.DeletedAt = &now
		return []string{"deleted_at"}, nil
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAccountDeleted,
		ref:       ref,
		success:   true,
		changed:   changed,
	})
	return nil
}

// ChangePassword verifies the current password and stores a hash of the new one.
func (e *Engine) ChangePassword(ctx context.Context, ref AccountRef, current, next string) error {
	acct, err := e.loadAccount(ctx, ref)
	if err != nil {
		return err
	}
	ok, err := e.hasher.Verify(current, acct.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	hash, err := e.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}

	now := e.now()
	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		acct.PasswordHash = hash
		acct.PasswordChangedAt = &now
		return []string{"password_hash", "password_changed_at"}, nil
	})
	if err != nil {
		return err
	}

	e.emitAudit(ctx, auditRecord{
		eventType: auditEventPasswordChanged,
		ref:       ref,
		success:   true,
		changed:   changed,
	})
	return nil
}
