package goAccess

import (
	"context"
	"slices"
)

// GrantPermission adds token to the account's explicit permissions. Granting a
// permission the account already holds is a no-op and writes nothing.
//
// GrantPermission returns ErrInvalidPermission for malformed tokens, ErrNotFound for
// unknown accounts and ErrConflict when concurrent writers exhaust the retry budget.
func (e *Engine) GrantPermission(ctx context.Context, ref AccountRef, token string) error {
	perm, err := NormalizePermission(token)
	if err != nil {
		return err
	}

	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		if slices.Contains(acct.Permissions, perm) {
			return nil, errNoChange
		}
		acct.Permissions = append(acct.Permissions, perm)
		slices.Sort(acct.Permissions)
		return []string{"permissions"}, nil
	})
	if err != nil {
		return err
	}
	if changed == nil {
		return nil
	}

	e.metricInc(MetricPermissionGranted)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventPermissionGranted,
		ref:       ref,
		success:   true,
		changed:   changed,
		metadata:  map[string]string{"permission": perm},
	})
	return nil
}

// RevokePermission removes token from the account's explicit permissions. Revoking a
// permission that is not held is a no-op.
func (e *Engine) RevokePermission(ctx context.Context, ref AccountRef, token string) error {
	perm, err := NormalizePermission(token)
	if err != nil {
		return err
	}

	_, changed, err := e.mutateAccount(ctx, ref, func(acct *Account) ([]string, error) {
		idx := slices.Index(acct.Permissions, perm)
		if idx < 0 {
			return nil, errNoChange
		}
		acct.Permissions = slices.Delete(acct.Permissions, idx, idx+1)
		return []string{"permissions"}, nil
	})
	if err != nil {
		return err
	}
	if changed == nil {
		return nil
	}

	e.metricInc(MetricPermissionRevoked)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventPermissionRevoked,
		ref:       ref,
		success:   true,
		changed:   changed,
		metadata:  map[string]string{"permission": perm},
	})
	return nil
}

// HasPermission loads the account and applies [HasPermission]. super_admin holds every
// token unconditionally; any other inactive account holds none.
func (e *Engine) HasPermission(ctx context.Context, ref AccountRef, token string) (bool, error) {
	acct, err := e.loadAccount(ctx, ref)
	if err != nil {
		return false, err
	}
	if IsSuperAdmin(acct) {
		return true, nil
	}
	if !acct.Active() {
		return false, nil
	}
	return HasPermission(acct, token), nil
}

// ManageableRoles returns the admin roles the given admin may assign.
func (e *Engine) ManageableRoles(ctx context.Context, adminID string) ([]Role, error) {
	acct, err := e.loadAccount(ctx, AdminRef(adminID))
	if err != nil {
		return nil, err
	}
	if !acct.Active() {
		return nil, nil
	}
	return GetManageableRoles(acct), nil
}
