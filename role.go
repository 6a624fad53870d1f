package goAccess

import (
	"slices"
	"strings"
)

// Role is a single-valued account role drawn from a fixed, closed set.
// Adding a role is a code change, never data.
type Role string

const (
	// RoleSuperAdmin is the top role. It holds every permission implicitly.
	RoleSuperAdmin Role = "super_admin"
	// RoleAdmin is the second tier for both account kinds.
	RoleAdmin Role = "admin"
	// RoleModerator is the lowest admin-kind role.
	RoleModerator Role = "moderator"
	// RoleUser is the lowest user-kind role.
	RoleUser Role = "user"
)

// roleRank is the total order used for comparisons; moderator and user share a tier.
var roleRank = map[Role]int{
	RoleSuperAdmin: 3,
	RoleAdmin:      2,
	RoleModerator:  1,
	RoleUser:       1,
}

var kindRoles = map[AccountKind][]Role{
	KindAdmin: {RoleSuperAdmin, RoleAdmin, RoleModerator},
	KindUser:  {RoleSuperAdmin, RoleAdmin, RoleUser},
}

var manageableRoles = map[Role][]Role{
	RoleSuperAdmin: {RoleAdmin, RoleModerator},
	RoleAdmin:      {RoleModerator},
}

// Rank returns the role's position in the hierarchy; unknown roles rank 0.
func (r Role) Rank() int {
	return roleRank[r]
}

// Outranks reports whether r sits strictly above other.
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

// ValidFor reports whether r belongs to the role set of kind.
func (r Role) ValidFor(kind AccountKind) bool {
	return slices.Contains(kindRoles[kind], r)
}

// RolesFor returns a copy of the role set for kind, highest first.
func RolesFor(kind AccountKind) []Role {
	return slices.Clone(kindRoles[kind])
}

// ParseRole normalizes s and validates it against kind.
func ParseRole(kind AccountKind, s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.ValidFor(kind) {
		return "", ErrInvalidRole
	}
	return r, nil
}

// IsSuperAdmin reports whether the account holds the top role.
func IsSuperAdmin(a Account) bool { return a.Role == RoleSuperAdmin }

// IsAdmin reports whether the account holds exactly the admin role.
func IsAdmin(a Account) bool { return a.Role == RoleAdmin }

// IsModerator reports whether the account holds the moderator role.
func IsModerator(a Account) bool { return a.Role == RoleModerator }

// HasPermission is unconditionally true for super_admin; otherwise token must be an
// explicit grant on the account.
func HasPermission(a Account, token string) bool {
	if IsSuperAdmin(a) {
		return true
	}
	t, err := NormalizePermission(token)
	if err != nil {
		return false
	}
	return slices.Contains(a.Permissions, t)
}

// CanManageAdmins reports whether the admin may manage other admins at all.
func CanManageAdmins(a Account) bool {
	return IsSuperAdmin(a)
}

// CanManageTenants reports whether the admin may manage tenants.
func CanManageTenants(a Account) bool {
	return a.Role == RoleSuperAdmin || a.Role == RoleAdmin
}

// CanAccessAnalytics reports whether the admin may read analytics.
func CanAccessAnalytics(a Account) bool {
	return a.Active() && !IsModerator(a)
}

// CanManageAdmin reports whether actor may manage target. Nobody manages themselves and
// only super_admin manages anyone.
func CanManageAdmin(actor, target Account) bool {
	if actor.ID == target.ID {
		return false
	}
	return IsSuperAdmin(actor)
}

// GetManageableRoles returns the roles actor may assign.
func GetManageableRoles(a Account) []Role {
	return slices.Clone(manageableRoles[a.Role])
}

// AuthorizeAdminManagement is the authoritative check for any admin management action:
// CanManageAdmin must pass and role must be one actor may assign. role is the target's
// current role for deactivation/deletion, or the requested role for role changes and
// creation.
func AuthorizeAdminManagement(actor, target Account, role Role) error {
	if actor.Kind != KindAdmin || !actor.Active() {
		return ErrPermissionDenied
	}
	if !CanManageAdmin(actor, target) {
		return ErrPermissionDenied
	}
	if !slices.Contains(manageableRoles[actor.Role], role) {
		return ErrPermissionDenied
	}
	return nil
}

// CanImpersonate reports whether actor holds the top role.
func CanImpersonate(actor Account) bool {
	return IsSuperAdmin(actor)
}

// CanBeImpersonated reports whether target may be impersonated; top-role accounts are immune.
func CanBeImpersonated(target Account) bool {
	return !IsSuperAdmin(target)
}
