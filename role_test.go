package goAccess

import (
	"errors"
	"slices"
	"testing"
)

func admin(id string, role Role) Account {
	return Account{ID: id, Kind: KindAdmin, Role: role, IsActive: true}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		kind    AccountKind
		in      string
		want    Role
		wantErr bool
	}{
		{KindAdmin, "super_admin", RoleSuperAdmin, false},
		{KindAdmin, " Moderator ", RoleModerator, false},
		{KindAdmin, "user", "", true},
		{KindUser, "user", RoleUser, false},
		{KindUser, "moderator", "", true},
		{KindUser, "owner", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.kind, tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRole) {
				t.Fatalf("ParseRole(%s, %q): expected ErrInvalidRole, got %v", tt.kind, tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseRole(%s, %q) = %q, %v", tt.kind, tt.in, got, err)
		}
	}
}

func TestRoleRanking(t *testing.T) {
	if !RoleSuperAdmin.Outranks(RoleAdmin) || !RoleAdmin.Outranks(RoleModerator) {
		t.Fatal("expected super_admin > admin > moderator")
	}
	if RoleModerator.Outranks(RoleUser) || RoleUser.Outranks(RoleModerator) {
		t.Fatal("moderator and user share a tier")
	}
	if Role("ghost").Rank() != 0 {
		t.Fatal("unknown roles rank 0")
	}
}

func TestSuperAdminHoldsEveryPermission(t *testing.T) {
	a := admin("a1", RoleSuperAdmin)
	for _, p := range []string{"users.edit", "billing.refund", "anything.at.all"} {
		if !HasPermission(a, p) {
			t.Fatalf("super_admin missing %q", p)
		}
	}

	m := admin("m1", RoleModerator)
	m.Permissions = []string{"users.view"}
	if !HasPermission(m, "USERS.VIEW") {
		t.Fatal("explicit grant not matched case-insensitively")
	}
	if HasPermission(m, "users.edit") {
		t.Fatal("moderator must not hold ungranted permission")
	}
}

func TestManageableRoles(t *testing.T) {
	tests := []struct {
		role Role
		want []Role
	}{
		{RoleSuperAdmin, []Role{RoleAdmin, RoleModerator}},
		{RoleAdmin, []Role{RoleModerator}},
		{RoleModerator, nil},
	}
	for _, tt := range tests {
		got := GetManageableRoles(admin("x", tt.role))
		if !slices.Equal(got, tt.want) {
			t.Fatalf("GetManageableRoles(%s) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestAuthorizeAdminManagement(t *testing.T) {
	super := admin("s1", RoleSuperAdmin)
	other := admin("s2", RoleSuperAdmin)
	adm := admin("a1", RoleAdmin)
	mod := admin("m1", RoleModerator)

	tests := []struct {
		name   string
		actor  Account
		target Account
		role   Role
		ok     bool
	}{
		{"super manages admin", super, adm, RoleAdmin, true},
		{"super promotes moderator to admin", super, mod, RoleAdmin, true},
		{"super cannot assign super_admin", super, mod, RoleSuperAdmin, false},
		{"super cannot manage self", super, super, RoleAdmin, false},
		{"super cannot manage another super", super, other, RoleSuperAdmin, false},
		{"admin cannot manage moderator", adm, mod, RoleModerator, false},
		{"moderator cannot manage", mod, adm, RoleAdmin, false},
	}
	for _, tt := range tests {
		err := AuthorizeAdminManagement(tt.actor, tt.target, tt.role)
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("%s: expected ErrPermissionDenied, got %v", tt.name, err)
		}
	}

	inactive := super
	inactive.IsActive = false
	if err := AuthorizeAdminManagement(inactive, adm, RoleAdmin); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("inactive actor: %v", err)
	}
}

func TestImpersonationPredicates(t *testing.T) {
	if !CanImpersonate(admin("s", RoleSuperAdmin)) || CanImpersonate(admin("a", RoleAdmin)) {
		t.Fatal("only super_admin may impersonate")
	}
	if CanBeImpersonated(admin("s", RoleSuperAdmin)) {
		t.Fatal("super_admin must be immune")
	}
	if !CanBeImpersonated(Account{Kind: KindUser, Role: RoleUser}) {
		t.Fatal("users are impersonable")
	}
}

func TestAdminCapabilities(t *testing.T) {
	if !CanManageTenants(admin("a", RoleAdmin)) || CanManageTenants(admin("m", RoleModerator)) {
		t.Fatal("tenant management is admin and above")
	}
	if CanAccessAnalytics(admin("m", RoleModerator)) || !CanAccessAnalytics(admin("a", RoleAdmin)) {
		t.Fatal("analytics excludes moderators")
	}
	if !CanManageAdmins(admin("s", RoleSuperAdmin)) || CanManageAdmins(admin("a", RoleAdmin)) {
		t.Fatal("only super_admin manages admins")
	}
}

func TestNormalizePermissions(t *testing.T) {
	got, err := NormalizePermissions([]string{"Users.Edit", "users.view", "users.edit"})
	if err != nil {
		t.Fatalf("NormalizePermissions: %v", err)
	}
	if !slices.Equal(got, []string{"users.edit", "users.view"}) {
		t.Fatalf("got %v", got)
	}
	for _, bad := range []string{"", "  ", "has space", ".leading"} {
		if _, err := NormalizePermission(bad); !errors.Is(err, ErrInvalidPermission) {
			t.Fatalf("NormalizePermission(%q): %v", bad, err)
		}
	}
}

func TestAccountDisplayHelpers(t *testing.T) {
	a := Account{Kind: KindAdmin, Name: "grace"}
	if a.Initials() != "GR" || a.FullName() != "grace" {
		t.Fatalf("admin: %q %q", a.Initials(), a.FullName())
	}
	u := Account{Kind: KindUser, FirstName: "ada", LastName: "lovelace"}
	if u.Initials() != "AL" || u.FullName() != "ada lovelace" {
		t.Fatalf("user: %q %q", u.Initials(), u.FullName())
	}
}
