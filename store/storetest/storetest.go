// Package storetest is the conformance suite every goAccess.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup belongs on t.
type Factory func(t *testing.T) goAccess.Store

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("AccountLifecycle", func(t *testing.T) { testAccountLifecycle(t, newStore(t)) })
	t.Run("VersionConflict", func(t *testing.T) { testVersionConflict(t, newStore(t)) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrentSaves(t, newStore(t)) })
	t.Run("EmailUniqueness", func(t *testing.T) { testEmailUniqueness(t, newStore(t)) })
	t.Run("ListAccounts", func(t *testing.T) { testListAccounts(t, newStore(t)) })
	t.Run("Tenants", func(t *testing.T) { testTenants(t, newStore(t)) })
	t.Run("DeletedTenantReleasesSlug", func(t *testing.T) { testDeletedTenantReleasesSlug(t, newStore(t)) })
	t.Run("Memberships", func(t *testing.T) { testMemberships(t, newStore(t)) })
	t.Run("ConcurrentMembershipInsert", func(t *testing.T) { testConcurrentMembershipInsert(t, newStore(t)) })
}

// Admin returns a minimal valid admin record.
func Admin(email string, role goAccess.Role) goAccess.Account {
	return goAccess.Account{
		ID:           uuid.NewString(),
		Kind:         goAccess.KindAdmin,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		Name:         "Admin " + email,
		IsActive:     true,
		Role:         role,
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
}

// User returns a minimal valid user record.
func User(email string) goAccess.Account {
	return goAccess.Account{
		ID:           uuid.NewString(),
		Kind:         goAccess.KindUser,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		FirstName:    "Jane",
		LastName:     "Doe",
		Status:       goAccess.StatusActive,
		Role:         goAccess.RoleUser,
		Timezone:     "UTC",
		Locale:       "en",
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
}

// Tenant returns a minimal valid tenant record.
func Tenant(slug string) goAccess.Tenant {
	return goAccess.Tenant{
		ID:               uuid.NewString(),
		Name:             "Tenant " + slug,
		Slug:             slug,
		Email:            slug + "@example.com",
		Status:           goAccess.TenantTrial,
		SubscriptionPlan: "trial",
		UserLimit:        5,
		StorageLimit:     1024,
		Features:         []string{"reports"},
		Settings:         map[string]string{"theme": "dark"},
		CreatedAt:        epoch,
		UpdatedAt:        epoch,
	}
}

func testAccountLifecycle(t *testing.T, s goAccess.Store) {
	ctx := context.Background()

	acct := Admin("Root@Example.com", goAccess.RoleAdmin)
	acct.Permissions = []string{"billing.read", "users.write"}
	created, err := s.CreateAccount(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.Version)
	assert.Equal(t, "root@example.com", created.Email)

	loaded, err := s.LoadAccount(ctx, acct.Ref())
	require.NoError(t, err)
	assert.Equal(t, created.Email, loaded.Email)
	assert.Equal(t, []string{"billing.read", "users.write"}, loaded.Permissions)
	assert.True(t, loaded.IsActive)

	byEmail, err := s.FindAccountByEmail(ctx, goAccess.KindAdmin, "ROOT@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, byEmail.ID)

	_, err = s.FindAccountByEmail(ctx, goAccess.KindUser, "root@example.com")
	assert.ErrorIs(t, err, goAccess.ErrNotFound)

	locked := epoch.Add(30 * time.Minute)
	loaded.LoginAttempts = 5
	loaded.LockedUntil = &locked
	loaded.TwoFactorSecret = []byte{1, 2, 3}
	loaded.TwoFactorRecoveryCodes = []byte{4, 5, 6}
	loaded.TwoFactorEnabled = true
	saved, err := s.SaveAccount(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), saved.Version)

	reloaded, err := s.LoadAccount(ctx, acct.Ref())
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.LoginAttempts)
	require.NotNil(t, reloaded.LockedUntil)
	assert.True(t, reloaded.LockedUntil.Equal(locked))
	assert.Equal(t, []byte{1, 2, 3}, reloaded.TwoFactorSecret)
	assert.Equal(t, []byte{4, 5, 6}, reloaded.TwoFactorRecoveryCodes)
	assert.True(t, reloaded.TwoFactorEnabled)

	deleted := epoch.Add(time.Hour)
	reloaded.DeletedAt = &deleted
	_, err = s.SaveAccount(ctx, reloaded)
	require.NoError(t, err)

	_, err = s.LoadAccount(ctx, acct.Ref())
	assert.ErrorIs(t, err, goAccess.ErrNotFound)
	_, err = s.FindAccountByEmail(ctx, goAccess.KindAdmin, "root@example.com")
	assert.ErrorIs(t, err, goAccess.ErrNotFound)

	_, err = s.LoadAccount(ctx, goAccess.AdminRef(uuid.NewString()))
	assert.ErrorIs(t, err, goAccess.ErrNotFound)
}

func testVersionConflict(t *testing.T, s goAccess.Store) {
	ctx := context.Background()

	created, err := s.CreateAccount(ctx, User("race@example.com"))
	require.NoError(t, err)

	first := created.Clone()
	second := created.Clone()

	first.LoginAttempts = 1
	_, err = s.SaveAccount(ctx, first)
	require.NoError(t, err)

	second.LoginAttempts = 7
	_, err = s.SaveAccount(ctx, second)
	assert.ErrorIs(t, err, goAccess.ErrConflict)

	current, err := s.LoadAccount(ctx, created.Ref())
	require.NoError(t, err)
	assert.Equal(t, 1, current.LoginAttempts)
	assert.Equal(t, uint64(2), current.Version)
}

func testConcurrentSaves(t *testing.T, s goAccess.Store) {
	ctx := context.Background()

	created, err := s.CreateAccount(ctx, User("parallel@example.com"))
	require.NoError(t, err)

	const writers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			next := created.Clone()
			next.LoginAttempts = n + 1
			if _, err := s.SaveAccount(ctx, next); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	current, err := s.LoadAccount(ctx, created.Ref())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), current.Version)
}

func testEmailUniqueness(t *testing.T, s goAccess.Store) {
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, User("dup@example.com"))
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, User("DUP@example.com"))
	assert.ErrorIs(t, err, goAccess.ErrEmailTaken)

	// the same address may exist once per kind
	_, err = s.CreateAccount(ctx, Admin("dup@example.com", goAccess.RoleModerator))
	require.NoError(t, err)

	gone := User("reuse@example.com")
	created, err := s.CreateAccount(ctx, gone)
	require.NoError(t, err)
	deletedAt := epoch.Add(time.Minute)
	created.DeletedAt = &deletedAt
	_, err = s.SaveAccount(ctx, created)
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, User("reuse@example.com"))
	require.NoError(t, err)
}

func testListAccounts(t *testing.T, s goAccess.Store) {
	ctx := context.Background()

	super := Admin("super@example.com", goAccess.RoleSuperAdmin)
	_, err := s.CreateAccount(ctx, super)
	require.NoError(t, err)

	child := Admin("child@example.com", goAccess.RoleModerator)
	child.CreatedBy = super.ID
	child.CreatedAt = epoch.Add(time.Second)
	_, err = s.CreateAccount(ctx, child)
	require.NoError(t, err)

	inactive := Admin("inactive@example.com", goAccess.RoleAdmin)
	inactive.IsActive = false
	inactive.TwoFactorEnabled = true
	inactive.CreatedAt = epoch.Add(2 * time.Second)
	_, err = s.CreateAccount(ctx, inactive)
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, User("user@example.com"))
	require.NoError(t, err)

	all, err := s.ListAccounts(ctx, goAccess.AccountQuery{Kind: goAccess.KindAdmin})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, super.ID, all[0].ID)
	assert.Equal(t, child.ID, all[1].ID)
	assert.Equal(t, inactive.ID, all[2].ID)

	active, err := s.ListAccounts(ctx, goAccess.AccountQuery{Kind: goAccess.KindAdmin, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	supers, err := s.ListAccounts(ctx, goAccess.AccountQuery{Kind: goAccess.KindAdmin, Roles: []goAccess.Role{goAccess.RoleSuperAdmin}})
	require.NoError(t, err)
	require.Len(t, supers, 1)
	assert.Equal(t, super.ID, supers[0].ID)

	created, err := s.ListAccounts(ctx, goAccess.AccountQuery{Kind: goAccess.KindAdmin, CreatedBy: super.ID})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, child.ID, created[0].ID)

	twoFactor, err := s.ListAccounts(ctx, goAccess.AccountQuery{Kind: goAccess.KindAdmin, TwoFactorOnly: true})
	require.NoError(t, err)
	require.Len(t, twoFactor, 1)
	assert.Equal(t, inactive.ID, twoFactor[0].ID)

	users, err := s.ListAccounts(ctx, goAccess.AccountQuery{Kind: goAccess.KindUser})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testTenants(t *testing.T, s goAccess.Store) {
	ctx := context.Background()

	tenant := Tenant("acme")
	tenant.Domain = "acme.example.com"
	_, err := s.CreateTenant(ctx, tenant)
	require.NoError(t, err)

	loaded, err := s.LoadTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", loaded.Slug)
	assert.Equal(t, []string{"reports"}, loaded.Features)
	assert.Equal(t, "dark", loaded.Settings["theme"])
	assert.Equal(t, 5, loaded.UserLimit)

	bySlug, err := s.FindTenantBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, bySlug.ID)

	_, err = s.CreateTenant(ctx, Tenant("acme"))
	assert.ErrorIs(t, err, goAccess.ErrSlugTaken)

	other := Tenant("other")
	other.Domain = "acme.example.com"
	_, err = s.CreateTenant(ctx, other)
	assert.ErrorIs(t, err, goAccess.ErrDomainTaken)

	_, err = s.LoadTenant(ctx, uuid.NewString())
	assert.ErrorIs(t, err, goAccess.ErrNotFound)
	_, err = s.FindTenantBySlug(ctx, "missing")
	assert.ErrorIs(t, err, goAccess.ErrNotFound)
}

func testDeletedTenantReleasesSlug(t *testing.T, s goAccess.Store) {
	ctx := context.Background()

	gone := Tenant("reused")
	gone.Domain = "reused.example.com"
	deletedAt := epoch.Add(time.Hour)
	gone.DeletedAt = &deletedAt
	_, err := s.CreateTenant(ctx, gone)
	require.NoError(t, err)

	live := Tenant("reused")
	live.Domain = "reused.example.com"
	_, err = s.CreateTenant(ctx, live)
	require.NoError(t, err)

	found, err := s.FindTenantBySlug(ctx, "reused")
	require.NoError(t, err)
	assert.Equal(t, live.ID, found.ID)

	_, err = s.CreateTenant(ctx, Tenant("reused"))
	assert.ErrorIs(t, err, goAccess.ErrSlugTaken)
}

func testMemberships(t *testing.T, s goAccess.Store) {
	ctx := context.Background()

	user := User("member@example.com")
	_, err := s.CreateAccount(ctx, user)
	require.NoError(t, err)

	first := Tenant("first")
	_, err = s.CreateTenant(ctx, first)
	require.NoError(t, err)
	second := Tenant("second")
	second.CreatedAt = epoch.Add(time.Minute)
	_, err = s.CreateTenant(ctx, second)
	require.NoError(t, err)

	joined := epoch
	err = s.InsertMembership(ctx, goAccess.Membership{
		UserID:      user.ID,
		TenantID:    first.ID,
		Role:        "owner",
		Permissions: []string{"billing.read"},
		JoinedAt:    &joined,
		CreatedAt:   epoch,
	})
	require.NoError(t, err)

	err = s.InsertMembership(ctx, goAccess.Membership{UserID: user.ID, TenantID: first.ID, Role: "user", CreatedAt: epoch})
	assert.ErrorIs(t, err, goAccess.ErrAlreadyMember)

	invited := epoch.Add(time.Minute)
	err = s.InsertMembership(ctx, goAccess.Membership{
		UserID:    user.ID,
		TenantID:  second.ID,
		Role:      "user",
		InvitedAt: &invited,
		CreatedAt: invited,
	})
	require.NoError(t, err)

	m, err := s.GetMembership(ctx, user.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner", m.Role)
	assert.Equal(t, []string{"billing.read"}, m.Permissions)
	assert.True(t, m.Joined())

	list, err := s.ListMemberships(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].TenantID)
	assert.Equal(t, second.ID, list[1].TenantID)
	assert.False(t, list[1].Joined())

	accepted := epoch.Add(2 * time.Minute)
	pending := list[1]
	pending.JoinedAt = &accepted
	require.NoError(t, s.UpdateMembership(ctx, pending))

	m, err = s.GetMembership(ctx, user.ID, second.ID)
	require.NoError(t, err)
	assert.True(t, m.Joined())

	err = s.UpdateMembership(ctx, goAccess.Membership{UserID: user.ID, TenantID: uuid.NewString()})
	assert.ErrorIs(t, err, goAccess.ErrNotFound)

	removed, err := s.DeleteMembership(ctx, user.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteMembership(ctx, user.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.GetMembership(ctx, user.ID, first.ID)
	assert.ErrorIs(t, err, goAccess.ErrNotFound)

	// rejoin after leaving
	err = s.InsertMembership(ctx, goAccess.Membership{UserID: user.ID, TenantID: first.ID, Role: "user", JoinedAt: &joined, CreatedAt: epoch})
	require.NoError(t, err)
}

func testConcurrentMembershipInsert(t *testing.T, s goAccess.Store) {
	ctx := context.Background()

	user := User("racer@example.com")
	_, err := s.CreateAccount(ctx, user)
	require.NoError(t, err)
	tenant := Tenant("race")
	_, err = s.CreateTenant(ctx, tenant)
	require.NoError(t, err)

	const joiners = 8
	var inserted, duplicates atomic.Int32
	var wg sync.WaitGroup
	wg.Add(joiners)
	for i := 0; i < joiners; i++ {
		go func() {
			defer wg.Done()
			joined := epoch
			err := s.InsertMembership(ctx, goAccess.Membership{UserID: user.ID, TenantID: tenant.ID, Role: "user", JoinedAt: &joined, CreatedAt: epoch})
			switch {
			case err == nil:
				inserted.Add(1)
			case errors.Is(err, goAccess.ErrAlreadyMember):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	assert.Equal(t, int32(joiners-1), duplicates.Load())
}
