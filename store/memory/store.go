package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	goAccess "github.com/MrEthical07/goAccess"
)

type membershipKey struct {
	userID   string
	tenantID string
}

// Store is an in-process goAccess.Store. Records are cloned on the way in and out so
// callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	accounts    map[goAccess.AccountRef]goAccess.Account
	tenants     map[string]goAccess.Tenant
	memberships map[membershipKey]goAccess.Membership
}

var _ goAccess.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		accounts:    make(map[goAccess.AccountRef]goAccess.Account),
		tenants:     make(map[string]goAccess.Tenant),
		memberships: make(map[membershipKey]goAccess.Membership),
	}
}

func (s *Store) LoadAccount(_ context.Context, ref goAccess.AccountRef) (goAccess.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[ref]
	if !ok || acct.Deleted() {
		return goAccess.Account{}, goAccess.ErrNotFound
	}
	return acct.Clone(), nil
}

func (s *Store) FindAccountByEmail(_ context.Context, kind goAccess.AccountKind, email string) (goAccess.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = goAccess.NormalizeEmail(email)
	for ref, acct := range s.accounts {
		if ref.Kind == kind && !acct.Deleted() && acct.Email == email {
			return acct.Clone(), nil
		}
	}
	return goAccess.Account{}, goAccess.ErrNotFound
}

func (s *Store) CreateAccount(_ context.Context, acct goAccess.Account) (goAccess.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := acct.Ref()
	if _, exists := s.accounts[ref]; exists {
		return goAccess.Account{}, goAccess.ErrConflict
	}
	acct.Email = goAccess.NormalizeEmail(acct.Email)
	for r, existing := range s.accounts {
		if r.Kind == acct.Kind && !existing.Deleted() && existing.Email == acct.Email {
			return goAccess.Account{}, goAccess.ErrEmailTaken
		}
	}

	stored := acct.Clone()
	stored.Version = 1
	s.accounts[ref] = stored
	return stored.Clone(), nil
}

func (s *Store) SaveAccount(_ context.Context, acct goAccess.Account) (goAccess.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := acct.Ref()
	current, ok := s.accounts[ref]
	if !ok || current.Deleted() {
		return goAccess.Account{}, goAccess.ErrNotFound
	}
	if current.Version != acct.Version {
		return goAccess.Account{}, goAccess.ErrConflict
	}

	stored := acct.Clone()
	stored.Version = current.Version + 1
	s.accounts[ref] = stored
	return stored.Clone(), nil
}

func (s *Store) ListAccounts(_ context.Context, q goAccess.AccountQuery) ([]goAccess.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]goAccess.Account, 0)
	for _, acct := range s.accounts {
		if q.Matches(acct) {
			out = append(out, acct.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) LoadTenant(_ context.Context, id string) (goAccess.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok || t.DeletedAt != nil {
		return goAccess.Tenant{}, goAccess.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Store) FindTenantBySlug(_ context.Context, slug string) (goAccess.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tenants {
		if t.Slug == slug && t.DeletedAt == nil {
			return t.Clone(), nil
		}
	}
	return goAccess.Tenant{}, goAccess.ErrNotFound
}

func (s *Store) CreateTenant(_ context.Context, t goAccess.Tenant) (goAccess.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[t.ID]; exists {
		return goAccess.Tenant{}, goAccess.ErrConflict
	}
	for _, existing := range s.tenants {
		if existing.DeletedAt != nil {
			continue
		}
		if existing.Slug == t.Slug {
			return goAccess.Tenant{}, goAccess.ErrSlugTaken
		}
		if t.Domain != "" && existing.Domain == t.Domain {
			return goAccess.Tenant{}, goAccess.ErrDomainTaken
		}
	}

	s.tenants[t.ID] = t.Clone()
	return t.Clone(), nil
}

// DeleteTenant soft-deletes a tenant. It is not part of goAccess.Store; tests and tools
// use it to exercise deleted-tenant filtering.
func (s *Store) DeleteTenant(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok || t.DeletedAt != nil {
		return goAccess.ErrNotFound
	}
	t.DeletedAt = &at
	s.tenants[id] = t
	return nil
}

func (s *Store) GetMembership(_ context.Context, userID, tenantID string) (goAccess.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memberships[membershipKey{userID, tenantID}]
	if !ok {
		return goAccess.Membership{}, goAccess.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) ListMemberships(_ context.Context, userID string) ([]goAccess.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]goAccess.Membership, 0)
	for k, m := range s.memberships {
		if k.userID == userID {
			out = append(out, m.Clone())
		}
	}
	slices.SortFunc(out, func(a, b goAccess.Membership) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.TenantID < b.TenantID {
			return -1
		}
		if a.TenantID > b.TenantID {
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) InsertMembership(_ context.Context, m goAccess.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{m.UserID, m.TenantID}
	if _, exists := s.memberships[key]; exists {
		return goAccess.ErrAlreadyMember
	}
	s.memberships[key] = m.Clone()
	return nil
}

func (s *Store) UpdateMembership(_ context.Context, m goAccess.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{m.UserID, m.TenantID}
	if _, exists := s.memberships[key]; !exists {
		return goAccess.ErrNotFound
	}
	s.memberships[key] = m.Clone()
	return nil
}

func (s *Store) DeleteMembership(_ context.Context, userID, tenantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{userID, tenantID}
	if _, exists := s.memberships[key]; !exists {
		return false, nil
	}
	delete(s.memberships, key)
	return true, nil
}
