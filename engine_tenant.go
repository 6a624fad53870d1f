package goAccess

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultMembershipRole   = "user"
	defaultSubscriptionPlan = "trial"
	defaultUserLimit        = 5
	defaultStorageLimitMB   = 1024
)

var tenantSlug = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// MembershipOptions are the tenant-scoped attributes of a new membership. An empty Role
// defaults to "user".
type MembershipOptions struct {
	Role        string
	Permissions []string
}

// CreateTenant validates and stores a new tenant. Slug is lower-cased. A slug or domain held
// by a live tenant returns ErrSlugTaken or ErrDomainTaken; deleted tenants release both.
// Zero-valued Status, SubscriptionPlan, UserLimit and StorageLimit take their defaults
// (trial, "trial", 5, 1024).
func (e *Engine) CreateTenant(ctx context.Context, t Tenant) (Tenant, error) {
	t = t.Clone()
	t.Name = strings.TrimSpace(t.Name)
	t.Slug = strings.ToLower(strings.TrimSpace(t.Slug))
	t.Domain = strings.ToLower(strings.TrimSpace(t.Domain))
	t.Email = NormalizeEmail(t.Email)

	if t.Name == "" || !tenantSlug.MatchString(t.Slug) {
		return Tenant{}, ErrInvalidTenant
	}
	if t.Status == "" {
		t.Status = TenantTrial
	}
	if !t.Status.Valid() {
		return Tenant{}, ErrInvalidTenant
	}
	if t.SubscriptionPlan == "" {
		t.SubscriptionPlan = defaultSubscriptionPlan
	}
	if t.UserLimit == 0 {
		t.UserLimit = defaultUserLimit
	}
	if t.StorageLimit == 0 {
		t.StorageLimit = defaultStorageLimitMB
	}
	if t.UserLimit < 0 || t.StorageLimit < 0 {
		return Tenant{}, ErrInvalidTenant
	}

	now := e.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.DeletedAt = nil

	created, err := e.store.CreateTenant(ctx, t)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) || errors.Is(err, ErrDomainTaken) {
			return Tenant{}, err
		}
		return Tenant{}, fmt.Errorf("failed to create tenant: %w", err)
	}

	e.emitAudit(ctx, auditRecord{
		eventType: auditEventTenantCreated,
		tenantID:  created.ID,
		success:   true,
		metadata:  map[string]string{"slug": created.Slug},
	})
	return created, nil
}

// GetTenant returns the tenant with id; soft-deleted tenants are ErrNotFound.
func (e *Engine) GetTenant(ctx context.Context, id string) (Tenant, error) {
	t, err := e.store.LoadTenant(ctx, id)
	if err != nil {
		return Tenant{}, storeErr("load tenant", err)
	}
	return t, nil
}

// TenantBySlug resolves a tenant by its slug.
func (e *Engine) TenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	t, err := e.store.FindTenantBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return Tenant{}, storeErr("find tenant", err)
	}
	return t, nil
}

// JoinTenant describes the jointenant operation and its observable behavior.
//
// The membership is created active (JoinedAt = now). Creation is an atomic
// insert-if-absent at the store, so of two concurrent joins exactly one succeeds and the
// other gets ErrAlreadyMember. No consistency is enforced between the membership role and
// the user's global role.
func (e *Engine) JoinTenant(ctx context.Context, userID, tenantID string, opts MembershipOptions) (Membership, error) {
	return e.insertMembership(ctx, userID, tenantID, opts, true)
}

// InviteToTenant creates a pending membership (InvitedAt set, JoinedAt nil). The user
// gains access only after AcceptTenantInvitation.
func (e *Engine) InviteToTenant(ctx context.Context, userID, tenantID string, opts MembershipOptions) (Membership, error) {
	return e.insertMembership(ctx, userID, tenantID, opts, false)
}

func (e *Engine) insertMembership(ctx context.Context, userID, tenantID string, opts MembershipOptions, joined bool) (Membership, error) {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = defaultMembershipRole
	}
	perms, err := NormalizePermissions(opts.Permissions)
	if err != nil {
		return Membership{}, err
	}

	if _, err := e.loadAccount(ctx, UserRef(userID)); err != nil {
		return Membership{}, err
	}
	if _, err := e.GetTenant(ctx, tenantID); err != nil {
		return Membership{}, err
	}

	now := e.now()
	m := Membership{
		UserID:      userID,
		TenantID:    tenantID,
		Role:        role,
		Permissions: perms,
		CreatedAt:   now,
	}
	eventType := auditEventTenantInvited
	if joined {
		m.JoinedAt = &now
		eventType = auditEventTenantJoined
	} else {
		m.InvitedAt = &now
	}

	if err := e.store.InsertMembership(ctx, m); err != nil {
		if errors.Is(err, ErrAlreadyMember) {
			return Membership{}, ErrAlreadyMember
		}
		return Membership{}, fmt.Errorf("failed to insert membership: %w", err)
	}

	if joined {
		e.metricInc(MetricTenantJoined)
	}
	e.emitAudit(ctx, auditRecord{
		eventType: eventType,
		ref:       UserRef(userID),
		tenantID:  tenantID,
		success:   true,
		metadata:  map[string]string{"role": role},
	})
	return m, nil
}

// AcceptTenantInvitation activates a pending membership. Accepting an already active
// membership returns it unchanged.
func (e *Engine) AcceptTenantInvitation(ctx context.Context, userID, tenantID string) (Membership, error) {
	m, err := e.store.GetMembership(ctx, userID, tenantID)
	if err != nil {
		return Membership{}, storeErr("load membership", err)
	}
	if m.Joined() {
		return m, nil
	}

	now := e.now()
	m.JoinedAt = &now
	if err := e.store.UpdateMembership(ctx, m); err != nil {
		return Membership{}, storeErr("update membership", err)
	}

	e.metricInc(MetricTenantJoined)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventTenantJoined,
		ref:       UserRef(userID),
		tenantID:  tenantID,
		success:   true,
		changed:   []string{"joined_at"},
	})
	return m, nil
}

// LeaveTenant removes the membership. Leaving a tenant the user is not a member of is a
// no-op.
func (e *Engine) LeaveTenant(ctx context.Context, userID, tenantID string) error {
	removed, err := e.store.DeleteMembership(ctx, userID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if !removed {
		return nil
	}

	e.metricInc(MetricTenantLeft)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventTenantLeft,
		ref:       UserRef(userID),
		tenantID:  tenantID,
		success:   true,
	})
	return nil
}

// HasAccessToTenant reports whether the user holds an active (joined) membership.
// Pending invitations do not grant access.
func (e *Engine) HasAccessToTenant(ctx context.Context, userID, tenantID string) (bool, error) {
	m, err := e.store.GetMembership(ctx, userID, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load membership: %w", err)
	}
	return m.Joined(), nil
}

// Membership returns the user's membership row for tenantID.
func (e *Engine) Membership(ctx context.Context, userID, tenantID string) (Membership, error) {
	m, err := e.store.GetMembership(ctx, userID, tenantID)
	if err != nil {
		return Membership{}, storeErr("load membership", err)
	}
	return m, nil
}

// ListUserTenants returns the tenants the user has joined, skipping deleted tenants.
func (e *Engine) ListUserTenants(ctx context.Context, userID string) ([]Tenant, error) {
	memberships, err := e.store.ListMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	out := make([]Tenant, 0, len(memberships))
	for _, m := range memberships {
		if !m.Joined() {
			continue
		}
		t, err := e.store.LoadTenant(ctx, m.TenantID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load tenant %s: %w", m.TenantID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
