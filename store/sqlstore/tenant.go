package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goAccess "github.com/MrEthical07/goAccess"
)

var tenantColumns = []string{
	"id", "name", "slug", "domain", "email", "phone",
	"status", "subscription_plan", "trial_ends_at", "subscription_expires_at",
	"user_limit", "storage_limit", "features", "settings",
	"owner_id", "owner_email", "owner_name",
	"setup_completed_at", "created_at", "updated_at", "deleted_at",
}

func (s *Store) scanTenant(row interface{ Scan(...any) error }) (goAccess.Tenant, error) {
	var (
		t                    goAccess.Tenant
		domain               sql.NullString
		status               string
		features, settings   []byte
		trialEnds, subEnds   sql.NullTime
		setupDone, deletedAt sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &domain, &t.Email, &t.Phone,
		&status, &t.SubscriptionPlan, &trialEnds, &subEnds,
		&t.UserLimit, &t.StorageLimit, &features, &settings,
		&t.OwnerID, &t.OwnerEmail, &t.OwnerName,
		&setupDone, &t.CreatedAt, &t.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return goAccess.Tenant{}, err
	}

	t.Domain = domain.String
	t.Status = goAccess.TenantStatus(status)
	t.TrialEndsAt = timePtr(trialEnds)
	t.SubscriptionExpiresAt = timePtr(subEnds)
	t.SetupCompletedAt = timePtr(setupDone)
	t.DeletedAt = timePtr(deletedAt)

	if t.Features, err = decodeStrings(features); err != nil {
		return goAccess.Tenant{}, fmt.Errorf("failed to decode features of tenant %s: %w", t.ID, err)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return goAccess.Tenant{}, fmt.Errorf("failed to decode settings of tenant %s: %w", t.ID, err)
		}
		if len(t.Settings) == 0 {
			t.Settings = nil
		}
	}
	return t, nil
}

func (s *Store) loadTenant(ctx context.Context, where string, arg any) (goAccess.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE %s AND deleted_at IS NULL`,
		strings.Join(tenantColumns, ", "), where)

	t, err := s.scanTenant(s.db.QueryRowContext(ctx, s.driver.rebind(query), arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidKey(err) {
			return goAccess.Tenant{}, goAccess.ErrNotFound
		}
		return goAccess.Tenant{}, fmt.Errorf("failed to load tenant: %w", err)
	}
	return t, nil
}

func (s *Store) LoadTenant(ctx context.Context, id string) (goAccess.Tenant, error) {
	return s.loadTenant(ctx, "id = $1", id)
}

func (s *Store) FindTenantBySlug(ctx context.Context, slug string) (goAccess.Tenant, error) {
	return s.loadTenant(ctx, "slug = $1", slug)
}

func (s *Store) CreateTenant(ctx context.Context, t goAccess.Tenant) (goAccess.Tenant, error) {
	features, err := encodeJSON(nonNil(t.Features))
	if err != nil {
		return goAccess.Tenant{}, err
	}
	settings := "{}"
	if len(t.Settings) > 0 {
		if settings, err = encodeJSON(t.Settings); err != nil {
			return goAccess.Tenant{}, err
		}
	}

	query := fmt.Sprintf(`INSERT INTO tenants (%s) VALUES (%s)`,
		strings.Join(tenantColumns, ", "), placeholders(1, len(tenantColumns)))

	_, err = s.db.ExecContext(ctx, s.driver.rebind(query),
		t.ID, t.Name, t.Slug, nullString(t.Domain), t.Email, t.Phone,
		string(t.Status), t.SubscriptionPlan, nullTime(t.TrialEndsAt), nullTime(t.SubscriptionExpiresAt),
		t.UserLimit, t.StorageLimit, features, settings,
		t.OwnerID, t.OwnerEmail, t.OwnerName,
		nullTime(t.SetupCompletedAt), t.CreatedAt.UTC(), t.UpdatedAt.UTC(), nullTime(t.DeletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			if isDomainViolation(err) {
				return goAccess.Tenant{}, goAccess.ErrDomainTaken
			}
			return goAccess.Tenant{}, goAccess.ErrSlugTaken
		}
		return goAccess.Tenant{}, fmt.Errorf("failed to create tenant %s: %w", t.Slug, err)
	}
	return t.Clone(), nil
}
