package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	goAccess "github.com/MrEthical07/goAccess"
)

const membershipColumns = "user_id, tenant_id, role, permissions, invited_at, joined_at, created_at"

func (s *Store) scanMembership(row interface{ Scan(...any) error }) (goAccess.Membership, error) {
	var (
		m                 goAccess.Membership
		permissions       []byte
		invited, joinedAt sql.NullTime
	)
	if err := row.Scan(&m.UserID, &m.TenantID, &m.Role, &permissions, &invited, &joinedAt, &m.CreatedAt); err != nil {
		return goAccess.Membership{}, err
	}

	perms, err := decodeStrings(permissions)
	if err != nil {
		return goAccess.Membership{}, fmt.Errorf("failed to decode membership permissions: %w", err)
	}
	m.Permissions = perms
	m.InvitedAt = timePtr(invited)
	m.JoinedAt = timePtr(joinedAt)
	return m, nil
}

func (s *Store) GetMembership(ctx context.Context, userID, tenantID string) (goAccess.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM tenant_user WHERE user_id = $1 AND tenant_id = $2`

	m, err := s.scanMembership(s.db.QueryRowContext(ctx, s.driver.rebind(query), userID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidKey(err) {
			return goAccess.Membership{}, goAccess.ErrNotFound
		}
		return goAccess.Membership{}, fmt.Errorf("failed to load membership: %w", err)
	}
	return m, nil
}

func (s *Store) ListMemberships(ctx context.Context, userID string) ([]goAccess.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM tenant_user WHERE user_id = $1 ORDER BY created_at, tenant_id`

	rows, err := s.db.QueryContext(ctx, s.driver.rebind(query), userID)
	if err != nil {
		if isInvalidKey(err) {
			return []goAccess.Membership{}, nil
		}
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	out := make([]goAccess.Membership, 0)
	for rows.Next() {
		m, err := s.scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return out, nil
}

// InsertMembership relies on the (user_id, tenant_id) primary key: a losing concurrent
// insert affects no rows and reports ErrAlreadyMember.
func (s *Store) InsertMembership(ctx context.Context, m goAccess.Membership) error {
	perms, err := encodeJSON(nonNil(m.Permissions))
	if err != nil {
		return err
	}

	query := `INSERT INTO tenant_user (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, tenant_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, s.driver.rebind(query),
		m.UserID, m.TenantID, m.Role, perms, nullTime(m.InvitedAt), nullTime(m.JoinedAt), m.CreatedAt.UTC())
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidKey(err) {
			return goAccess.ErrNotFound
		}
		return fmt.Errorf("failed to insert membership: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	if affected == 0 {
		return goAccess.ErrAlreadyMember
	}
	return nil
}

func (s *Store) UpdateMembership(ctx context.Context, m goAccess.Membership) error {
	perms, err := encodeJSON(nonNil(m.Permissions))
	if err != nil {
		return err
	}

	query := `UPDATE tenant_user SET role = $1, permissions = $2, invited_at = $3, joined_at = $4
		WHERE user_id = $5 AND tenant_id = $6`

	res, err := s.db.ExecContext(ctx, s.driver.rebind(query),
		m.Role, perms, nullTime(m.InvitedAt), nullTime(m.JoinedAt), m.UserID, m.TenantID)
	if err != nil {
		if isInvalidKey(err) {
			return goAccess.ErrNotFound
		}
		return fmt.Errorf("failed to update membership: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	if affected == 0 {
		return goAccess.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMembership(ctx context.Context, userID, tenantID string) (bool, error) {
	query := `DELETE FROM tenant_user WHERE user_id = $1 AND tenant_id = $2`

	res, err := s.db.ExecContext(ctx, s.driver.rebind(query), userID, tenantID)
	if err != nil {
		if isInvalidKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}
	return affected > 0, nil
}
