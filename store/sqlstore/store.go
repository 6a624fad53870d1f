// Package sqlstore implements goAccess.Store over database/sql for PostgreSQL (pgx) and
// SQLite (modernc). Queries are written with $N placeholders and rebound per driver.
//
// Admins and users live in separate tables; tenant memberships live in tenant_user.
// SaveAccount is a single UPDATE conditioned on the version column, so concurrent writers
// race at the database rather than in process.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	goAccess "github.com/MrEthical07/goAccess"
)

// Store is a goAccess.Store backed by a *sql.DB.
type Store struct {
	db     *sql.DB
	driver Driver
}

var _ goAccess.Store = (*Store)(nil)

// New wraps an open database. The schema must already be migrated; see [Migrate].
func New(db *sql.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

var accountTables = map[goAccess.AccountKind]string{
	goAccess.KindAdmin: "admins",
	goAccess.KindUser:  "users",
}

var commonAccountColumns = []string{
	"id", "email", "password_hash", "avatar", "role", "permissions",
	"two_factor_enabled", "two_factor_secret", "two_factor_recovery_codes",
	"login_attempts", "locked_until", "last_login_at", "last_login_ip",
	"email_verified_at", "password_changed_at",
	"created_at", "updated_at", "deleted_at", "version",
}

var kindAccountColumns = map[goAccess.AccountKind][]string{
	goAccess.KindAdmin: {"name", "is_active", "created_by"},
	goAccess.KindUser:  {"first_name", "last_name", "phone", "timezone", "locale", "status"},
}

func accountColumns(kind goAccess.AccountKind) []string {
	return append(slices.Clone(commonAccountColumns), kindAccountColumns[kind]...)
}

func accountTable(kind goAccess.AccountKind) (string, error) {
	table, ok := accountTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown account kind %q", kind)
	}
	return table, nil
}

type accountRow struct {
	acct goAccess.Account

	role              string
	status            string
	permissions       []byte
	lockedUntil       sql.NullTime
	lastLoginAt       sql.NullTime
	emailVerifiedAt   sql.NullTime
	passwordChangedAt sql.NullTime
	deletedAt         sql.NullTime
	createdBy         sql.NullString
	version           int64
}

func (r *accountRow) dest(kind goAccess.AccountKind) []any {
	a := &r.acct
	out := []any{
		&a.ID, &a.Email, &a.PasswordHash, &a.Avatar, &r.role, &r.permissions,
		&a.TwoFactorEnabled, &a.TwoFactorSecret, &a.TwoFactorRecoveryCodes,
		&a.LoginAttempts, &r.lockedUntil, &r.lastLoginAt, &a.LastLoginIP,
		&r.emailVerifiedAt, &r.passwordChangedAt,
		&a.CreatedAt, &a.UpdatedAt, &r.deletedAt, &r.version,
	}
	switch kind {
	case goAccess.KindAdmin:
		out = append(out, &a.Name, &a.IsActive, &r.createdBy)
	case goAccess.KindUser:
		out = append(out, &a.FirstName, &a.LastName, &a.Phone, &a.Timezone, &a.Locale, &r.status)
	}
	return out
}

func (r *accountRow) account(kind goAccess.AccountKind) (goAccess.Account, error) {
	a := r.acct
	a.Kind = kind
	a.Role = goAccess.Role(r.role)
	a.Status = goAccess.UserStatus(r.status)
	a.CreatedBy = r.createdBy.String
	a.LockedUntil = timePtr(r.lockedUntil)
	a.LastLoginAt = timePtr(r.lastLoginAt)
	a.EmailVerifiedAt = timePtr(r.emailVerifiedAt)
	a.PasswordChangedAt = timePtr(r.passwordChangedAt)
	a.DeletedAt = timePtr(r.deletedAt)
	a.Version = uint64(r.version)
	if len(a.TwoFactorSecret) == 0 {
		a.TwoFactorSecret = nil
	}
	if len(a.TwoFactorRecoveryCodes) == 0 {
		a.TwoFactorRecoveryCodes = nil
	}

	perms, err := decodeStrings(r.permissions)
	if err != nil {
		return goAccess.Account{}, fmt.Errorf("failed to decode permissions of %s: %w", a.Ref(), err)
	}
	a.Permissions = perms
	return a, nil
}

func accountValues(a goAccess.Account) ([]any, error) {
	perms, err := encodeJSON(nonNil(a.Permissions))
	if err != nil {
		return nil, err
	}

	out := []any{
		a.ID, a.Email, a.PasswordHash, a.Avatar, string(a.Role), perms,
		a.TwoFactorEnabled, nullBytes(a.TwoFactorSecret), nullBytes(a.TwoFactorRecoveryCodes),
		a.LoginAttempts, nullTime(a.LockedUntil), nullTime(a.LastLoginAt), a.LastLoginIP,
		nullTime(a.EmailVerifiedAt), nullTime(a.PasswordChangedAt),
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(), nullTime(a.DeletedAt), int64(a.Version),
	}
	switch a.Kind {
	case goAccess.KindAdmin:
		out = append(out, a.Name, a.IsActive, nullString(a.CreatedBy))
	case goAccess.KindUser:
		out = append(out, a.FirstName, a.LastName, a.Phone, a.Timezone, a.Locale, string(a.Status))
	}
	return out, nil
}

func (s *Store) scanAccount(row interface{ Scan(...any) error }, kind goAccess.AccountKind) (goAccess.Account, error) {
	var r accountRow
	if err := row.Scan(r.dest(kind)...); err != nil {
		return goAccess.Account{}, err
	}
	return r.account(kind)
}

func (s *Store) LoadAccount(ctx context.Context, ref goAccess.AccountRef) (goAccess.Account, error) {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return goAccess.Account{}, goAccess.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND deleted_at IS NULL`,
		strings.Join(accountColumns(ref.Kind), ", "), table)

	acct, err := s.scanAccount(s.db.QueryRowContext(ctx, s.driver.rebind(query), ref.ID), ref.Kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidKey(err) {
			return goAccess.Account{}, goAccess.ErrNotFound
		}
		return goAccess.Account{}, fmt.Errorf("failed to load %s: %w", ref, err)
	}
	return acct, nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, kind goAccess.AccountKind, email string) (goAccess.Account, error) {
	table, err := accountTable(kind)
	if err != nil {
		return goAccess.Account{}, goAccess.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1 AND deleted_at IS NULL`,
		strings.Join(accountColumns(kind), ", "), table)

	acct, err := s.scanAccount(s.db.QueryRowContext(ctx, s.driver.rebind(query), goAccess.NormalizeEmail(email)), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goAccess.Account{}, goAccess.ErrNotFound
		}
		return goAccess.Account{}, fmt.Errorf("failed to find %s by email: %w", kind, err)
	}
	return acct, nil
}

func (s *Store) CreateAccount(ctx context.Context, acct goAccess.Account) (goAccess.Account, error) {
	table, err := accountTable(acct.Kind)
	if err != nil {
		return goAccess.Account{}, err
	}

	acct = acct.Clone()
	acct.Email = goAccess.NormalizeEmail(acct.Email)
	acct.Version = 1

	values, err := accountValues(acct)
	if err != nil {
		return goAccess.Account{}, err
	}
	cols := accountColumns(acct.Kind)
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		table, strings.Join(cols, ", "), placeholders(1, len(cols)))

	if _, err := s.db.ExecContext(ctx, s.driver.rebind(query), values...); err != nil {
		if isUniqueViolation(err) {
			return goAccess.Account{}, goAccess.ErrEmailTaken
		}
		return goAccess.Account{}, fmt.Errorf("failed to create %s: %w", acct.Ref(), err)
	}
	return acct, nil
}

func (s *Store) SaveAccount(ctx context.Context, acct goAccess.Account) (goAccess.Account, error) {
	table, err := accountTable(acct.Kind)
	if err != nil {
		return goAccess.Account{}, goAccess.ErrNotFound
	}

	next := acct.Clone()
	next.Version = acct.Version + 1

	values, err := accountValues(next)
	if err != nil {
		return goAccess.Account{}, err
	}
	cols := accountColumns(acct.Kind)

	// cols[0] and values[0] are the id
	sets := make([]string, 0, len(cols)-1)
	for i, col := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
	}
	n := len(cols)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d AND version = $%d AND deleted_at IS NULL`,
		table, strings.Join(sets, ", "), n, n+1)

	args := append(values[1:], acct.ID, int64(acct.Version))
	res, err := s.db.ExecContext(ctx, s.driver.rebind(query), args...)
	if err != nil {
		if isInvalidKey(err) {
			return goAccess.Account{}, goAccess.ErrNotFound
		}
		if isUniqueViolation(err) {
			return goAccess.Account{}, goAccess.ErrEmailTaken
		}
		return goAccess.Account{}, fmt.Errorf("failed to save %s: %w", acct.Ref(), err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return goAccess.Account{}, fmt.Errorf("failed to save %s: %w", acct.Ref(), err)
	}
	if affected == 0 {
		return goAccess.Account{}, s.missOrConflict(ctx, table, acct.ID)
	}
	return next, nil
}

// missOrConflict explains a zero-row conditional update.
func (s *Store) missOrConflict(ctx context.Context, table, id string) error {
	query := fmt.Sprintf(`SELECT version FROM %s WHERE id = $1 AND deleted_at IS NULL`, table)

	var version int64
	err := s.db.QueryRowContext(ctx, s.driver.rebind(query), id).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows), isInvalidKey(err):
		return goAccess.ErrNotFound
	case err != nil:
		return fmt.Errorf("failed to check version of %s: %w", id, err)
	default:
		return goAccess.ErrConflict
	}
}

func (s *Store) ListAccounts(ctx context.Context, q goAccess.AccountQuery) ([]goAccess.Account, error) {
	table, err := accountTable(q.Kind)
	if err != nil {
		return []goAccess.Account{}, nil
	}

	conditions := []string{"deleted_at IS NULL"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.Roles) > 0 {
		marks := make([]string, 0, len(q.Roles))
		for _, role := range q.Roles {
			marks = append(marks, arg(string(role)))
		}
		conditions = append(conditions, "role IN ("+strings.Join(marks, ", ")+")")
	}
	if q.ActiveOnly {
		if q.Kind == goAccess.KindAdmin {
			conditions = append(conditions, "is_active = "+arg(true))
		} else {
			conditions = append(conditions, "status = "+arg(string(goAccess.StatusActive)))
		}
	}
	if q.TwoFactorOnly {
		conditions = append(conditions, "two_factor_enabled = "+arg(true))
	}
	if q.CreatedBy != "" {
		if q.Kind != goAccess.KindAdmin {
			return []goAccess.Account{}, nil
		}
		conditions = append(conditions, "created_by = "+arg(q.CreatedBy))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at, id`,
		strings.Join(accountColumns(q.Kind), ", "), table, strings.Join(conditions, " AND "))

	rows, err := s.db.QueryContext(ctx, s.driver.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	out := make([]goAccess.Account, 0)
	for rows.Next() {
		acct, err := s.scanAccount(rows, q.Kind)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	return out, nil
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
