package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/store/storetest"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db, DriverPostgres), mock
}

func TestSaveAccountVersionMismatch(t *testing.T) {
	s, mock := newMockStore(t)

	acct := storetest.User("stale@example.com")
	acct.Version = 2

	mock.ExpectExec(`UPDATE users SET .* WHERE id = \$25 AND version = \$26 AND deleted_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM users WHERE id = \$1`).
		WithArgs(acct.ID).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))

	_, err := s.SaveAccount(context.Background(), acct)
	assert.ErrorIs(t, err, goAccess.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAccountMissingRow(t *testing.T) {
	s, mock := newMockStore(t)

	acct := storetest.Admin("gone@example.com", goAccess.RoleAdmin)
	acct.Version = 1

	mock.ExpectExec(`UPDATE admins SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM admins`).
		WithArgs(acct.ID).
		WillReturnError(sql.ErrNoRows)

	_, err := s.SaveAccount(context.Background(), acct)
	assert.ErrorIs(t, err, goAccess.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAccountAdvancesVersion(t *testing.T) {
	s, mock := newMockStore(t)

	acct := storetest.Admin("ok@example.com", goAccess.RoleAdmin)
	acct.Version = 4

	mock.ExpectExec(`UPDATE admins SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := s.SaveAccount(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), saved.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAccountDriverError(t *testing.T) {
	s, mock := newMockStore(t)

	acct := storetest.User("boom@example.com")
	boom := errors.New("connection reset")
	mock.ExpectExec(`UPDATE users SET`).WillReturnError(boom)

	_, err := s.SaveAccount(context.Background(), acct)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, goAccess.ErrConflict)
}

func TestCreateAccountUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_live_key"})

	_, err := s.CreateAccount(context.Background(), storetest.User("taken@example.com"))
	assert.ErrorIs(t, err, goAccess.ErrEmailTaken)
}

func TestCreateTenantUniqueViolations(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{"tenants_slug_live_key", goAccess.ErrSlugTaken},
		{"tenants_domain_live_key", goAccess.ErrDomainTaken},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			s, mock := newMockStore(t)

			mock.ExpectExec(`INSERT INTO tenants`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			_, err := s.CreateTenant(context.Background(), storetest.Tenant("acme"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadAccountMalformedID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM admins WHERE id = \$1`).
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	_, err := s.LoadAccount(context.Background(), goAccess.AdminRef("not-a-uuid"))
	assert.ErrorIs(t, err, goAccess.ErrNotFound)
}

func TestInsertMembershipConflictIsAlreadyMember(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO tenant_user .* ON CONFLICT \(user_id, tenant_id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.InsertMembership(context.Background(), goAccess.Membership{UserID: "u", TenantID: "t", Role: "user"})
	assert.ErrorIs(t, err, goAccess.ErrAlreadyMember)
}

func TestListAccountsBuildsFilters(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM admins WHERE deleted_at IS NULL AND role IN \(\$1, \$2\) AND is_active = \$3 AND created_by = \$4 ORDER BY created_at, id`).
		WithArgs("admin", "moderator", true, "creator").
		WillReturnRows(sqlmock.NewRows(accountColumns(goAccess.KindAdmin)))

	out, err := s.ListAccounts(context.Background(), goAccess.AccountQuery{
		Kind:       goAccess.KindAdmin,
		Roles:      []goAccess.Role{goAccess.RoleAdmin, goAccess.RoleModerator},
		ActiveOnly: true,
		CreatedBy:  "creator",
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
