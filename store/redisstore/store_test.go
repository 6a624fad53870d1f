package redisstore

import (
	"context"
	"testing"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/store/storetest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, "test"), mr
}

func TestRedisConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) goAccess.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestKeysUsePrefix(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	acct := storetest.User("prefix@example.com")
	_, err := s.CreateAccount(ctx, acct)
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:acct:user:"+acct.ID))
	id, err := mr.Get("test:email:user:prefix@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, id)

	members, err := mr.Members("test:accts:user")
	require.NoError(t, err)
	assert.Equal(t, []string{acct.ID}, members)
}

func TestSoftDeleteReleasesIndexes(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateAccount(ctx, storetest.Admin("bye@example.com", goAccess.RoleAdmin))
	require.NoError(t, err)

	deletedAt := created.CreatedAt
	created.DeletedAt = &deletedAt
	_, err = s.SaveAccount(ctx, created)
	require.NoError(t, err)

	assert.False(t, mr.Exists("test:email:admin:bye@example.com"))
	assert.True(t, mr.Exists("test:acct:admin:"+created.ID))

	_, err = s.SaveAccount(ctx, created)
	assert.ErrorIs(t, err, goAccess.ErrNotFound)
}

func TestCorruptRecord(t *testing.T) {
	s, mr := newTestStore(t)

	require.NoError(t, mr.Set("test:acct:user:broken", "\x02{}"))

	_, err := s.LoadAccount(context.Background(), goAccess.UserRef("broken"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, goAccess.ErrNotFound)
}

func TestBackendUnavailable(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, err := s.LoadAccount(context.Background(), goAccess.UserRef("any"))
	assert.ErrorIs(t, err, ErrBackend)

	err = s.InsertMembership(context.Background(), goAccess.Membership{UserID: "u", TenantID: "t"})
	assert.ErrorIs(t, err, ErrBackend)
}

func TestDefaultPrefix(t *testing.T) {
	s := New(nil, "")
	assert.Equal(t, "goaccess:tenant:abc", s.tenantKey("abc"))
}
