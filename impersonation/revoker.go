package impersonation

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers token ids that have been used to stop an impersonation session.
// Revoke must be atomic: it reports true only for the first caller per id.
type Revoker interface {
	Revoke(ctx context.Context, id string, until time.Time) (bool, error)
	Revoked(ctx context.Context, id string) (bool, error)
}

// MemoryRevoker is a process-local Revoker. Entries are pruned once their token expired.
type MemoryRevoker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{entries: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRevoker) Revoke(_ context.Context, id string, until time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for k, exp := range r.entries {
		if !exp.After(now) {
			delete(r.entries, k)
		}
	}
	if _, ok := r.entries[id]; ok {
		return false, nil
	}
	r.entries[id] = until
	return true, nil
}

func (r *MemoryRevoker) Revoked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok, nil
}

// RedisRevoker shares revocations across processes with SET NX and a TTL matching the
// token's remaining lifetime.
type RedisRevoker struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRevoker(client redis.UniversalClient, prefix string) *RedisRevoker {
	if prefix == "" {
		prefix = "goaccess:imp:revoked"
	}
	return &RedisRevoker{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRevoker) key(id string) string {
	return r.prefix + ":" + id
}

func (r *RedisRevoker) Revoke(ctx context.Context, id string, until time.Time) (bool, error) {
	ttl := until.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return r.client.SetNX(ctx, r.key(id), 1, ttl).Result()
}

func (r *RedisRevoker) Revoked(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
