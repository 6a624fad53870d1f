// Package redisstore implements goAccess.Store on Redis.
//
// Records are stored as versioned JSON strings. Secondary indexes (email, slug, domain)
// are plain string keys pointing at ids, and per-kind id sets back ListAccounts. Every
// write that must be atomic with a read runs under WATCH and commits with MULTI/EXEC.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix  = "goaccess"
	recordVersion1 = 1
	maxRetries     = 4
)

// ErrBackend wraps transport failures.
var ErrBackend = errors.New("redis store backend unavailable")

// Store is a goAccess.Store backed by Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var _ goAccess.Store = (*Store)(nil)

func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) accountKey(ref goAccess.AccountRef) string {
	return s.prefix + ":acct:" + string(ref.Kind) + ":" + ref.ID
}

func (s *Store) emailKey(kind goAccess.AccountKind, email string) string {
	return s.prefix + ":email:" + string(kind) + ":" + goAccess.NormalizeEmail(email)
}

func (s *Store) accountSetKey(kind goAccess.AccountKind) string {
	return s.prefix + ":accts:" + string(kind)
}

func backendErr(err error) error {
	return fmt.Errorf("%w: %v", ErrBackend, err)
}

func (s *Store) LoadAccount(ctx context.Context, ref goAccess.AccountRef) (goAccess.Account, error) {
	data, err := s.redis.Get(ctx, s.accountKey(ref)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return goAccess.Account{}, goAccess.ErrNotFound
		}
		return goAccess.Account{}, backendErr(err)
	}

	acct, err := decodeRecord[goAccess.Account](data)
	if err != nil {
		return goAccess.Account{}, err
	}
	if acct.Deleted() {
		return goAccess.Account{}, goAccess.ErrNotFound
	}
	return acct, nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, kind goAccess.AccountKind, email string) (goAccess.Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(kind, email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return goAccess.Account{}, goAccess.ErrNotFound
		}
		return goAccess.Account{}, backendErr(err)
	}
	return s.LoadAccount(ctx, goAccess.AccountRef{Kind: kind, ID: id})
}

func (s *Store) CreateAccount(ctx context.Context, acct goAccess.Account) (goAccess.Account, error) {
	acct = acct.Clone()
	acct.Email = goAccess.NormalizeEmail(acct.Email)
	acct.Version = 1

	encoded, err := encodeRecord(acct)
	if err != nil {
		return goAccess.Account{}, err
	}

	key := s.accountKey(acct.Ref())
	emailKey := s.emailKey(acct.Kind, acct.Email)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key, emailKey).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				taken, err := tx.Exists(ctx, emailKey).Result()
				if err != nil {
					return err
				}
				if taken > 0 {
					return goAccess.ErrEmailTaken
				}
				return goAccess.ErrConflict
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				pipe.Set(ctx, emailKey, acct.ID, 0)
				pipe.SAdd(ctx, s.accountSetKey(acct.Kind), acct.ID)
				return nil
			})
			return err
		}, key, emailKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, goAccess.ErrEmailTaken) || errors.Is(err, goAccess.ErrConflict) {
				return goAccess.Account{}, err
			}
			return goAccess.Account{}, backendErr(err)
		}
		return acct, nil
	}

	return goAccess.Account{}, goAccess.ErrConflict
}

// SaveAccount compares the stored Version under WATCH. Soft deletion releases the email
// index so the address can be registered again.
func (s *Store) SaveAccount(ctx context.Context, acct goAccess.Account) (goAccess.Account, error) {
	key := s.accountKey(acct.Ref())

	next := acct.Clone()
	next.Version = acct.Version + 1
	encoded, err := encodeRecord(next)
	if err != nil {
		return goAccess.Account{}, err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return goAccess.ErrNotFound
				}
				return err
			}
			current, err := decodeRecord[goAccess.Account](data)
			if err != nil {
				return err
			}
			if current.Deleted() {
				return goAccess.ErrNotFound
			}
			if current.Version != acct.Version {
				return goAccess.ErrConflict
			}

			oldEmailKey := s.emailKey(current.Kind, current.Email)
			newEmailKey := s.emailKey(next.Kind, next.Email)
			if !next.Deleted() && newEmailKey != oldEmailKey {
				if err := tx.Watch(ctx, newEmailKey).Err(); err != nil {
					return err
				}
				taken, err := tx.Exists(ctx, newEmailKey).Result()
				if err != nil {
					return err
				}
				if taken > 0 {
					return goAccess.ErrEmailTaken
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				switch {
				case next.Deleted():
					pipe.Del(ctx, oldEmailKey)
					pipe.SRem(ctx, s.accountSetKey(next.Kind), next.ID)
				case newEmailKey != oldEmailKey:
					pipe.Del(ctx, oldEmailKey)
					pipe.Set(ctx, newEmailKey, next.ID, 0)
				}
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, goAccess.ErrNotFound),
				errors.Is(err, goAccess.ErrConflict),
				errors.Is(err, goAccess.ErrEmailTaken):
				return goAccess.Account{}, err
			}
			return goAccess.Account{}, backendErr(err)
		}
		return next, nil
	}

	return goAccess.Account{}, goAccess.ErrConflict
}

func (s *Store) ListAccounts(ctx context.Context, q goAccess.AccountQuery) ([]goAccess.Account, error) {
	ids, err := s.redis.SMembers(ctx, s.accountSetKey(q.Kind)).Result()
	if err != nil {
		return nil, backendErr(err)
	}
	out := make([]goAccess.Account, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.accountKey(goAccess.AccountRef{Kind: q.Kind, ID: id}))
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, backendErr(err)
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		acct, err := decodeRecord[goAccess.Account]([]byte(raw))
		if err != nil {
			return nil, err
		}
		if q.Matches(acct) {
			out = append(out, acct)
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

func encodeRecord(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, recordVersion1)
	return append(out, payload...), nil
}

func decodeRecord[T any](data []byte) (T, error) {
	var out T
	if len(data) < 2 {
		return out, errors.New("record truncated")
	}
	if data[0] != recordVersion1 {
		return out, fmt.Errorf("unsupported record version %d", data[0])
	}
	if err := json.Unmarshal(data[1:], &out); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}
