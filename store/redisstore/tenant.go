package redisstore

import (
	"context"
	"errors"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/redis/go-redis/v9"
)

func (s *Store) tenantKey(id string) string     { return s.prefix + ":tenant:" + id }
func (s *Store) slugKey(slug string) string     { return s.prefix + ":slug:" + slug }
func (s *Store) domainKey(domain string) string { return s.prefix + ":domain:" + domain }

func (s *Store) LoadTenant(ctx context.Context, id string) (goAccess.Tenant, error) {
	data, err := s.redis.Get(ctx, s.tenantKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return goAccess.Tenant{}, goAccess.ErrNotFound
		}
		return goAccess.Tenant{}, backendErr(err)
	}

	t, err := decodeRecord[goAccess.Tenant](data)
	if err != nil {
		return goAccess.Tenant{}, err
	}
	if t.DeletedAt != nil {
		return goAccess.Tenant{}, goAccess.ErrNotFound
	}
	return t, nil
}

func (s *Store) FindTenantBySlug(ctx context.Context, slug string) (goAccess.Tenant, error) {
	id, err := s.redis.Get(ctx, s.slugKey(slug)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return goAccess.Tenant{}, goAccess.ErrNotFound
		}
		return goAccess.Tenant{}, backendErr(err)
	}
	return s.LoadTenant(ctx, id)
}

// CreateTenant claims the slug and domain indexes and stores t. A claim still pointing at
// a soft-deleted tenant is free and gets overwritten.
func (s *Store) CreateTenant(ctx context.Context, t goAccess.Tenant) (goAccess.Tenant, error) {
	encoded, err := encodeRecord(t)
	if err != nil {
		return goAccess.Tenant{}, err
	}

	key := s.tenantKey(t.ID)
	claims := []tenantClaim{{key: s.slugKey(t.Slug), taken: goAccess.ErrSlugTaken}}
	if t.Domain != "" {
		claims = append(claims, tenantClaim{key: s.domainKey(t.Domain), taken: goAccess.ErrDomainTaken})
	}
	watched := []string{key}
	for _, c := range claims {
		watched = append(watched, c.key)
	}

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			for _, c := range claims {
				live, err := s.claimHeld(ctx, tx, c.key)
				if err != nil {
					return err
				}
				if live {
					return c.taken
				}
			}
			exists, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if exists > 0 {
				return goAccess.ErrConflict
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				for _, c := range claims {
					pipe.Set(ctx, c.key, t.ID, 0)
				}
				return nil
			})
			return err
		}, watched...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, goAccess.ErrSlugTaken) || errors.Is(err, goAccess.ErrDomainTaken) ||
				errors.Is(err, goAccess.ErrConflict) {
				return goAccess.Tenant{}, err
			}
			return goAccess.Tenant{}, backendErr(err)
		}
		return t.Clone(), nil
	}

	return goAccess.Tenant{}, goAccess.ErrConflict
}

type tenantClaim struct {
	key   string
	taken error
}

// claimHeld reports whether the index at claimKey points at a live tenant.
func (s *Store) claimHeld(ctx context.Context, tx *redis.Tx, claimKey string) (bool, error) {
	id, err := tx.Get(ctx, claimKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	data, err := tx.Get(ctx, s.tenantKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	holder, err := decodeRecord[goAccess.Tenant](data)
	if err != nil {
		return false, err
	}
	return holder.DeletedAt == nil, nil
}
