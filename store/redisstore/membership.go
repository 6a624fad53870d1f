package redisstore

import (
	"context"
	"errors"
	"slices"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/redis/go-redis/v9"
)

func (s *Store) membershipKey(userID, tenantID string) string {
	return s.prefix + ":member:" + userID + ":" + tenantID
}

func (s *Store) membershipSetKey(userID string) string {
	return s.prefix + ":members:" + userID
}

func (s *Store) GetMembership(ctx context.Context, userID, tenantID string) (goAccess.Membership, error) {
	data, err := s.redis.Get(ctx, s.membershipKey(userID, tenantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return goAccess.Membership{}, goAccess.ErrNotFound
		}
		return goAccess.Membership{}, backendErr(err)
	}
	return decodeRecord[goAccess.Membership](data)
}

func (s *Store) ListMemberships(ctx context.Context, userID string) ([]goAccess.Membership, error) {
	tenantIDs, err := s.redis.SMembers(ctx, s.membershipSetKey(userID)).Result()
	if err != nil {
		return nil, backendErr(err)
	}
	out := make([]goAccess.Membership, 0, len(tenantIDs))
	if len(tenantIDs) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		keys = append(keys, s.membershipKey(userID, tenantID))
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
		m, err := decodeRecord[goAccess.Membership]([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	slices.SortFunc(out, func(a, b goAccess.Membership) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.TenantID < b.TenantID:
			return -1
		case a.TenantID > b.TenantID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) InsertMembership(ctx context.Context, m goAccess.Membership) error {
	encoded, err := encodeRecord(m)
	if err != nil {
		return err
	}
	key := s.membershipKey(m.UserID, m.TenantID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return goAccess.ErrAlreadyMember
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				pipe.SAdd(ctx, s.membershipSetKey(m.UserID), m.TenantID)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, goAccess.ErrAlreadyMember) {
				return err
			}
			return backendErr(err)
		}
		return nil
	}

	return goAccess.ErrAlreadyMember
}

// UpdateMembership overwrites an existing row; SET XX never creates one.
func (s *Store) UpdateMembership(ctx context.Context, m goAccess.Membership) error {
	encoded, err := encodeRecord(m)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetXX(ctx, s.membershipKey(m.UserID, m.TenantID), encoded, 0).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return goAccess.ErrNotFound
		}
		return backendErr(err)
	}
	if !ok {
		return goAccess.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMembership(ctx context.Context, userID, tenantID string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, s.membershipKey(userID, tenantID))
		pipe.SRem(ctx, s.membershipSetKey(userID), tenantID)
		return nil
	})
	if err != nil {
		return false, backendErr(err)
	}
	return removed.Val() > 0, nil
}
