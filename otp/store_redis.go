package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const mutateRetries = 8

// RedisStore keeps challenge records in redis, one key per
// (subject, purpose). Mutations run under WATCH so a concurrent write to
// the same record aborts and retries the read-modify-write instead of
// losing it; different subjects never contend.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "cav"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(subjectID string, purpose Purpose) string {
	return s.prefix + ":" + string(purpose) + ":" + subjectID
}

func (s *RedisStore) Get(ctx context.Context, subjectID string, purpose Purpose) (*Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(subjectID, purpose)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeChallenge(data)
}

func (s *RedisStore) Mutate(ctx context.Context, subjectID string, purpose Purpose, fn func(cur *Challenge) (*Challenge, error)) (*Challenge, error) {
	key := s.key(subjectID, purpose)

	var out *Challenge
	txn := func(tx *redis.Tx) error {
		var cur *Challenge

		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			cur = nil
		case err != nil:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		default:
			cur, err = decodeChallenge(data)
			if err != nil {
				return err
			}
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		// no TTL: challenge records outlive their codes; cleanup is the
		// store owner's concern
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}

		out = next
		return nil
	}

	for i := 0; i < mutateRetries; i++ {
		err := s.redis.Watch(ctx, txn, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		// redis-op failures were wrapped inside txn; anything else is the
		// callback's own error and propagates unchanged
		return nil, err
	}
	return nil, fmt.Errorf("%w: watch retries exhausted", ErrStoreUnavailable)
}

func decodeChallenge(data []byte) (*Challenge, error) {
	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("%w: corrupt challenge record: %v", ErrStoreUnavailable, err)
	}
	return &ch, nil
}
