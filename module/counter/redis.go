package counter

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "im:unread:"

// RedisStore maps every key onto a plain integer key: INCR for increment,
// SET XX for reset.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: redisKeyPrefix}
}

func (s *RedisStore) redisKey(key Key) string { return s.prefix + key.String() }

func (s *RedisStore) Increment(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	v, err := s.rdb.Incr(ctx, s.redisKey(key)).Result()
	if err != nil {
		return 0, unavailable(err, "increment", key)
	}
	return v, nil
}

func (s *RedisStore) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.rdb.SetXX(ctx, s.redisKey(key), 0, redis.KeepTTL).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err, "reset", key)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	v, err := s.rdb.Get(ctx, s.redisKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err, "get", key)
	}
	return v, nil
}
