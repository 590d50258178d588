package watchlist

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the watchlist in a sorted set scored by insertion time, so
// List preserves the order names were added in.
type RedisStore struct {
	rdb redis.Cmdable
	key string
	now func() time.Time
}

// NewRedisStore returns a store under key "streamwatch:<provider>:watchlist".
func NewRedisStore(rdb redis.Cmdable, provider string) *RedisStore {
	return &RedisStore{rdb: rdb, key: "streamwatch:" + provider + ":watchlist", now: time.Now}
}

// Key returns the Redis key backing this store.
func (s *RedisStore) Key() string { return s.key }

func (s *RedisStore) Add(ctx context.Context, name string) (bool, error) {
	n, err := s.rdb.ZAddNX(ctx, s.key, redis.Z{Score: float64(s.now().UnixMicro()), Member: name}).Result()
	if err != nil {
		return false, WrapStorage("redis", "add", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Remove(ctx context.Context, name string) (bool, error) {
	n, err := s.rdb.ZRem(ctx, s.key, name).Result()
	if err != nil {
		return false, WrapStorage("redis", "remove", err)
	}
	return n > 0, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := s.rdb.ZRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, WrapStorage("redis", "list", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
