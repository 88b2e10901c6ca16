package safety

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"resilience-platform/pkg/utils"
)

// RedisCounterStore backs the limiters with Redis counters.
// Increment-with-expiry runs as a single Lua script, so the window invariant
// holds across processes.
type RedisCounterStore struct {
	rdb *redis.Client
}

func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return utils.IncrWindowCounter(ctx, s.rdb, key, window)
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (s *RedisCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return d, nil
}
