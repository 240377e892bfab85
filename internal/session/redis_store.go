package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hashCommander is the subset of redis.Cmdable used by RedisStore.
type hashCommander interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisStore keeps values as fields of one Redis hash. The hash expires ttl
// after the last write.
type RedisStore struct {
	client hashCommander
	key    string
	ttl    time.Duration
}

// NewRedisStore returns a store writing to the hash at key.
func NewRedisStore(client hashCommander, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.HGet(ctx, r.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis hget %s: %w", key, err)
	}
	return value, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.HSet(ctx, r.key, key, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, r.key, r.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire %s: %w", r.key, err)
		}
	}
	return nil
}

// Remove implements Store.
func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.HDel(ctx, r.key, key).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", key, err)
	}
	return nil
}
