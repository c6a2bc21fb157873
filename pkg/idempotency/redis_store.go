package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the idempotency service with a shared Redis instance so
// dedup holds across concurrently running application processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "idempotency"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(token string) string {
	return fmt.Sprintf("%s:%s", r.prefix, token)
}

func (r *RedisStore) Seen(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

// Acquire uses SETNX so the check-and-mark is atomic across processes.
func (r *RedisStore) Acquire(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	won, err := r.client.SetNX(ctx, r.key(token), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire token: %w", err)
	}
	return won, nil
}

func (r *RedisStore) Release(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to release token: %w", err)
	}
	return nil
}
