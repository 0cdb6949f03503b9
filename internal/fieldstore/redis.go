package fieldstore

import (
	"context"
	"errors"
	"fmt"

	"reportforms/internal/redis"
)

// RedisBackend stores fields as plain redis strings without expiry, under the
// client keyspace.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get field: %w", err)
	}
	return v, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := b.client.Set(ctx, key, value, 0); err != nil {
		return fmt.Errorf("set field: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if err := b.client.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete fields: %w", err)
	}
	return nil
}

func (b *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := b.client.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan fields: %w", err)
	}
	return keys, nil
}
