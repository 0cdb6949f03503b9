// Package redis holds the shared redis connection: the field keyspace and the
// pub/sub channel instances use to tell each other about state resets.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reportforms/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key the service writes.
const KeyPrefix = "forms:"

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

// Client scopes a go-redis client to the service keyspace.
type Client struct {
	inner  *redis.Client
	prefix string
}

// NewRedisClient dials the configured server and pings it before returning.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	inner := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := inner.Ping(ctx).Err(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("ping redis %s:%d: %w", host, port, err)
	}
	return &Client{inner: inner, prefix: KeyPrefix}, nil
}

func (c *Client) ready() error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return nil
}

func (c *Client) key(k string) string { return c.prefix + k }

// Set stores a value. A zero ttl keeps the key forever.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.inner.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.inner.Get(ctx, c.key(key)).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.inner.Del(ctx, full...).Err()
}

// ScanPrefix walks the keyspace with SCAN and returns every key starting with
// prefix, without the service namespace.
func (c *Client) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var keys []string
	iter := c.inner.Scan(ctx, 0, escapeGlob(c.key(prefix))+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), c.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Publish sends payload on a namespaced channel.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.inner.Publish(ctx, c.key(channel), payload).Err()
}

// Subscribe joins a namespaced channel and waits for the confirmation. The
// returned subscription must be closed by the caller.
func (c *Client) Subscribe(ctx context.Context, channel string) (*redis.PubSub, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	ps := c.inner.Subscribe(ctx, c.key(channel))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return ps, nil
}

func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
