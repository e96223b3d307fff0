package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibmi-agents/db2i-go/domain/cache"
)

// ErrConnectionFailed is returned when the server does not answer PING.
var ErrConnectionFailed = errors.New("redis: connection failed")

// scanBatch bounds both SCAN page size and the keys passed to one DEL.
const scanBatch = 100

// Cache keeps tool results in Redis so several agents can share them.
// Expiry is left to Redis.
type Cache struct {
	client *redis.Client
}

// NewCache connects and pings the server.
func NewCache(cfg Config, opts ...ConfigOption) (*Cache, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return &Cache{client: client}, nil
}

// NewCacheFromClient wraps an existing client.
func NewCacheFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	result, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Invalidate scans for keys under prefix and deletes them in batches. Keys
// written while the scan runs may survive.
func (c *Cache) Invalidate(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	iter := c.client.Scan(ctx, 0, matchPrefix(prefix), scanBatch).Iterator()

	deleted := 0
	keys := make([]string, 0, scanBatch)
	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, keys...).Result()
		deleted += int(n)
		keys = keys[:0]
		return err
	}

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, flush()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// matchPrefix turns a key prefix into a SCAN MATCH pattern. Glob
// metacharacters in the prefix match literally.
func matchPrefix(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}

var _ cache.Cache = (*Cache)(nil)
