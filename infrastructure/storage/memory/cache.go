package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ibmi-agents/db2i-go/domain/cache"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
	usedAt    time.Time
}

func (e *cacheEntry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// Cache is an in-process cache.Cache. Once maxEntries results are held the
// least recently read one makes room for the next.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	maxEntries int
	now        func() time.Time
}

// CacheOption configures the cache.
type CacheOption func(*Cache)

// WithMaxSize sets the maximum number of entries.
func WithMaxSize(size int) CacheOption {
	return func(c *Cache) {
		if size > 0 {
			c.maxEntries = size
		}
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a cache holding at most 1000 results by default.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: 1000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the live value under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.live(now) {
		delete(c.entries, key)
		return nil, false, nil
	}
	e.usedAt = now
	return append([]byte(nil), e.value...), true, nil
}

// Set stores a copy of value.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		c.makeRoom(now)
	}
	e := &cacheEntry{value: append([]byte(nil), value...), usedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// Invalidate removes every entry under prefix, live or expired.
func (c *Cache) Invalidate(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n, nil
}

// Len reports how many entries are held, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// makeRoom drops expired entries, or the least recently read one when
// nothing has expired. The lock must be held.
func (c *Cache) makeRoom(now time.Time) {
	var victim string
	var oldest time.Time
	for key, e := range c.entries {
		if !e.live(now) {
			delete(c.entries, key)
			continue
		}
		if victim == "" || e.usedAt.Before(oldest) {
			victim, oldest = key, e.usedAt
		}
	}
	if len(c.entries) >= c.maxEntries && victim != "" {
		delete(c.entries, victim)
	}
}

var _ cache.Cache = (*Cache)(nil)
