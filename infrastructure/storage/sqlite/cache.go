package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ibmi-agents/db2i-go/domain/cache"
)

// Cache keeps tool results in the tool_results table of the shared agents
// database, so cached IBM i answers survive between CLI runs.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// CacheOption configures the cache.
type CacheOption func(*Cache)

// WithCacheClock replaces the time source, for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates the tool_results table if needed.
func NewCache(db *sql.DB, opts ...CacheOption) (*Cache, error) {
	c := &Cache{db: db, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tool_results (
			cache_key  TEXT PRIMARY KEY,
			result     BLOB NOT NULL,
			stored_at  INTEGER NOT NULL,
			expires_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_tool_results_expires_at ON tool_results(expires_at);
	`)
	if err != nil {
		return nil, errors.Join(ErrMigrationFailed, err)
	}
	return c, nil
}

// Get returns the live result under key. Expiry is in unix milliseconds.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var result []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT result FROM tool_results
		 WHERE cache_key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, c.now().UnixMilli(),
	).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Set stores a result and purges the rows that have expired.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}

	now := c.now()
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tool_results WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		now.UnixMilli(),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tool_results (cache_key, result, stored_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   result = excluded.result,
		   stored_at = excluded.stored_at,
		   expires_at = excluded.expires_at`,
		key, value, now.UnixMilli(), expiresAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Invalidate deletes the rows under prefix. substr is used instead of LIKE
// so that '_' in a schema name is not a wildcard.
func (c *Cache) Invalidate(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	res, err := c.db.ExecContext(ctx,
		`DELETE FROM tool_results WHERE substr(cache_key, 1, length(?1)) = ?1`,
		prefix,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ cache.Cache = (*Cache)(nil)
