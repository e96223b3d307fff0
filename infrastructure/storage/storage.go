// Package storage selects and opens the note, session and cache backends
// named by the process settings.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ibmi-agents/db2i-go/domain/cache"
	"github.com/ibmi-agents/db2i-go/domain/note"
	"github.com/ibmi-agents/db2i-go/domain/session"
	"github.com/ibmi-agents/db2i-go/infrastructure/config"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/badger"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/memory"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/mongodb"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/postgres"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/redis"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/sqlite"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
	BackendNone     = "none"
)

// ErrUnknownBackend is returned for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backends holds the opened stores. Cache is nil when caching is off.
type Backends struct {
	Notes     note.Store
	Sessions  session.Store
	Cache     cache.Cache
	Kind      string
	CacheKind string

	sqliteDB *sql.DB
	closers  []func(context.Context) error
}

// Select returns the note/session backend implied by the settings:
// USE_SQLITE, then DATABASE_URL, then MONGODB_URI, then memory.
func Select(s *config.Settings) string {
	switch {
	case s.UseSQLite:
		return BackendSQLite
	case s.DatabaseURL != "":
		return BackendPostgres
	case s.MongoURI != "":
		return BackendMongoDB
	default:
		return BackendMemory
	}
}

// Open opens the store backend and the cache backend. override, when not
// empty, replaces the automatic store selection.
func Open(ctx context.Context, s *config.Settings, override string) (*Backends, error) {
	b := &Backends{Kind: Select(s)}
	if override != "" {
		b.Kind = strings.ToLower(override)
	}

	if err := b.openStores(ctx, s); err != nil {
		_ = b.Close(ctx)
		return nil, err
	}
	if err := b.openCache(s); err != nil {
		_ = b.Close(ctx)
		return nil, err
	}

	logging.Info().
		Add(logging.Component("storage")).
		Add(logging.Str("backend", b.Kind)).
		Add(logging.Str("cache", b.CacheKind)).
		Msg("storage opened")
	return b, nil
}

func (b *Backends) openStores(ctx context.Context, s *config.Settings) error {
	switch b.Kind {
	case BackendMemory:
		b.Notes = memory.NewNoteStore()
		b.Sessions = memory.NewSessionStore()

	case BackendSQLite:
		db, err := b.sqlite(s)
		if err != nil {
			return err
		}
		store, err := sqlite.NewStore(db)
		if err != nil {
			return err
		}
		b.Notes, b.Sessions = store, store.Sessions()

	case BackendPostgres:
		pool, err := postgres.Connect(ctx, postgres.DefaultConfig(), postgres.WithURL(s.DatabaseURL))
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func(context.Context) error { pool.Close(); return nil })
		store, err := postgres.NewStore(ctx, pool, s.DatabaseSchema)
		if err != nil {
			return err
		}
		b.Notes, b.Sessions = store, store.Sessions()

	case BackendMongoDB:
		client, err := mongodb.NewClient(ctx, mongodb.WithURI(s.MongoURI), mongodb.WithDatabase(s.MongoDatabase))
		if err != nil {
			return err
		}
		b.closers = append(b.closers, client.Close)
		store, err := mongodb.NewStore(ctx, client)
		if err != nil {
			return err
		}
		b.Notes, b.Sessions = store, store.Sessions()

	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, b.Kind)
	}
	return nil
}

func (b *Backends) openCache(s *config.Settings) error {
	b.CacheKind = strings.ToLower(s.CacheBackend)
	switch b.CacheKind {
	case "", BackendMemory:
		b.CacheKind = BackendMemory
		b.Cache = memory.NewCache()

	case BackendNone:
		b.Cache = nil

	case BackendSQLite:
		db, err := b.sqlite(s)
		if err != nil {
			return err
		}
		c, err := sqlite.NewCache(db)
		if err != nil {
			return err
		}
		b.Cache = c

	case BackendRedis:
		c, err := redis.NewCache(redis.DefaultConfig(),
			redis.WithAddress(s.RedisAddr),
			redis.WithPassword(s.RedisPassword),
		)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func(context.Context) error { return c.Close() })
		b.Cache = c

	case BackendBadger:
		c, err := badger.NewCache(badger.DefaultConfig(), badger.WithDir(s.BadgerDir))
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func(context.Context) error { return c.Close() })
		b.Cache = c

	default:
		return fmt.Errorf("%w: cache %q", ErrUnknownBackend, b.CacheKind)
	}
	return nil
}

// sqlite opens the shared SQLite handle once for both stores and cache.
func (b *Backends) sqlite(s *config.Settings) (*sql.DB, error) {
	if b.sqliteDB != nil {
		return b.sqliteDB, nil
	}
	db, err := sqlite.Open(sqlite.DefaultConfig(), sqlite.WithPath(s.SQLitePath))
	if err != nil {
		return nil, err
	}
	b.sqliteDB = db
	b.closers = append(b.closers, func(context.Context) error { return db.Close() })
	return db, nil
}

// Close releases every opened backend in reverse order.
func (b *Backends) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	b.closers = nil
	return errors.Join(errs...)
}
