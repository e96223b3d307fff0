// Package badger provides the embedded BadgerDB tool-result cache.
package badger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// Config configures the cache database.
type Config struct {
	// Dir is the data directory; ignored when InMemory is set.
	Dir string

	InMemory   bool
	SyncWrites bool

	// GCDiscardRatio and GCInterval drive value-log garbage collection.
	GCDiscardRatio float64
	GCInterval     time.Duration

	// Logger receives badger's internal messages. Nil routes them to the
	// application logger.
	Logger badger.Logger
}

// Option configures the cache database.
type Option func(*Config)

// WithDir sets the data directory.
func WithDir(dir string) Option {
	return func(c *Config) { c.Dir = dir }
}

// WithInMemory keeps all data in memory.
func WithInMemory() Option {
	return func(c *Config) { c.InMemory = true }
}

// WithSyncWrites enables synchronous writes.
func WithSyncWrites() Option {
	return func(c *Config) { c.SyncWrites = true }
}

// WithGCInterval sets the value-log GC interval. Zero disables GC.
func WithGCInterval(d time.Duration) Option {
	return func(c *Config) { c.GCInterval = d }
}

// WithLogger sets the badger logger.
func WithLogger(logger badger.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns the settings used for BADGER_DIR.
func DefaultConfig() Config {
	return Config{
		Dir:            "tmp/badger",
		GCDiscardRatio: 0.5,
		GCInterval:     5 * time.Minute,
	}
}

// ErrConnectionFailed is returned when the database cannot be opened.
var ErrConnectionFailed = errors.New("badger: open failed")

func openDB(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(boltLogger{})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return db, nil
}

// boltLogger forwards badger messages to the application logger. Info
// output is demoted to debug since badger is chatty on open and close.
type boltLogger struct{}

func (boltLogger) Errorf(format string, args ...any) {
	logging.Error().Add(logging.Component("badger")).Msg(clean(format, args))
}

func (boltLogger) Warningf(format string, args ...any) {
	logging.Warn().Add(logging.Component("badger")).Msg(clean(format, args))
}

func (boltLogger) Infof(format string, args ...any) {
	logging.Debug().Add(logging.Component("badger")).Msg(clean(format, args))
}

func (boltLogger) Debugf(format string, args ...any) {
	logging.Debug().Add(logging.Component("badger")).Msg(clean(format, args))
}

func clean(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
