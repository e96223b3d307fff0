// Package sqlite provides SQLite-backed notes, sessions and tool-result cache.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Config configures SQLite storage.
type Config struct {
	// Path is the database file. ":memory:" keeps everything in memory.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// ConnMaxIdleTime is the maximum idle time for connections.
	ConnMaxIdleTime time.Duration

	// JournalMode sets the SQLite journal mode (e.g., "WAL").
	JournalMode string

	// BusyTimeout sets the busy timeout in milliseconds.
	BusyTimeout int
}

// Option configures SQLite storage.
type Option func(*Config)

// WithPath sets the database file.
func WithPath(path string) Option {
	return func(c *Config) {
		c.Path = path
	}
}

// WithMaxOpenConns sets the maximum open connections.
func WithMaxOpenConns(n int) Option {
	return func(c *Config) {
		c.MaxOpenConns = n
	}
}

// WithJournalMode sets the SQLite journal mode.
func WithJournalMode(mode string) Option {
	return func(c *Config) {
		c.JournalMode = mode
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Path:            "tmp/agents.db",
		MaxOpenConns:    4,
		ConnMaxIdleTime: 10 * time.Minute,
		JournalMode:     "WAL",
		BusyTimeout:     5000,
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("sqlite: connection failed")
	ErrMigrationFailed  = errors.New("sqlite: migration failed")
)

// Open opens the database, creating its directory if needed, and applies
// the pragmas. One handle is shared by the note, session and cache stores.
func Open(cfg Config, opts ...Option) (*sql.DB, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := cfg.Path
	if cfg.Path == ":memory:" {
		// A shared in-memory database needs a single connection.
		cfg.MaxOpenConns = 1
		cfg.JournalMode = ""
	} else {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, errors.Join(ErrConnectionFailed, err)
			}
		}
		dsn = "file:" + cfg.Path + "?mode=rwc"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	var pragmas []string
	if cfg.JournalMode != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode="+cfg.JournalMode)
	}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, "PRAGMA busy_timeout="+strconv.Itoa(cfg.BusyTimeout))
	}
	pragmas = append(pragmas, "PRAGMA foreign_keys=ON")

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Join(ErrMigrationFailed, fmt.Errorf("%s: %w", pragma, err))
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return db, nil
}
