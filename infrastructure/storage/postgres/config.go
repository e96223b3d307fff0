// Package postgres provides PostgreSQL-backed note and session stores.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrConnectionFailed indicates the database could not be reached.
	ErrConnectionFailed = errors.New("postgres connection failed")

	// ErrOperationTimeout indicates a query exceeded its deadline.
	ErrOperationTimeout = errors.New("postgres operation timed out")
)

// Config holds connection settings.
type Config struct {
	URL             string
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns settings for a local database.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "db2i",
		User:            "postgres",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// ConnectionString returns DATABASE_URL when set, otherwise a keyword/value
// DSN. The password is omitted when empty so PGPASSWORD and .pgpass apply.
func (c Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	parts := []string{
		"host=" + dsnValue(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"dbname=" + dsnValue(c.Database),
		"user=" + dsnValue(c.User),
	}
	if c.Password != "" {
		parts = append(parts, "password="+dsnValue(c.Password))
	}
	if c.SSLMode != "" {
		parts = append(parts, "sslmode="+dsnValue(c.SSLMode))
	}
	return strings.Join(parts, " ")
}

// dsnValue quotes v when libpq would otherwise split or misread it.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithURL sets a full connection URL such as DATABASE_URL.
func WithURL(url string) ConfigOption {
	return func(c *Config) { c.URL = url }
}

// WithHost sets the server host.
func WithHost(host string) ConfigOption {
	return func(c *Config) { c.Host = host }
}

// WithPort sets the server port.
func WithPort(port int) ConfigOption {
	return func(c *Config) { c.Port = port }
}

// WithDatabase sets the database name.
func WithDatabase(db string) ConfigOption {
	return func(c *Config) { c.Database = db }
}

// WithCredentials sets user and password.
func WithCredentials(user, password string) ConfigOption {
	return func(c *Config) {
		c.User = user
		c.Password = password
	}
}

// WithSSLMode sets the sslmode parameter.
func WithSSLMode(mode string) ConfigOption {
	return func(c *Config) { c.SSLMode = mode }
}

// WithPoolSize sets the pool bounds.
func WithPoolSize(minConns, maxConns int32) ConfigOption {
	return func(c *Config) {
		c.MinConns = minConns
		c.MaxConns = maxConns
	}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, cfg Config, opts ...ConfigOption) (*pgxpool.Pool, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return pool, nil
}
