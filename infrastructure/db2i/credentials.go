// Package db2i connects to Db2 for i and implements the SQL execution
// wrapper and the schema-scoped database adapter used by every tool.
package db2i

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMissingCredentials is returned when host, user, password or port is absent.
	ErrMissingCredentials = errors.New("required parameters (host, user, password, port) must be provided")

	// ErrConnectionFailed wraps driver errors raised while opening the pool.
	ErrConnectionFailed = errors.New("db2i: connection failed")
)

// DefaultDriver is the database/sql driver name registered by
// github.com/alexbrainman/odbc.
const DefaultDriver = "odbc"

// Credentials identify an IBM i system and user profile.
type Credentials struct {
	Host     string `json:"host"`
	User     string `json:"user"`
	Password string `json:"-"`

	// Port is the DB_PORT of the connection config. It is validated and
	// reported but does not reach the ODBC connection string: the IBM i
	// Access driver finds the database host server through the system's
	// service table.
	Port int `json:"port"`

	// IgnoreUnauthorized skips TLS. When false the connection requires TLS
	// (SSL=1) and the driver verifies the host certificate.
	IgnoreUnauthorized bool `json:"ignore_unauthorized"`

	// DSN replaces the generated connection string when set.
	DSN string `json:"-"`
}

// Validate reports which connection parameters are missing.
func (c Credentials) Validate() error {
	if c.DSN != "" {
		return nil
	}
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.User == "" {
		missing = append(missing, "user")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if c.Port <= 0 {
		missing = append(missing, "port")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// String renders the credentials with the password redacted.
func (c Credentials) String() string {
	return c.Redacted()
}

// Redacted describes the target system without the password.
func (c Credentials) Redacted() string {
	if c.DSN != "" && c.Host == "" {
		return "dsn=***REDACTED***"
	}
	return fmt.Sprintf("host=%s user=%s port=%d password=***REDACTED***", c.Host, c.User, c.Port)
}

// ConnString builds an IBM i Access ODBC connection string. A non-empty
// schema becomes the default library list entry.
func (c Credentials) ConnString(schema string) string {
	if c.DSN != "" {
		return c.DSN
	}
	parts := []string{
		"DRIVER={IBM i Access ODBC Driver}",
		"SYSTEM=" + odbcValue(c.Host),
		"UID=" + odbcValue(c.User),
		"PWD=" + odbcValue(c.Password),
		"NAM=0",
	}
	if !c.IgnoreUnauthorized {
		parts = append(parts, "SSL=1")
	}
	if schema != "" {
		parts = append(parts, "DBQ="+odbcValue(schema))
	}
	return strings.Join(parts, ";")
}

// odbcValue braces values that contain connection-string delimiters.
func odbcValue(v string) string {
	if strings.ContainsAny(v, ";{}=") || strings.TrimSpace(v) != v {
		return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
	}
	return v
}

// OpenOptions tune the connection pool.
type OpenOptions struct {
	Driver          string
	Schema          string
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// OpenOption configures Open.
type OpenOption func(*OpenOptions)

// WithDriver selects the database/sql driver.
func WithDriver(name string) OpenOption {
	return func(o *OpenOptions) {
		if name != "" {
			o.Driver = name
		}
	}
}

// WithSchema sets the default schema in the connection string.
func WithSchema(schema string) OpenOption {
	return func(o *OpenOptions) {
		o.Schema = schema
	}
}

// WithMaxOpenConns bounds the pool size.
func WithMaxOpenConns(n int) OpenOption {
	return func(o *OpenOptions) {
		if n > 0 {
			o.MaxOpenConns = n
		}
	}
}

// Open returns a pooled handle to the IBM i system after verifying it
// answers a ping.
func Open(ctx context.Context, creds Credentials, opts ...OpenOption) (*sql.DB, error) {
	o := OpenOptions{
		Driver:          DefaultDriver,
		MaxOpenConns:    4,
		ConnMaxIdleTime: 5 * time.Minute,
		PingTimeout:     15 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(o.Driver, creds.ConnString(o.Schema))
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxOpenConns)
	db.SetConnMaxIdleTime(o.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, o.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrConnectionFailed, fmt.Errorf("%s: %w", creds.Host, err))
	}
	return db, nil
}
