// Package mongodb provides MongoDB-backed note and session stores.
package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrConnectionFailed indicates the server could not be reached.
	ErrConnectionFailed = errors.New("mongodb connection failed")

	// ErrOperationTimeout indicates a query exceeded its deadline.
	ErrOperationTimeout = errors.New("mongodb operation timed out")
)

// Config contains connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	MaxPoolSize    uint64
}

// DefaultConfig returns settings for a local server.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "db2i",
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   30 * time.Second,
		MaxPoolSize:    20,
	}
}

// ConfigOption configures the connection.
type ConfigOption func(*Config)

// WithURI sets the connection URI.
func WithURI(uri string) ConfigOption {
	return func(c *Config) { c.URI = uri }
}

// WithDatabase sets the database name.
func WithDatabase(db string) ConfigOption {
	return func(c *Config) {
		if db != "" {
			c.Database = db
		}
	}
}

// WithQueryTimeout sets the per-operation timeout.
func WithQueryTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.QueryTimeout = d }
}

// Client wraps a connected client and its database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	config   Config
}

// NewClient connects and pings the server.
func NewClient(ctx context.Context, opts ...ConfigOption) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return &Client{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

// Database returns the configured database.
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Close disconnects from the server.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrOperationTimeout, err)
	}
	return errors.Join(ErrConnectionFailed, err)
}
