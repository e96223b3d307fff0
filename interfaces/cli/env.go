package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ibmi-agents/db2i-go/application"
	domainconfig "github.com/ibmi-agents/db2i-go/domain/config"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/config"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
	mw "github.com/ibmi-agents/db2i-go/infrastructure/middleware"
	"github.com/ibmi-agents/db2i-go/infrastructure/observability"
	"github.com/ibmi-agents/db2i-go/infrastructure/scheduler"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage"
	db2ipack "github.com/ibmi-agents/db2i-go/pack/db2i"
)

// ErrNotConnected is returned by tools listed without a connection.
var ErrNotConnected = errors.New("not connected to IBM i")

// Connection is an open IBM i connection.
type Connection struct {
	Runner   db2i.SQLRunner
	Database db2ipack.Database
	Close    func() error
}

// Connector opens the IBM i connection described by the settings.
type Connector func(ctx context.Context, s *config.Settings) (*Connection, error)

// Connect opens a pooled ODBC connection.
func Connect(ctx context.Context, s *config.Settings) (*Connection, error) {
	db, err := db2i.Open(ctx, s.Credentials(),
		db2i.WithDriver(s.Driver),
		db2i.WithSchema(s.Schema),
		db2i.WithMaxOpenConns(s.MaxOpenConns),
	)
	if err != nil {
		return nil, err
	}
	database, err := db2i.New(db, s.Schema, s.DatabaseOptions()...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Info().
		Add(logging.Host(s.Host)).
		Add(logging.Schema(s.Schema)).
		Msg("connected")
	return &Connection{
		Runner:   db2i.NewRunner(db, db2i.WithQueryTimeout(s.QueryTimeout)),
		Database: database,
		Close:    db.Close,
	}, nil
}

// offline answers every statement with ErrNotConnected. It lets commands
// that only inspect the catalog build the registry without connecting.
type offline struct{}

func (offline) Query(context.Context, string, ...any) (*db2i.ResultSet, error) {
	return nil, ErrNotConnected
}

func (offline) Run(context.Context, string, ...any) (string, error) {
	return "", ErrNotConnected
}

func (offline) UsableTableNames(context.Context) []string { return nil }

func (offline) TableInfoNoThrow(context.Context, []string) string {
	return "Error: " + ErrNotConnected.Error()
}

func (offline) RunNoThrow(context.Context, string, db2i.RunOptions) string {
	return "Error: " + ErrNotConnected.Error()
}

// registry builds the full tool registry over runner and database.
func registry(runner db2i.SQLRunner, database db2ipack.Database, corrective bool) (tool.Registry, error) {
	packs, err := application.Packs(runner, database, application.PackOptions{Corrective: corrective})
	if err != nil {
		return nil, err
	}
	return application.NewRegistry(packs...)
}

// catalog returns the built-in catalog merged with the catalog file, if any.
func (a *App) catalog() (*domainconfig.Catalog, error) {
	return a.loadCatalog(a.configPath, nil)
}

func (a *App) loadCatalog(path string, lookupEnv func(string) (string, bool)) (*domainconfig.Catalog, error) {
	base := application.BuiltinCatalog()
	if path == "" {
		return base, nil
	}
	loader, err := a.catalogLoader(base, lookupEnv)
	if err != nil {
		return nil, err
	}
	return loader.LoadFile(path)
}

func (a *App) catalogLoader(base *domainconfig.Catalog, lookupEnv func(string) (string, bool)) (*config.Loader, error) {
	reg, err := registry(offline{}, offline{}, true)
	if err != nil {
		return nil, err
	}
	v := domainconfig.NewValidator()
	v.ToolExists = reg.Has
	v.ParseCron = scheduler.ParseCron
	v.LookupEnv = lookupEnv
	return config.NewLoaderWithOptions(config.WithBase(base), config.WithValidator(v)), nil
}

// envOptions selects what an environment opens.
type envOptions struct {
	connect    bool
	corrective bool
	approver   mw.Approver
	backend    string
}

// environment holds everything a command needs to run tools.
type environment struct {
	settings  *config.Settings
	conn      *Connection
	backends  *storage.Backends
	telemetry *observability.Provider
	runtime   *application.Runtime
	catalog   *domainconfig.Catalog
}

// open builds the environment. Close must be called when done.
func (a *App) open(ctx context.Context, opts envOptions) (env *environment, err error) {
	s := a.settings
	env = &environment{settings: s}
	defer func() {
		if err != nil {
			env.Close(ctx)
			env = nil
		}
	}()

	if env.catalog, err = a.catalog(); err != nil {
		return env, err
	}

	if env.backends, err = storage.Open(ctx, s, opts.backend); err != nil {
		return env, err
	}

	telemetry := []observability.Option{
		observability.WithServiceName("db2i"),
		observability.WithServiceVersion(Version),
		observability.WithExporter(strings.ToLower(s.TraceExporter), s.OTLPEndpoint),
		observability.WithInsecure(),
		observability.WithWriter(a.stderr),
	}
	if env.telemetry, err = observability.New(ctx, telemetry); err != nil {
		return env, err
	}

	var runner db2i.SQLRunner = offline{}
	var database db2ipack.Database = offline{}
	if opts.connect {
		if env.conn, err = a.connector(ctx, s); err != nil {
			return env, err
		}
		runner, database = env.conn.Runner, env.conn.Database
	}

	reg, err := registry(runner, database, opts.corrective)
	if err != nil {
		return env, err
	}
	env.runtime, err = application.NewRuntime(application.RuntimeConfig{
		Registry:  reg,
		Sessions:  env.backends.Sessions,
		Cache:     env.backends.Cache,
		CacheTTL:  s.CacheTTL,
		Schema:    s.Schema,
		Approver:  opts.approver,
		RateLimit: int(math.Ceil(s.ToolRateLimit)),
		RateBurst: s.ToolRateBurst,
		Tracer:    env.telemetry.Tracer("db2i"),
		Meter:     env.telemetry.Meter("db2i"),
	})
	return env, err
}

// Close releases the connection, the storage backends and the telemetry
// exporters.
func (e *environment) Close(ctx context.Context) {
	if e.conn != nil && e.conn.Close != nil {
		if err := e.conn.Close(); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("closing connection failed")
		}
	}
	if e.backends != nil {
		if err := e.backends.Close(ctx); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("closing storage failed")
		}
	}
	if e.telemetry != nil {
		if err := e.telemetry.Shutdown(ctx); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("telemetry shutdown failed")
		}
	}
}

// storageOnly opens the note and session stores without a connection.
func (a *App) storageOnly(ctx context.Context) (*storage.Backends, error) {
	b, err := storage.Open(ctx, a.settings, "")
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return b, nil
}
