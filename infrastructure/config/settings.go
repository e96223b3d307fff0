package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
)

// Settings is the process configuration read from the environment.
type Settings struct {
	Host               string        `env:"HOST"`
	User               string        `env:"DB_USER"`
	Password           string        `env:"PASSWORD"`
	Port               int           `env:"DB_PORT" envDefault:"8075"`
	Schema             string        `env:"SCHEMA"`
	IgnoreUnauthorized bool          `env:"IGNORE_UNAUTHORIZED" envDefault:"true"`
	DSN                string        `env:"DB_DSN"`
	Driver             string        `env:"DB_DRIVER" envDefault:"odbc"`
	MaxOpenConns       int           `env:"DB_MAX_OPEN_CONNS" envDefault:"4"`
	QueryTimeout       time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"30s"`
	IncludeTables      []string      `env:"INCLUDE_TABLES" envSeparator:","`
	IgnoreTables       []string      `env:"IGNORE_TABLES" envSeparator:","`
	SampleRows         int           `env:"SAMPLE_ROWS" envDefault:"3"`
	MaxStringLength    int           `env:"MAX_STRING_LENGTH" envDefault:"300"`

	EnableLogging bool   `env:"ENABLE_LOGGING" envDefault:"true"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogDir        string `env:"LOG_DIR" envDefault:"logs"`

	UseSQLite      bool   `env:"USE_SQLITE"`
	SQLitePath     string `env:"SQLITE_DB_PATH" envDefault:"tmp/agents.db"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DatabaseSchema string `env:"DATABASE_SCHEMA" envDefault:"public"`
	MongoURI       string `env:"MONGODB_URI"`
	MongoDatabase  string `env:"MONGODB_DATABASE" envDefault:"db2i"`

	CacheBackend  string        `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	BadgerDir     string        `env:"BADGER_DIR" envDefault:"tmp/cache"`

	// ToolRateLimit is calls per second per tool; 0 disables limiting.
	ToolRateLimit float64 `env:"TOOL_RATE_LIMIT" envDefault:"0"`
	ToolRateBurst int     `env:"TOOL_RATE_BURST" envDefault:"5"`

	TraceExporter string `env:"TRACE_EXPORTER" envDefault:"none"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`

	AgentsConfig string `env:"AGENTS_CONFIG"`
	HistoryFile  string `env:"HISTORY_FILE" envDefault:"tmp/history.txt"`
}

// ErrInvalidSettings wraps environment parse and consistency errors.
var ErrInvalidSettings = errors.New("invalid settings")

var cacheBackends = map[string]bool{"memory": true, "sqlite": true, "redis": true, "badger": true, "none": true}

var traceExporters = map[string]bool{"none": true, "stdout": true, "otlp": true}

// DotEnvCandidates are tried in order; the first existing file is loaded.
var DotEnvCandidates = []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")}

// LoadDotEnv loads the first existing candidate file. Variables already
// in the environment win. It returns the loaded path or "".
func LoadDotEnv(candidates ...string) (string, error) {
	if len(candidates) == 0 {
		candidates = DotEnvCandidates
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("load %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// LoadSettings reads a .env file if present and parses the process environment.
func LoadSettings() (*Settings, error) {
	if _, err := LoadDotEnv(); err != nil {
		return nil, err
	}
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, errors.Join(ErrInvalidSettings, err)
	}
	return s, s.Validate()
}

// ParseSettings parses settings from an explicit environment.
func ParseSettings(environ map[string]string) (*Settings, error) {
	s := &Settings{}
	if err := env.ParseWithOptions(s, env.Options{Environment: environ}); err != nil {
		return nil, errors.Join(ErrInvalidSettings, err)
	}
	return s, s.Validate()
}

// Validate checks enumerated values and ranges.
func (s *Settings) Validate() error {
	var errs []error
	if len(nonBlank(s.IncludeTables)) > 0 && len(nonBlank(s.IgnoreTables)) > 0 {
		errs = append(errs, db2i.ErrConflictingFilters)
	}
	if !cacheBackends[strings.ToLower(s.CacheBackend)] {
		errs = append(errs, fmt.Errorf("CACHE_BACKEND: unknown backend %q", s.CacheBackend))
	}
	if !traceExporters[strings.ToLower(s.TraceExporter)] {
		errs = append(errs, fmt.Errorf("TRACE_EXPORTER: unknown exporter %q", s.TraceExporter))
	}
	if s.SampleRows < 0 {
		errs = append(errs, errors.New("SAMPLE_ROWS must be non-negative"))
	}
	if s.ToolRateLimit < 0 {
		errs = append(errs, errors.New("TOOL_RATE_LIMIT must be non-negative"))
	}
	if s.MaxOpenConns < 1 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// Credentials returns the IBM i connection parameters.
func (s *Settings) Credentials() db2i.Credentials {
	return db2i.Credentials{
		Host:               s.Host,
		User:               s.User,
		Password:           s.Password,
		Port:               s.Port,
		IgnoreUnauthorized: s.IgnoreUnauthorized,
		DSN:                s.DSN,
	}
}

// DatabaseOptions returns the adapter options implied by the settings.
func (s *Settings) DatabaseOptions() []db2i.Option {
	return []db2i.Option{
		db2i.WithIncludeTables(s.IncludeTables...),
		db2i.WithIgnoreTables(s.IgnoreTables...),
		db2i.WithSampleRows(s.SampleRows),
		db2i.WithMaxStringLength(s.MaxStringLength),
		db2i.WithTimeout(s.QueryTimeout),
	}
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
