// Package logging provides structured logging using bolt. Stdout belongs to
// the MCP protocol and command output, so logs go to stderr or a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

var (
	mu            sync.RWMutex
	defaultLogger *bolt.Logger
)

// Config configures the logger.
type Config struct {
	// Enabled turns on logging at Level. When false only errors are written.
	Enabled bool

	// Level is the minimum level: DEBUG, INFO, WARNING, ERROR or CRITICAL
	// (lower-case trace, debug, info, warn and error are accepted too).
	Level string

	// Format is json or console.
	Format string

	// Output is the destination when Dir is empty. Defaults to stderr.
	Output io.Writer

	// Dir, when set, sends logs to a timestamped file in this directory.
	Dir string

	// FilePrefix names the log file: <Dir>/<FilePrefix>_<YYYYMMDD_HHMMSS>.log.
	FilePrefix string
}

// DefaultConfig returns a console logger on stderr at info level.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Level:   "INFO",
		Format:  "console",
		Output:  os.Stderr,
	}
}

// ServerConfig returns the configuration used by the MCP server: JSON lines
// in logs/db2i_mcp_server_<timestamp>.log.
func ServerConfig(enabled bool, level, dir string) Config {
	if dir == "" {
		dir = "logs"
	}
	return Config{
		Enabled:    enabled,
		Level:      level,
		Format:     "json",
		Output:     os.Stderr,
		Dir:        dir,
		FilePrefix: "db2i_mcp_server",
	}
}

// parseLevel converts a level name to bolt.Level.
func parseLevel(s string) bolt.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return bolt.TRACE
	case "DEBUG":
		return bolt.DEBUG
	case "INFO":
		return bolt.INFO
	case "WARN", "WARNING":
		return bolt.WARN
	case "ERROR", "CRITICAL":
		return bolt.ERROR
	default:
		return bolt.INFO
	}
}

// Init installs the default logger. The returned closer releases the log
// file, if one was opened, and is safe to call when none was.
func Init(cfg Config) (io.Closer, error) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if cfg.Enabled && cfg.Dir != "" {
		f, err := openLogFile(cfg.Dir, cfg.FilePrefix, time.Now())
		if err != nil {
			return nil, err
		}
		output = f
		closer = f
	}

	var handler bolt.Handler
	if cfg.Format == "json" {
		handler = bolt.NewJSONHandler(output)
	} else {
		handler = bolt.NewConsoleHandler(output)
	}

	level := bolt.ERROR
	if cfg.Enabled {
		level = parseLevel(cfg.Level)
	}
	Set(bolt.New(handler).SetLevel(level))
	return closer, nil
}

func openLogFile(dir, prefix string, now time.Time) (*os.File, error) {
	if prefix == "" {
		prefix = "db2i"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	name := filepath.Join(dir, fmt.Sprintf("%s_%s.log", prefix, now.Format("20060102_150405")))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Set replaces the default logger.
func Set(l *bolt.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// Get returns the default logger, installing DefaultConfig on first use.
func Get() *bolt.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}
	_, _ = Init(DefaultConfig())
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// LogEvent wraps a bolt.Event so Fields can be applied fluently.
type LogEvent struct {
	event *bolt.Event
}

// Add applies a field to the event and returns the wrapper for chaining.
func (l *LogEvent) Add(f Field) *LogEvent {
	if l.event == nil {
		return l
	}
	l.event = f(l.event)
	return l
}

// Msg sends the log event with a message.
func (l *LogEvent) Msg(msg string) {
	if l.event == nil {
		return
	}
	l.event.Msg(msg)
}

// Debug returns a LogEvent wrapper for debug level logging.
func Debug() *LogEvent {
	return &LogEvent{event: Get().Debug()}
}

// Info returns a LogEvent wrapper for info level logging.
func Info() *LogEvent {
	return &LogEvent{event: Get().Info()}
}

// Warn returns a LogEvent wrapper for warn level logging.
func Warn() *LogEvent {
	return &LogEvent{event: Get().Warn()}
}

// Error returns a LogEvent wrapper for error level logging.
func Error() *LogEvent {
	return &LogEvent{event: Get().Error()}
}

// Scoped emits events on a specific logger, falling back to the default
// logger when none is set.
type Scoped struct {
	logger *bolt.Logger
}

// For returns a Scoped logger for l.
func For(l *bolt.Logger) Scoped {
	return Scoped{logger: l}
}

func (s Scoped) get() *bolt.Logger {
	if s.logger != nil {
		return s.logger
	}
	return Get()
}

// Debug starts a debug event.
func (s Scoped) Debug() *LogEvent { return &LogEvent{event: s.get().Debug()} }

// Info starts an info event.
func (s Scoped) Info() *LogEvent { return &LogEvent{event: s.get().Info()} }

// Warn starts a warn event.
func (s Scoped) Warn() *LogEvent { return &LogEvent{event: s.get().Warn()} }

// Error starts an error event.
func (s Scoped) Error() *LogEvent { return &LogEvent{event: s.get().Error()} }
