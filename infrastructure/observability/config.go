// Package observability sets up the OpenTelemetry tracer and meter
// providers used by the tool middleware.
package observability

import (
	"io"
	"os"
	"time"
)

// Config configures the observability infrastructure.
type Config struct {
	// ServiceName is the name of the service for telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Exporter specifies the trace exporter type.
	Exporter ExporterType

	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS for the OTLP connection.
	Insecure bool

	// SampleRate is the sampling rate (0.0-1.0, default: 1.0).
	SampleRate float64

	// BatchTimeout is the batch export timeout.
	BatchTimeout time.Duration

	// Writer receives stdout-exporter output. Stdout carries the MCP
	// protocol, so the default is stderr.
	Writer io.Writer
}

// ExporterType specifies the trace exporter.
type ExporterType string

const (
	// ExporterOTLP exports to an OTLP gRPC endpoint (Jaeger, Tempo, ...).
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout writes spans as JSON to Writer.
	ExporterStdout ExporterType = "stdout"

	// ExporterNone disables export.
	ExporterNone ExporterType = "none"
)

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "db2i",
		ServiceVersion: "dev",
		Exporter:       ExporterNone,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Writer:         os.Stderr,
	}
}

// Option configures the observability infrastructure.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithExporter selects the exporter by name: "none", "stdout" or "otlp".
func WithExporter(exporter string, endpoint string) Option {
	return func(c *Config) {
		c.Exporter = ExporterType(exporter)
		c.Endpoint = endpoint
	}
}

// WithInsecure disables TLS for OTLP.
func WithInsecure() Option {
	return func(c *Config) {
		c.Insecure = true
	}
}

// WithSampleRate sets the trace sampling rate.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithWriter redirects the stdout exporter.
func WithWriter(w io.Writer) Option {
	return func(c *Config) {
		c.Writer = w
	}
}
