// Package config loads process settings from the environment and the
// agent catalog from YAML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ibmi-agents/db2i-go/domain/config"
)

// Loader loads catalog files.
type Loader struct {
	// ExpandEnv enables environment variable expansion.
	ExpandEnv bool
	// StrictEnv fails if referenced env vars are missing.
	StrictEnv bool
	// Validate enables schema and catalog validation.
	Validate bool
	// Validator checks the decoded catalog (default NewValidator()).
	Validator *config.Validator
	// LookupEnv resolves variables during expansion (default os.LookupEnv).
	LookupEnv func(string) (string, bool)
	// Base, when set, is merged under every loaded catalog before
	// validation, so files may refer to its entries.
	Base *config.Catalog
}

// NewLoader creates a new configuration loader with default settings.
func NewLoader() *Loader {
	return &Loader{
		ExpandEnv: true,
		StrictEnv: false,
		Validate:  true,
	}
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithEnvExpansion enables or disables environment variable expansion.
func WithEnvExpansion(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.ExpandEnv = enabled
	}
}

// WithStrictEnv enables strict environment variable checking.
func WithStrictEnv(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.StrictEnv = enabled
	}
}

// WithValidation enables or disables configuration validation.
func WithValidation(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.Validate = enabled
	}
}

// WithValidator replaces the catalog validator.
func WithValidator(v *config.Validator) LoaderOption {
	return func(l *Loader) {
		l.Validator = v
	}
}

// WithBase merges every loaded catalog over base.
func WithBase(base *config.Catalog) LoaderOption {
	return func(l *Loader) {
		l.Base = base
	}
}

// NewLoaderWithOptions creates a loader with the specified options.
func NewLoaderWithOptions(opts ...LoaderOption) *Loader {
	l := NewLoader()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Format represents a configuration file format.
type Format string

const (
	// FormatYAML is the YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is the JSON format.
	FormatJSON Format = "json"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, ext)
	}
}

// LoadFile loads a catalog from a file path.
func (l *Loader) LoadFile(path string) (*config.Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to access config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", config.ErrInvalidFormat, path)
	}

	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return l.Load(f, format)
}

// Load loads a catalog from a reader.
func (l *Loader) Load(r io.Reader, format Format) (*config.Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if l.ExpandEnv {
		expanded, err := ExpandWith(string(data), l.LookupEnv, l.StrictEnv)
		if err != nil {
			return nil, err
		}
		data = []byte(expanded)
	}

	var doc any
	cat := &config.Catalog{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
		}
		if err := yaml.Unmarshal(data, cat); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
		}
		if err := json.Unmarshal(data, cat); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, format)
	}

	if l.Base != nil {
		cat = l.Base.Merge(cat)
	}

	if !l.Validate {
		return cat, nil
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	validator := l.Validator
	if validator == nil {
		validator = config.NewValidator()
	}
	if errs := validator.Validate(cat); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %w", config.ErrValidationFailed, errs)
	}
	return cat, nil
}

// ValidateDocument checks a decoded catalog document against GenerateSchema.
func ValidateDocument(doc any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(GenerateSchema()),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
	}
	if result.Valid() {
		return nil
	}
	var errs config.ValidationErrors
	for _, re := range result.Errors() {
		errs = append(errs, config.ValidationError{Path: re.Field(), Message: re.Description()})
	}
	return errors.Join(config.ErrValidationFailed, errs)
}

// LoadString loads a catalog from a string.
func (l *Loader) LoadString(content string, format Format) (*config.Catalog, error) {
	return l.Load(strings.NewReader(content), format)
}

// LoadBytes loads a catalog from bytes.
func (l *Loader) LoadBytes(data []byte, format Format) (*config.Catalog, error) {
	return l.Load(strings.NewReader(string(data)), format)
}
