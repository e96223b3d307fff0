// Package model parses "provider:model" identifiers and reports the
// environment each provider needs.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidSpec is returned for identifiers without a provider prefix.
	ErrInvalidSpec = errors.New("invalid model specification")

	// ErrUnknownProvider is returned for providers outside the supported set.
	ErrUnknownProvider = errors.New("unsupported provider")

	// ErrMissingEnv is returned when a provider's credentials are not set.
	ErrMissingEnv = errors.New("missing provider environment")
)

// Provider names a model vendor.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	WatsonX   Provider = "watsonx"
	Ollama    Provider = "ollama"
)

var providerEnv = map[Provider][]string{
	OpenAI:    {"OPENAI_API_KEY"},
	Anthropic: {"ANTHROPIC_API_KEY"},
	WatsonX:   {"IBM_WATSONX_API_KEY", "IBM_WATSONX_PROJECT_ID", "IBM_WATSONX_BASE_URL"},
	Ollama:    nil,
}

// Providers returns the supported providers in a stable order.
func Providers() []Provider {
	return []Provider{OpenAI, WatsonX, Anthropic, Ollama}
}

// Aliases maps short names to full specifications.
var Aliases = map[string]string{
	"gpt-4o":         "openai:gpt-4o",
	"gpt-4o-mini":    "openai:gpt-4o-mini",
	"gpt-4-turbo":    "openai:gpt-4-turbo",
	"gpt-3.5-turbo":  "openai:gpt-3.5-turbo",
	"llama-3.3":      "watsonx:llama-3-3-70b-instruct",
	"llama-3.1":      "watsonx:llama-3-1-70b-instruct",
	"granite-3":      "watsonx:granite-3-8b-instruct",
	"claude4-5":      "anthropic:claude-sonnet-4-5",
	"granite4-small": "ollama:granite4:small-h",
	"gpt-oss":        "ollama:gpt-oss:latest",
}

// Spec identifies a model at a provider.
type Spec struct {
	Provider Provider
	Model    string
}

// Parse splits "provider:model" on the first colon. The provider is
// case-insensitive; the model keeps any further colons.
func Parse(s string) (Spec, error) {
	provider, id, ok := strings.Cut(s, ":")
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q, expected format 'provider:model_id' (e.g. 'openai:gpt-4o')", ErrInvalidSpec, s)
	}
	p := Provider(strings.ToLower(strings.TrimSpace(provider)))
	if _, known := providerEnv[p]; !known {
		names := make([]string, 0, len(providerEnv))
		for _, q := range Providers() {
			names = append(names, string(q))
		}
		return Spec{}, fmt.Errorf("%w: %q, supported providers: %s", ErrUnknownProvider, p, strings.Join(names, ", "))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Spec{}, fmt.Errorf("%w: %q has no model id", ErrInvalidSpec, s)
	}
	return Spec{Provider: p, Model: id}, nil
}

// Resolve accepts a full specification or one of Aliases.
func Resolve(aliasOrSpec string) (Spec, error) {
	if strings.Contains(aliasOrSpec, ":") {
		return Parse(aliasOrSpec)
	}
	if full, ok := Aliases[aliasOrSpec]; ok {
		return Parse(full)
	}
	known := make([]string, 0, len(Aliases))
	for k := range Aliases {
		known = append(known, k)
	}
	sort.Strings(known)
	return Spec{}, fmt.Errorf("%w: unknown alias %q, available aliases: %s", ErrInvalidSpec, aliasOrSpec, strings.Join(known, ", "))
}

func (s Spec) String() string {
	return string(s.Provider) + ":" + s.Model
}

// RequiredEnv lists the environment variables the provider reads.
func (s Spec) RequiredEnv() []string {
	return append([]string(nil), providerEnv[s.Provider]...)
}

// CheckEnv reports the required variables that lookup cannot find or that are empty.
func (s Spec) CheckEnv(lookup func(string) (string, bool)) error {
	var missing []string
	for _, key := range s.RequiredEnv() {
		if v, ok := lookup(key); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s needs %s", ErrMissingEnv, s.Provider, strings.Join(missing, ", "))
	}
	return nil
}
