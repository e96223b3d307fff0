// Package tool provides the domain model for the tools an agent can call
// against an IBM i system.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Tool represents a named capability exposed to an LLM client.
type Tool interface {
	// Name returns the stable identifier the client uses to call the tool.
	Name() string

	// Description tells the model when and why to choose the tool.
	Description() string

	// Category groups the tool with the catalog it was declared in.
	Category() string

	// InputSchema returns the JSON Schema of the arguments object.
	InputSchema() Schema

	// Annotations returns the tool's behavioral annotations.
	Annotations() Annotations

	// Execute runs the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage) (Result, error)
}

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, input json.RawMessage) (Result, error)

// Definition is a concrete implementation of Tool.
type Definition struct {
	name        string
	description string
	category    string
	inputSchema Schema
	annotations Annotations
	handler     Handler
}

// Name returns the tool name.
func (d *Definition) Name() string {
	return d.name
}

// Description returns the tool description.
func (d *Definition) Description() string {
	return d.description
}

// Category returns the catalog the tool belongs to.
func (d *Definition) Category() string {
	return d.category
}

// InputSchema returns the input schema.
func (d *Definition) InputSchema() Schema {
	if d.inputSchema.IsEmpty() {
		return ObjectSchema(nil)
	}
	return d.inputSchema
}

// Annotations returns the tool annotations.
func (d *Definition) Annotations() Annotations {
	return d.annotations
}

// Execute runs the tool handler.
func (d *Definition) Execute(ctx context.Context, input json.RawMessage) (Result, error) {
	if d.handler == nil {
		return Result{}, ErrNoHandler
	}
	return d.handler(ctx, input)
}

// Builder provides a fluent API for constructing tools.
type Builder struct {
	def *Definition
}

// NewBuilder creates a new tool builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		def: &Definition{
			name:        name,
			annotations: DefaultAnnotations(),
		},
	}
}

// WithDescription sets the tool description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.def.description = strings.TrimSpace(desc)
	return b
}

// WithCategory sets the catalog name.
func (b *Builder) WithCategory(category string) *Builder {
	b.def.category = category
	return b
}

// WithInputSchema sets the input schema.
func (b *Builder) WithInputSchema(schema Schema) *Builder {
	b.def.inputSchema = schema
	return b
}

// ReadOnly marks the tool as a pure query against system catalogs.
func (b *Builder) ReadOnly() *Builder {
	b.def.annotations.ReadOnly = true
	b.def.annotations.Idempotent = true
	b.def.annotations.RiskLevel = RiskNone
	return b
}

// Destructive marks the tool as changing system state.
func (b *Builder) Destructive() *Builder {
	b.def.annotations.ReadOnly = false
	b.def.annotations.Destructive = true
	b.def.annotations.RequiresApproval = true
	b.def.annotations.Cacheable = false
	if b.def.annotations.RiskLevel < RiskHigh {
		b.def.annotations.RiskLevel = RiskHigh
	}
	return b
}

// Cacheable marks the tool result as safe to serve from cache.
func (b *Builder) Cacheable() *Builder {
	b.def.annotations.Cacheable = true
	return b
}

// RequiresApproval marks the tool as requiring confirmation before it runs.
func (b *Builder) RequiresApproval() *Builder {
	b.def.annotations.RequiresApproval = true
	return b
}

// WithTimeout overrides the default execution timeout.
func (b *Builder) WithTimeout(seconds int) *Builder {
	b.def.annotations.Timeout = seconds
	return b
}

// WithTags adds tags to the tool.
func (b *Builder) WithTags(tags ...string) *Builder {
	b.def.annotations.Tags = append(b.def.annotations.Tags, tags...)
	return b
}

// WithHandler sets the tool handler function.
func (b *Builder) WithHandler(handler Handler) *Builder {
	b.def.handler = handler
	return b
}

// Build constructs the tool definition.
func (b *Builder) Build() (Tool, error) {
	if b.def.name == "" {
		return nil, ErrEmptyName
	}
	if b.def.handler == nil {
		return nil, fmt.Errorf("%s: %w", b.def.name, ErrNoHandler)
	}
	return b.def, nil
}

// MustBuild constructs the tool definition or panics on error.
func (b *Builder) MustBuild() Tool {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

// DecodeInput unmarshals tool arguments into T. Empty or null input yields
// the zero value so tools with all-optional arguments accept no arguments.
func DecodeInput[T any](input json.RawMessage) (T, error) {
	var v T
	trimmed := strings.TrimSpace(string(input))
	if trimmed == "" || trimmed == "null" {
		return v, nil
	}
	if err := json.Unmarshal(input, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return v, nil
}
