// Package pack groups related IBM i tools into installable catalogs.
package pack

import (
	"fmt"

	"github.com/ibmi-agents/db2i-go/domain/tool"
)

// Pack is a named catalog of tools over one area of IBM i services.
type Pack struct {
	Name        string
	Description string
	Version     string
	Tools       []tool.Tool
}

// ToolNames returns the names of all tools in the pack.
func (p *Pack) ToolNames() []string {
	names := make([]string, len(p.Tools))
	for i, t := range p.Tools {
		names[i] = t.Name()
	}
	return names
}

// GetTool returns a tool by name from the pack.
func (p *Pack) GetTool(name string) (tool.Tool, bool) {
	for _, t := range p.Tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Install registers the tools of every pack. It stops at the first
// duplicate so one pack cannot shadow another's tool.
func Install(reg tool.Registry, packs ...*Pack) error {
	for _, p := range packs {
		if p == nil {
			return ErrInvalidPack
		}
		for _, t := range p.Tools {
			if err := reg.Register(t); err != nil {
				return fmt.Errorf("install pack %s: tool %s: %w", p.Name, t.Name(), err)
			}
		}
	}
	return nil
}

// Builder provides a fluent API for constructing packs.
type Builder struct {
	pack *Pack
	err  error
}

// NewBuilder creates a new pack builder.
func NewBuilder(name string) *Builder {
	return &Builder{pack: &Pack{Name: name, Version: "1.0.0"}}
}

// WithDescription sets the pack description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.pack.Description = desc
	return b
}

// WithVersion sets the pack version.
func (b *Builder) WithVersion(version string) *Builder {
	b.pack.Version = version
	return b
}

// AddTools adds tools to the pack. A name already in the pack fails Build.
func (b *Builder) AddTools(tools ...tool.Tool) *Builder {
	for _, t := range tools {
		if _, dup := b.pack.GetTool(t.Name()); dup && b.err == nil {
			b.err = fmt.Errorf("%w: duplicate tool %s in pack %s", ErrInvalidPack, t.Name(), b.pack.Name)
		}
		b.pack.Tools = append(b.pack.Tools, t)
	}
	return b
}

// Build returns the constructed pack.
func (b *Builder) Build() (*Pack, error) {
	if b.pack.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidPack)
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.pack, nil
}
