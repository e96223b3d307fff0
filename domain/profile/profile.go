// Package profile describes agents and teams: which model drives them,
// what they are told and which tools they may call.
package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ibmi-agents/db2i-go/domain/model"
)

var (
	ErrMissingName     = errors.New("name is required")
	ErrEmptyTool       = errors.New("tool name is empty")
	ErrDuplicateTool   = errors.New("duplicate tool")
	ErrNoMembers       = errors.New("team needs at least one member")
	ErrDuplicateMember = errors.New("duplicate team member")
	ErrUnknownMode     = errors.New("unknown team mode")
	ErrInvalidProfile  = errors.New("invalid profile")
)

// Agent is a model bound to instructions and a tool list.
type Agent struct {
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Model        string   `json:"model" yaml:"model"`
	Instructions string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Tools        []string `json:"tools" yaml:"tools"`
	Storage      string   `json:"storage,omitempty" yaml:"storage,omitempty"`
	Markdown     bool     `json:"markdown,omitempty" yaml:"markdown,omitempty"`
}

// ModelSpec parses the agent's model identifier.
func (a Agent) ModelSpec() (model.Spec, error) {
	return model.Resolve(a.Model)
}

// Validate checks the name, the model and that tool names are unique.
func (a Agent) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, ErrMissingName)
	}
	if _, err := a.ModelSpec(); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(a.Tools))
	for i, t := range a.Tools {
		switch {
		case strings.TrimSpace(t) == "":
			errs = append(errs, fmt.Errorf("tools[%d]: %w", i, ErrEmptyTool))
		case seen[t]:
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateTool, t))
		}
		seen[t] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: agent %q: %w", ErrInvalidProfile, a.Name, errors.Join(errs...))
	}
	return nil
}

// TeamMode is how a team's leader uses its members.
type TeamMode string

const (
	// Route hands each request to the single best member.
	Route TeamMode = "route"
	// Coordinate splits a request across members and merges the answers.
	Coordinate TeamMode = "coordinate"
	// Collaborate gives every member the same request.
	Collaborate TeamMode = "collaborate"
)

// Valid reports whether m is a known mode.
func (m TeamMode) Valid() bool {
	switch m {
	case Route, Coordinate, Collaborate:
		return true
	}
	return false
}

// Team groups agents under a leader model.
type Team struct {
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Mode         TeamMode `json:"mode" yaml:"mode"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Members      []string `json:"members" yaml:"members"`
	Instructions string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

// Validate checks the name, mode, optional model and member list.
func (t Team) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, ErrMissingName)
	}
	if !t.Mode.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownMode, t.Mode))
	}
	if t.Model != "" {
		if _, err := model.Resolve(t.Model); err != nil {
			errs = append(errs, err)
		}
	}
	if len(t.Members) == 0 {
		errs = append(errs, ErrNoMembers)
	}
	seen := make(map[string]bool, len(t.Members))
	for _, m := range t.Members {
		if seen[m] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateMember, m))
		}
		seen[m] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: team %q: %w", ErrInvalidProfile, t.Name, errors.Join(errs...))
	}
	return nil
}
