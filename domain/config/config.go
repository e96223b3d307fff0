// Package config provides the catalog of agents, teams, workflows and
// schedules loaded from configuration files.
package config

import (
	"time"

	"github.com/ibmi-agents/db2i-go/domain/profile"
	"github.com/ibmi-agents/db2i-go/domain/workflow"
)

// Catalog is the complete set of named configuration entries.
type Catalog struct {
	Agents    []profile.Agent     `json:"agents,omitempty" yaml:"agents,omitempty"`
	Teams     []profile.Team      `json:"teams,omitempty" yaml:"teams,omitempty"`
	Workflows []workflow.Workflow `json:"workflows,omitempty" yaml:"workflows,omitempty"`
	Schedules []Schedule          `json:"schedules,omitempty" yaml:"schedules,omitempty"`
}

// Schedule runs a workflow on a cron expression.
type Schedule struct {
	Name     string `json:"name" yaml:"name"`
	Cron     string `json:"cron" yaml:"cron"`
	Workflow string `json:"workflow" yaml:"workflow"`
	// Timeout bounds one run (default: no bound).
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Disabled keeps the entry without running it.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Agent returns the named agent.
func (c *Catalog) Agent(name string) (profile.Agent, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return profile.Agent{}, false
}

// Team returns the named team.
func (c *Catalog) Team(name string) (profile.Team, bool) {
	for _, t := range c.Teams {
		if t.Name == name {
			return t, true
		}
	}
	return profile.Team{}, false
}

// Workflow returns the named workflow.
func (c *Catalog) Workflow(name string) (workflow.Workflow, bool) {
	for _, w := range c.Workflows {
		if w.Name == name {
			return w, true
		}
	}
	return workflow.Workflow{}, false
}

// Merge returns a catalog holding c's entries with over's entries
// replacing those of the same name and appending the rest.
func (c *Catalog) Merge(over *Catalog) *Catalog {
	if over == nil {
		cp := *c
		return &cp
	}
	return &Catalog{
		Agents:    mergeNamed(c.Agents, over.Agents, func(a profile.Agent) string { return a.Name }),
		Teams:     mergeNamed(c.Teams, over.Teams, func(t profile.Team) string { return t.Name }),
		Workflows: mergeNamed(c.Workflows, over.Workflows, func(w workflow.Workflow) string { return w.Name }),
		Schedules: mergeNamed(c.Schedules, over.Schedules, func(s Schedule) string { return s.Name }),
	}
}

func mergeNamed[T any](base, over []T, name func(T) string) []T {
	idx := make(map[string]int, len(base))
	out := make([]T, 0, len(base)+len(over))
	for _, v := range base {
		idx[name(v)] = len(out)
		out = append(out, v)
	}
	for _, v := range over {
		if i, ok := idx[name(v)]; ok {
			out[i] = v
			continue
		}
		idx[name(v)] = len(out)
		out = append(out, v)
	}
	return out
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
