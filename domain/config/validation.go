package config

import (
	"fmt"
	"strings"

	"github.com/ibmi-agents/db2i-go/domain/workflow"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the path to the invalid entry.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates a catalog.
type Validator struct {
	// ToolExists reports whether a tool is registered. Nil skips tool checks.
	ToolExists func(name string) bool
	// LookupEnv enables provider credential checks when set.
	LookupEnv func(key string) (string, bool)
	// ParseCron checks cron expressions when set.
	ParseCron func(expr string) error

	Functions     map[string]workflow.Function
	EndConditions map[string]workflow.EndCondition

	errors ValidationErrors
}

// NewValidator creates a validator that knows the built-in workflow functions.
func NewValidator() *Validator {
	return &Validator{
		Functions:     workflow.Functions(),
		EndConditions: workflow.EndConditions(),
	}
}

// Validate validates the catalog and returns any errors.
func (v *Validator) Validate(c *Catalog) ValidationErrors {
	v.errors = nil

	v.validateAgents(c)
	v.validateTeams(c)
	v.validateWorkflows(c)
	v.validateSchedules(c)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateAgents(c *Catalog) {
	seen := map[string]bool{}
	for i, a := range c.Agents {
		path := fmt.Sprintf("agents[%d]", i)
		if a.Name != "" {
			path = fmt.Sprintf("agents.%s", a.Name)
		}
		if seen[a.Name] {
			v.addError(path, "duplicate agent name")
		}
		seen[a.Name] = true

		if err := a.Validate(); err != nil {
			v.addError(path, err.Error())
		}
		if v.ToolExists != nil {
			for _, t := range a.Tools {
				if t != "" && !v.ToolExists(t) {
					v.addError(path+".tools", fmt.Sprintf("unknown tool: %s", t))
				}
			}
		}
		if v.LookupEnv != nil {
			if spec, err := a.ModelSpec(); err == nil {
				if err := spec.CheckEnv(v.LookupEnv); err != nil {
					v.addError(path+".model", err.Error())
				}
			}
		}
	}
}

func (v *Validator) validateTeams(c *Catalog) {
	seen := map[string]bool{}
	for i, t := range c.Teams {
		path := fmt.Sprintf("teams[%d]", i)
		if t.Name != "" {
			path = fmt.Sprintf("teams.%s", t.Name)
		}
		if seen[t.Name] {
			v.addError(path, "duplicate team name")
		}
		seen[t.Name] = true

		if err := t.Validate(); err != nil {
			v.addError(path, err.Error())
		}
		for _, m := range t.Members {
			if _, ok := c.Agent(m); !ok {
				v.addError(path+".members", fmt.Sprintf("unknown agent: %s", m))
			}
		}
	}
}

func (v *Validator) validateWorkflows(c *Catalog) {
	seen := map[string]bool{}
	for i, w := range c.Workflows {
		path := fmt.Sprintf("workflows[%d]", i)
		if w.Name != "" {
			path = fmt.Sprintf("workflows.%s", w.Name)
		}
		if seen[w.Name] {
			v.addError(path, "duplicate workflow name")
		}
		seen[w.Name] = true

		if err := w.Validate(v.Functions, v.EndConditions); err != nil {
			v.addError(path, err.Error())
		}
		if v.ToolExists != nil {
			for _, t := range w.Tools() {
				if !v.ToolExists(t) {
					v.addError(path+".steps", fmt.Sprintf("unknown tool: %s", t))
				}
			}
		}
	}
}

func (v *Validator) validateSchedules(c *Catalog) {
	seen := map[string]bool{}
	for i, s := range c.Schedules {
		path := fmt.Sprintf("schedules[%d]", i)
		if s.Name == "" {
			v.addError(path+".name", "name is required")
		} else {
			path = fmt.Sprintf("schedules.%s", s.Name)
		}
		if seen[s.Name] {
			v.addError(path, "duplicate schedule name")
		}
		seen[s.Name] = true

		if strings.TrimSpace(s.Cron) == "" {
			v.addError(path+".cron", "cron expression is required")
		} else if v.ParseCron != nil {
			if err := v.ParseCron(s.Cron); err != nil {
				v.addError(path+".cron", fmt.Sprintf("invalid cron expression: %v", err))
			}
		}
		if _, ok := c.Workflow(s.Workflow); !ok {
			v.addError(path+".workflow", fmt.Sprintf("unknown workflow: %s", s.Workflow))
		}
		if s.Timeout < 0 {
			v.addError(path+".timeout", "timeout must be non-negative")
		}
	}
}
