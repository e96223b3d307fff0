// Package workflow defines multi-step tool workflows and the quality
// checks that end their loops.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidWorkflow is returned by Validate.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrUnknownFunction is returned for unregistered executor or end condition names.
	ErrUnknownFunction = errors.New("unknown workflow function")
)

// Workflow is an ordered list of steps.
type Workflow struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Step runs a tool, a named function, or a loop. Exactly one is set.
type Step struct {
	Name     string         `json:"name" yaml:"name"`
	Tool     string         `json:"tool,omitempty" yaml:"tool,omitempty"`
	Input    map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
	Function string         `json:"function,omitempty" yaml:"function,omitempty"`
	Loop     *Loop          `json:"loop,omitempty" yaml:"loop,omitempty"`
}

// Loop repeats its steps until EndCondition passes or MaxIterations is reached.
type Loop struct {
	MaxIterations int    `json:"max_iterations" yaml:"max_iterations"`
	EndCondition  string `json:"end_condition,omitempty" yaml:"end_condition,omitempty"`
	Steps         []Step `json:"steps" yaml:"steps"`
}

// Kind classifies a step.
type Kind string

const (
	KindTool     Kind = "tool"
	KindFunction Kind = "function"
	KindLoop     Kind = "loop"
	KindInvalid  Kind = ""
)

// Kind reports what the step runs.
func (s Step) Kind() Kind {
	n := 0
	kind := KindInvalid
	if s.Tool != "" {
		n++
		kind = KindTool
	}
	if s.Function != "" {
		n++
		kind = KindFunction
	}
	if s.Loop != nil {
		n++
		kind = KindLoop
	}
	if n != 1 {
		return KindInvalid
	}
	return kind
}

// Output is the result of one step.
type Output struct {
	Step    string `json:"step"`
	Content string `json:"content"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// StepInput is what a step sees of the run so far.
type StepInput struct {
	Workflow  string
	Iteration int
	Previous  []Output
}

// PreviousContent joins the content of earlier steps.
func (in StepInput) PreviousContent() string {
	parts := make([]string, 0, len(in.Previous))
	for _, o := range in.Previous {
		if o.Content != "" {
			parts = append(parts, o.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Function is a named executor step.
type Function func(ctx context.Context, in StepInput) (Output, error)

// EndCondition decides whether a loop is done from the outputs of its
// latest iteration.
type EndCondition func(outputs []Output) bool

// Validate checks step shapes and names, using the known function and end
// condition names when non-nil.
func (w Workflow) Validate(functions map[string]Function, conditions map[string]EndCondition) error {
	var errs []error
	if strings.TrimSpace(w.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(w.Steps) == 0 {
		errs = append(errs, errors.New("at least one step is required"))
	}
	errs = append(errs, validateSteps("steps", w.Steps, functions, conditions)...)
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidWorkflow, w.Name, errors.Join(errs...))
	}
	return nil
}

func validateSteps(path string, steps []Step, functions map[string]Function, conditions map[string]EndCondition) []error {
	var errs []error
	for i, s := range steps {
		p := fmt.Sprintf("%s[%d]", path, i)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", p))
		}
		switch s.Kind() {
		case KindInvalid:
			errs = append(errs, fmt.Errorf("%s: exactly one of tool, function or loop is required", p))
		case KindFunction:
			if functions != nil && functions[s.Function] == nil {
				errs = append(errs, fmt.Errorf("%s: %w: %s", p, ErrUnknownFunction, s.Function))
			}
		case KindLoop:
			if s.Loop.MaxIterations < 1 {
				errs = append(errs, fmt.Errorf("%s.loop: max_iterations must be at least 1", p))
			}
			if len(s.Loop.Steps) == 0 {
				errs = append(errs, fmt.Errorf("%s.loop: at least one step is required", p))
			}
			if c := s.Loop.EndCondition; c != "" && conditions != nil && conditions[c] == nil {
				errs = append(errs, fmt.Errorf("%s.loop: %w: %s", p, ErrUnknownFunction, c))
			}
			errs = append(errs, validateSteps(p+".loop.steps", s.Loop.Steps, functions, conditions)...)
		}
	}
	return errs
}

// Tools lists every tool the workflow calls, in order of first use.
func (w Workflow) Tools() []string {
	seen := map[string]bool{}
	var out []string
	var walk func([]Step)
	walk = func(steps []Step) {
		for _, s := range steps {
			switch s.Kind() {
			case KindTool:
				if !seen[s.Tool] {
					seen[s.Tool] = true
					out = append(out, s.Tool)
				}
			case KindLoop:
				walk(s.Loop.Steps)
			}
		}
	}
	walk(w.Steps)
	return out
}
