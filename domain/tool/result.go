package tool

import (
	"encoding/json"
	"time"
)

// Result contains the output of a tool execution.
type Result struct {
	// Output is the result encoded as JSON. Text results are JSON strings.
	Output json.RawMessage `json:"output"`

	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`

	// Cached indicates if this result was served from cache.
	Cached bool `json:"cached,omitempty"`
}

// NewResult creates a successful result with the given output.
func NewResult(output json.RawMessage) Result {
	return Result{Output: output}
}

// TextResult wraps plain text, the form every IBM i tool answers in.
func TextResult(text string) Result {
	raw, _ := json.Marshal(text)
	return Result{Output: raw}
}

// JSONResult marshals v as the result output.
func JSONResult(v any) (Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: raw}, nil
}

// Text returns the output as text. JSON strings are unquoted; any other
// JSON value is returned verbatim.
func (r Result) Text() string {
	if len(r.Output) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Output, &s); err == nil {
		return s
	}
	return string(r.Output)
}
