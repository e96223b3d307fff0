package tool

import (
	"encoding/json"
	"sort"
)

// Schema wraps a JSON Schema document describing tool arguments.
type Schema struct {
	raw json.RawMessage
}

// NewSchema creates a schema from raw JSON.
func NewSchema(raw json.RawMessage) Schema {
	return Schema{raw: raw}
}

// Property is a single argument in an object schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *int     `json:"minimum,omitempty"`
}

// String describes a string argument.
func String(description string) Property {
	return Property{Type: "string", Description: description}
}

// Enum describes a string argument restricted to values.
func Enum(description string, values ...string) Property {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return Property{Type: "string", Description: description, Enum: sorted}
}

// Integer describes a positive integer argument with a default.
func Integer(description string, def int) Property {
	one := 1
	p := Property{Type: "integer", Description: description, Minimum: &one}
	if def > 0 {
		p.Default = def
	}
	return p
}

// ObjectSchema returns a schema for an object with the given properties.
func ObjectSchema(properties map[string]Property, required ...string) Schema {
	if properties == nil {
		properties = map[string]Property{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return Schema{raw: raw}
}

// Raw returns the underlying JSON schema.
func (s Schema) Raw() json.RawMessage {
	return s.raw
}

// IsEmpty returns true if the schema is empty or nil.
func (s Schema) IsEmpty() bool {
	return len(s.raw) == 0 || string(s.raw) == "{}" || string(s.raw) == "null"
}

// Required returns the names listed in the schema's required array.
func (s Schema) Required() []string {
	var doc struct {
		Required []string `json:"required"`
	}
	if s.IsEmpty() || json.Unmarshal(s.raw, &doc) != nil {
		return nil
	}
	return doc.Required
}

// MarshalJSON implements json.Marshaler.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("{}"), nil
	}
	return s.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(data []byte) error {
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}
