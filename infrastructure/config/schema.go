package config

import (
	"encoding/json"

	"github.com/ibmi-agents/db2i-go/domain/profile"
)

// JSONSchema represents a JSON Schema (draft-07) document.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	ID                   string                 `json:"$id,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties any                    `json:"additionalProperties,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Default              any                    `json:"default,omitempty"`
	Minimum              *float64               `json:"minimum,omitempty"`
	MinLength            *int                   `json:"minLength,omitempty"`
	Pattern              string                 `json:"pattern,omitempty"`
	Ref                  string                 `json:"$ref,omitempty"`
	Definitions          map[string]*JSONSchema `json:"definitions,omitempty"`
}

// GenerateSchema generates the JSON Schema for catalog files.
func GenerateSchema() *JSONSchema {
	return &JSONSchema{
		Schema:               "http://json-schema.org/draft-07/schema#",
		ID:                   "https://github.com/ibmi-agents/db2i-go/catalog.schema.json",
		Title:                "db2i catalog",
		Description:          "Agents, teams, workflows and schedules for the db2i toolkit",
		Type:                 "object",
		AdditionalProperties: false,
		Properties: map[string]*JSONSchema{
			"agents":    {Type: "array", Description: "Agent definitions", Items: &JSONSchema{Ref: "#/definitions/agent"}},
			"teams":     {Type: "array", Description: "Teams of agents", Items: &JSONSchema{Ref: "#/definitions/team"}},
			"workflows": {Type: "array", Description: "Tool workflows", Items: &JSONSchema{Ref: "#/definitions/workflow"}},
			"schedules": {Type: "array", Description: "Cron schedules for workflows", Items: &JSONSchema{Ref: "#/definitions/schedule"}},
		},
		Definitions: map[string]*JSONSchema{
			"agent":    generateAgentSchema(),
			"team":     generateTeamSchema(),
			"workflow": generateWorkflowSchema(),
			"step":     generateStepSchema(),
			"schedule": generateScheduleSchema(),
		},
	}
}

func nameSchema() *JSONSchema {
	return &JSONSchema{Type: "string", MinLength: intPtr(1), Description: "Unique name"}
}

func text(description string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: description}
}

func stringList(description string) *JSONSchema {
	return &JSONSchema{Type: "array", Description: description, Items: &JSONSchema{Type: "string"}}
}

func generateAgentSchema() *JSONSchema {
	return &JSONSchema{
		Type:                 "object",
		Required:             []string{"name", "model"},
		AdditionalProperties: false,
		Properties: map[string]*JSONSchema{
			"name":         nameSchema(),
			"description":  text("What the agent is for"),
			"model":        {Type: "string", Description: "provider:model or a model alias", MinLength: intPtr(1)},
			"instructions": text("System instructions"),
			"tools":        stringList("Tool names the agent may call"),
			"storage":      text("Storage backend identifier"),
			"markdown":     {Type: "boolean", Description: "Format responses as markdown"},
		},
	}
}

func generateTeamSchema() *JSONSchema {
	return &JSONSchema{
		Type:                 "object",
		Required:             []string{"name", "mode", "members"},
		AdditionalProperties: false,
		Properties: map[string]*JSONSchema{
			"name":         nameSchema(),
			"description":  text("What the team is for"),
			"mode":         {Type: "string", Enum: []string{string(profile.Route), string(profile.Coordinate), string(profile.Collaborate)}},
			"model":        text("Leader model"),
			"members":      stringList("Agent names"),
			"instructions": text("Leader instructions"),
		},
	}
}

func generateWorkflowSchema() *JSONSchema {
	return &JSONSchema{
		Type:                 "object",
		Required:             []string{"name", "steps"},
		AdditionalProperties: false,
		Properties: map[string]*JSONSchema{
			"name":        nameSchema(),
			"description": text("What the workflow produces"),
			"steps":       {Type: "array", Items: &JSONSchema{Ref: "#/definitions/step"}},
		},
	}
}

func generateStepSchema() *JSONSchema {
	return &JSONSchema{
		Type:                 "object",
		Required:             []string{"name"},
		AdditionalProperties: false,
		Properties: map[string]*JSONSchema{
			"name":     nameSchema(),
			"tool":     text("Tool to call"),
			"input":    {Type: "object", Description: "Tool input"},
			"function": text("Built-in function to run"),
			"loop": {
				Type:                 "object",
				Required:             []string{"max_iterations", "steps"},
				AdditionalProperties: false,
				Properties: map[string]*JSONSchema{
					"max_iterations": {Type: "integer", Minimum: floatPtr(1)},
					"end_condition":  text("Built-in end condition"),
					"steps":          {Type: "array", Items: &JSONSchema{Ref: "#/definitions/step"}},
				},
			},
		},
	}
}

func generateScheduleSchema() *JSONSchema {
	return &JSONSchema{
		Type:                 "object",
		Required:             []string{"name", "cron", "workflow"},
		AdditionalProperties: false,
		Properties: map[string]*JSONSchema{
			"name":     nameSchema(),
			"cron":     text("Five-field cron expression or descriptor such as @daily"),
			"workflow": text("Workflow to run"),
			"timeout":  {Type: "string", Description: "Go duration bounding one run", Pattern: `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`},
			"disabled": {Type: "boolean"},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}

// SchemaJSON returns the JSON Schema as a JSON string.
func SchemaJSON() (string, error) {
	schema := GenerateSchema()
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
