package profile_test

import (
	"errors"
	"testing"

	"github.com/ibmi-agents/db2i-go/domain/model"
	"github.com/ibmi-agents/db2i-go/domain/profile"
)

func TestAgent_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		agent   profile.Agent
		wantErr error
	}{
		{"valid", profile.Agent{Name: "ptf-assistant", Model: "openai:gpt-4o", Tools: []string{"get_ptf_currency_info", "get_missing_ptf_info"}}, nil},
		{"alias model", profile.Agent{Name: "a", Model: "gpt-4o-mini"}, nil},
		{"missing name", profile.Agent{Model: "openai:gpt-4o"}, profile.ErrMissingName},
		{"bad model", profile.Agent{Name: "a", Model: "openai"}, model.ErrInvalidSpec},
		{"unknown provider", profile.Agent{Name: "a", Model: "acme:x"}, model.ErrUnknownProvider},
		{"duplicate tool", profile.Agent{Name: "a", Model: "openai:gpt-4o", Tools: []string{"x", "x"}}, profile.ErrDuplicateTool},
		{"empty tool", profile.Agent{Name: "a", Model: "openai:gpt-4o", Tools: []string{" "}}, profile.ErrEmptyTool},
	}

	for _, tt := range tests {
		err := tt.agent.Validate()
		if tt.wantErr == nil {
			if err != nil {
				t.Errorf("%s: Validate() error = %v", tt.name, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) || !errors.Is(err, profile.ErrInvalidProfile) {
			t.Errorf("%s: Validate() error = %v, want %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestTeam_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		team    profile.Team
		wantErr error
	}{
		{"valid", profile.Team{Name: "ibmi-team", Mode: profile.Route, Members: []string{"ptf-assistant"}}, nil},
		{"unknown mode", profile.Team{Name: "t", Mode: "broadcast", Members: []string{"a"}}, profile.ErrUnknownMode},
		{"no members", profile.Team{Name: "t", Mode: profile.Coordinate}, profile.ErrNoMembers},
		{"duplicate member", profile.Team{Name: "t", Mode: profile.Collaborate, Members: []string{"a", "a"}}, profile.ErrDuplicateMember},
		{"bad model", profile.Team{Name: "t", Mode: profile.Route, Model: "nope", Members: []string{"a"}}, model.ErrInvalidSpec},
	}

	for _, tt := range tests {
		err := tt.team.Validate()
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: Validate() error = %v, want %v", tt.name, err, tt.wantErr)
		}
	}
}
