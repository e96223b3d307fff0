// Package session models the transcript of tool calls made on behalf of an
// agent, a shell or a workflow run.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is an ordered log of tool calls.
type Session struct {
	ID        string    `json:"id" bson:"_id"`
	Agent     string    `json:"agent,omitempty" bson:"agent,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Entries   []Entry   `json:"entries,omitempty" bson:"entries,omitempty"`
}

// Entry records a single tool call.
type Entry struct {
	Tool     string          `json:"tool" bson:"tool"`
	Input    json.RawMessage `json:"input,omitempty" bson:"input,omitempty"`
	Output   string          `json:"output,omitempty" bson:"output,omitempty"`
	Error    string          `json:"error,omitempty" bson:"error,omitempty"`
	Duration time.Duration   `json:"duration" bson:"duration"`
	At       time.Time       `json:"at" bson:"at"`
}

// New returns a session with a fresh ID.
func New(agent string) Session {
	return Session{
		ID:        uuid.NewString(),
		Agent:     agent,
		CreatedAt: time.Now().UTC(),
	}
}

// Store persists sessions and their entries.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, s Session) error

	// Append adds an entry to an existing session.
	Append(ctx context.Context, id string, e Entry) error

	// Get returns a session with all of its entries.
	Get(ctx context.Context, id string) (Session, error)

	// List returns up to limit sessions, newest first, without entries.
	List(ctx context.Context, limit int) ([]Session, error)
}
