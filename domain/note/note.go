// Package note models the free-form notes an MCP client can attach to a
// database session.
package note

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no note has the requested name.
	ErrNotFound = errors.New("note not found")

	// ErrMissingField is returned when a note has no name or no content.
	ErrMissingField = errors.New("missing name or content")
)

// Note is a named piece of text. Adding a note under an existing name
// replaces its content.
type Note struct {
	Name      string    `json:"name" bson:"_id"`
	Content   string    `json:"content" bson:"content"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate checks that both fields are present.
func (n Note) Validate() error {
	if strings.TrimSpace(n.Name) == "" || n.Content == "" {
		return ErrMissingField
	}
	return nil
}

// Store persists notes.
type Store interface {
	// Put creates or replaces a note.
	Put(ctx context.Context, n Note) error

	// Get returns the note with the given name or ErrNotFound.
	Get(ctx context.Context, name string) (Note, error)

	// List returns all notes ordered by name.
	List(ctx context.Context) ([]Note, error)
}
