package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ibmi-agents/db2i-go/domain/note"
)

// NoteStore keeps notes for the life of the process.
type NoteStore struct {
	mu    sync.RWMutex
	notes map[string]note.Note
}

// NewNoteStore creates an empty note store.
func NewNoteStore() *NoteStore {
	return &NoteStore{notes: make(map[string]note.Note)}
}

// Put creates or replaces a note.
func (s *NoteStore) Put(ctx context.Context, n note.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.Validate(); err != nil {
		return err
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.Name] = n
	return nil
}

// Get returns a note by name.
func (s *NoteStore) Get(ctx context.Context, name string) (note.Note, error) {
	if err := ctx.Err(); err != nil {
		return note.Note{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[name]
	if !ok {
		return note.Note{}, note.ErrNotFound
	}
	return n, nil
}

// List returns all notes ordered by name.
func (s *NoteStore) List(ctx context.Context) ([]note.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]note.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ note.Store = (*NoteStore)(nil)
