package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ibmi-agents/db2i-go/domain/session"
)

// SessionStore keeps session transcripts for the life of the process.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*session.Session)}
}

// Create stores a new session. Creating an existing ID is a no-op.
func (s *SessionStore) Create(ctx context.Context, sess session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return nil
	}
	cp := sess
	cp.Entries = append([]session.Entry(nil), sess.Entries...)
	s.sessions[sess.ID] = &cp
	return nil
}

// Append adds an entry to a session.
func (s *SessionStore) Append(ctx context.Context, id string, e session.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	sess.Entries = append(sess.Entries, e)
	return nil
}

// Get returns a copy of the session.
func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	cp := *sess
	cp.Entries = append([]session.Entry(nil), sess.Entries...)
	return cp, nil
}

// List returns up to limit sessions, newest first, without entries.
func (s *SessionStore) List(ctx context.Context, limit int) ([]session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		cp.Entries = nil
		out = append(out, cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ session.Store = (*SessionStore)(nil)
