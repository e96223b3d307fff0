package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ibmi-agents/db2i-go/domain/note"
	"github.com/ibmi-agents/db2i-go/domain/session"
)

// Store implements note.Store and session.Store on one database.
type Store struct {
	db *sql.DB
}

// NewStore creates the tables if needed and returns the store.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS notes (
			name TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS session_entries (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			tool TEXT NOT NULL,
			input BLOB,
			output TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			duration_ns INTEGER NOT NULL,
			at INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Put creates or replaces a note.
func (s *Store) Put(ctx context.Context, n note.Note) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (name, content, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		n.Name, n.Content, n.UpdatedAt.UnixNano())
	return err
}

// Get returns a note by name.
func (s *Store) Get(ctx context.Context, name string) (note.Note, error) {
	var n note.Note
	var updated int64
	err := s.db.QueryRowContext(ctx,
		"SELECT name, content, updated_at FROM notes WHERE name = ?", name,
	).Scan(&n.Name, &n.Content, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return note.Note{}, note.ErrNotFound
	}
	if err != nil {
		return note.Note{}, err
	}
	n.UpdatedAt = time.Unix(0, updated).UTC()
	return n, nil
}

// List returns all notes ordered by name.
func (s *Store) List(ctx context.Context) ([]note.Note, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, content, updated_at FROM notes ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []note.Note
	for rows.Next() {
		var n note.Note
		var updated int64
		if err := rows.Scan(&n.Name, &n.Content, &updated); err != nil {
			return nil, err
		}
		n.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// Sessions returns the session.Store view of the database.
func (s *Store) Sessions() *SessionStore {
	return &SessionStore{db: s.db}
}

// SessionStore is the SQLite session.Store.
type SessionStore struct {
	db *sql.DB
}

// Create stores a new session. Creating an existing ID is a no-op.
func (s *SessionStore) Create(ctx context.Context, sess session.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (id, agent, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING",
		sess.ID, sess.Agent, sess.CreatedAt.UnixNano())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		for _, e := range sess.Entries {
			if err := appendEntry(ctx, tx, sess.ID, e); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Append adds an entry to a session.
func (s *SessionStore) Append(ctx context.Context, id string, e session.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return session.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := appendEntry(ctx, tx, id, e); err != nil {
		return err
	}
	return tx.Commit()
}

func appendEntry(ctx context.Context, tx *sql.Tx, id string, e session.Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	var input []byte
	if len(e.Input) > 0 {
		input = e.Input
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO session_entries (session_id, seq, tool, input, output, error, duration_ns, at)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM session_entries WHERE session_id = ?), ?, ?, ?, ?, ?, ?)`,
		id, id, e.Tool, input, e.Output, e.Error, int64(e.Duration), e.At.UnixNano())
	return err
}

// Get returns a session with all of its entries.
func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	var sess session.Session
	var created int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, agent, created_at FROM sessions WHERE id = ?", id,
	).Scan(&sess.ID, &sess.Agent, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	sess.CreatedAt = time.Unix(0, created).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT tool, input, output, error, duration_ns, at FROM session_entries
		 WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return session.Session{}, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e session.Entry
		var input []byte
		var dur, at int64
		if err := rows.Scan(&e.Tool, &input, &e.Output, &e.Error, &dur, &at); err != nil {
			return session.Session{}, err
		}
		if len(input) > 0 {
			e.Input = json.RawMessage(input)
		}
		e.Duration = time.Duration(dur)
		e.At = time.Unix(0, at).UTC()
		sess.Entries = append(sess.Entries, e)
	}
	return sess, rows.Err()
}

// List returns up to limit sessions, newest first, without entries.
func (s *SessionStore) List(ctx context.Context, limit int) ([]session.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, agent, created_at FROM sessions ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []session.Session
	for rows.Next() {
		var sess session.Session
		var created int64
		if err := rows.Scan(&sess.ID, &sess.Agent, &created); err != nil {
			return nil, err
		}
		sess.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, sess)
	}
	return out, rows.Err()
}

var (
	_ note.Store    = (*Store)(nil)
	_ session.Store = (*SessionStore)(nil)
)
