package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibmi-agents/db2i-go/domain/note"
	"github.com/ibmi-agents/db2i-go/domain/session"
)

// Store is a PostgreSQL-backed note.Store. Sessions share the pool.
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

// NewStore creates the tables in schema if needed.
func NewStore(ctx context.Context, pool *pgxpool.Pool, schema string) (*Store, error) {
	if schema == "" {
		schema = "public"
	}
	s := &Store{pool: pool, schema: schema}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{s.schema}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.table("notes")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table("sessions")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			session_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			seq BIGINT NOT NULL,
			tool TEXT NOT NULL,
			input JSONB,
			output TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			duration_ns BIGINT NOT NULL,
			at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`, s.table("session_entries"), s.table("sessions")),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return wrapError(err)
		}
	}
	return nil
}

// Put creates or replaces a note.
func (s *Store) Put(ctx context.Context, n note.Note) error {
	if err := n.Validate(); err != nil {
		return err
	}
	n.Name = strings.TrimSpace(n.Name)
	query := fmt.Sprintf(`
		INSERT INTO %s (name, content, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
	`, s.table("notes"))
	_, err := s.pool.Exec(ctx, query, n.Name, n.Content, time.Now().UTC())
	return wrapError(err)
}

// Get returns a note by name.
func (s *Store) Get(ctx context.Context, name string) (note.Note, error) {
	query := fmt.Sprintf(`SELECT name, content, updated_at FROM %s WHERE name = $1`, s.table("notes"))
	var n note.Note
	err := s.pool.QueryRow(ctx, query, name).Scan(&n.Name, &n.Content, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return note.Note{}, note.ErrNotFound
	}
	if err != nil {
		return note.Note{}, wrapError(err)
	}
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}

// List returns all notes ordered by name.
func (s *Store) List(ctx context.Context) ([]note.Note, error) {
	query := fmt.Sprintf(`SELECT name, content, updated_at FROM %s ORDER BY name`, s.table("notes"))
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var out []note.Note
	for rows.Next() {
		var n note.Note
		if err := rows.Scan(&n.Name, &n.Content, &n.UpdatedAt); err != nil {
			return nil, err
		}
		n.UpdatedAt = n.UpdatedAt.UTC()
		out = append(out, n)
	}
	return out, wrapError(rows.Err())
}

// Sessions returns the session.Store view of the database.
func (s *Store) Sessions() *SessionStore {
	return &SessionStore{store: s}
}

// SessionStore is the PostgreSQL session.Store.
type SessionStore struct {
	store *Store
}

// Create stores a new session. Creating an existing ID is a no-op.
func (s *SessionStore) Create(ctx context.Context, sess session.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	return pgx.BeginFunc(ctx, s.store.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %s (id, agent, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			s.store.table("sessions")), sess.ID, sess.Agent, sess.CreatedAt)
		if err != nil {
			return wrapError(err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		for _, e := range sess.Entries {
			if err := s.appendEntry(ctx, tx, sess.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Append adds an entry to a session.
func (s *SessionStore) Append(ctx context.Context, id string, e session.Entry) error {
	return pgx.BeginFunc(ctx, s.store.pool, func(tx pgx.Tx) error {
		var exists int
		err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1 FOR UPDATE`,
			s.store.table("sessions")), id).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return session.ErrNotFound
		}
		if err != nil {
			return wrapError(err)
		}
		return s.appendEntry(ctx, tx, id, e)
	})
}

func (s *SessionStore) appendEntry(ctx context.Context, tx pgx.Tx, id string, e session.Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	var input []byte
	if len(e.Input) > 0 {
		input = e.Input
	}
	entries := s.store.table("session_entries")
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (session_id, seq, tool, input, output, error, duration_ns, at)
		VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM %s WHERE session_id = $1), $2, $3, $4, $5, $6, $7)
	`, entries, entries), id, e.Tool, input, e.Output, e.Error, int64(e.Duration), e.At)
	return wrapError(err)
}

// Get returns a session with all of its entries.
func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	var sess session.Session
	err := s.store.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT id, agent, created_at FROM %s WHERE id = $1`, s.store.table("sessions")), id,
	).Scan(&sess.ID, &sess.Agent, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, wrapError(err)
	}
	sess.CreatedAt = sess.CreatedAt.UTC()

	rows, err := s.store.pool.Query(ctx, fmt.Sprintf(
		`SELECT tool, input, output, error, duration_ns, at FROM %s WHERE session_id = $1 ORDER BY seq`,
		s.store.table("session_entries")), id)
	if err != nil {
		return session.Session{}, wrapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var e session.Entry
		var input []byte
		var dur int64
		if err := rows.Scan(&e.Tool, &input, &e.Output, &e.Error, &dur, &e.At); err != nil {
			return session.Session{}, err
		}
		if len(input) > 0 {
			e.Input = json.RawMessage(input)
		}
		e.Duration = time.Duration(dur)
		e.At = e.At.UTC()
		sess.Entries = append(sess.Entries, e)
	}
	return sess, wrapError(rows.Err())
}

// List returns up to limit sessions, newest first, without entries.
func (s *SessionStore) List(ctx context.Context, limit int) ([]session.Session, error) {
	query := fmt.Sprintf(`SELECT id, agent, created_at FROM %s ORDER BY created_at DESC, id`,
		s.store.table("sessions"))
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.store.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		var sess session.Session
		if err := rows.Scan(&sess.ID, &sess.Agent, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sess.CreatedAt = sess.CreatedAt.UTC()
		out = append(out, sess)
	}
	return out, wrapError(rows.Err())
}

// wrapError wraps database errors with package errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrOperationTimeout, err)
	}
	return errors.Join(ErrConnectionFailed, err)
}

var (
	_ note.Store    = (*Store)(nil)
	_ session.Store = (*SessionStore)(nil)
)
