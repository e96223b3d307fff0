package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ibmi-agents/db2i-go/domain/note"
	"github.com/ibmi-agents/db2i-go/domain/session"
)

// Store is a MongoDB-backed note.Store.
type Store struct {
	notes        *mongo.Collection
	sessions     *mongo.Collection
	queryTimeout time.Duration
}

// NewStore returns a store over the notes and sessions collections and
// ensures the session index exists.
func NewStore(ctx context.Context, client *Client) (*Store, error) {
	s := &Store{
		notes:        client.Database().Collection("notes"),
		sessions:     client.Database().Collection("sessions"),
		queryTimeout: client.config.QueryTimeout,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return s, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// Put creates or replaces a note.
func (s *Store) Put(ctx context.Context, n note.Note) error {
	if err := n.Validate(); err != nil {
		return err
	}
	n.Name = strings.TrimSpace(n.Name)
	n.UpdatedAt = time.Now().UTC()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.notes.ReplaceOne(ctx, bson.M{"_id": n.Name}, n, options.Replace().SetUpsert(true))
	return wrapError(err)
}

// Get returns a note by name.
func (s *Store) Get(ctx context.Context, name string) (note.Note, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n note.Note
	err := s.notes.FindOne(ctx, bson.M{"_id": name}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
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
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.notes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, wrapError(err)
	}
	var out []note.Note
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

// Sessions returns the session.Store view of the database.
func (s *Store) Sessions() *SessionStore {
	return &SessionStore{store: s}
}

// SessionStore keeps each session as one document with embedded entries.
type SessionStore struct {
	store *Store
}

// sessionDocument stores entry input as a string so the document stays
// readable in the shell.
type sessionDocument struct {
	ID        string          `bson:"_id"`
	Agent     string          `bson:"agent,omitempty"`
	CreatedAt time.Time       `bson:"created_at"`
	Entries   []entryDocument `bson:"entries"`
}

type entryDocument struct {
	Tool     string    `bson:"tool"`
	Input    string    `bson:"input,omitempty"`
	Output   string    `bson:"output,omitempty"`
	Error    string    `bson:"error,omitempty"`
	Duration int64     `bson:"duration_ns"`
	At       time.Time `bson:"at"`
}

func toEntryDocument(e session.Entry) entryDocument {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return entryDocument{
		Tool:     e.Tool,
		Input:    string(e.Input),
		Output:   e.Output,
		Error:    e.Error,
		Duration: int64(e.Duration),
		At:       e.At,
	}
}

func (d sessionDocument) toSession() session.Session {
	sess := session.Session{ID: d.ID, Agent: d.Agent, CreatedAt: d.CreatedAt.UTC()}
	for _, e := range d.Entries {
		entry := session.Entry{
			Tool:     e.Tool,
			Output:   e.Output,
			Error:    e.Error,
			Duration: time.Duration(e.Duration),
			At:       e.At.UTC(),
		}
		if e.Input != "" {
			entry.Input = []byte(e.Input)
		}
		sess.Entries = append(sess.Entries, entry)
	}
	return sess
}

// Create stores a new session. Creating an existing ID is a no-op.
func (s *SessionStore) Create(ctx context.Context, sess session.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	doc := sessionDocument{ID: sess.ID, Agent: sess.Agent, CreatedAt: sess.CreatedAt, Entries: []entryDocument{}}
	for _, e := range sess.Entries {
		doc.Entries = append(doc.Entries, toEntryDocument(e))
	}

	ctx, cancel := s.store.withTimeout(ctx)
	defer cancel()
	_, err := s.store.sessions.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return wrapError(err)
}

// Append adds an entry to a session.
func (s *SessionStore) Append(ctx context.Context, id string, e session.Entry) error {
	ctx, cancel := s.store.withTimeout(ctx)
	defer cancel()

	res, err := s.store.sessions.UpdateByID(ctx, id, bson.M{"$push": bson.M{"entries": toEntryDocument(e)}})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Get returns a session with all of its entries.
func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	ctx, cancel := s.store.withTimeout(ctx)
	defer cancel()

	var doc sessionDocument
	err := s.store.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, wrapError(err)
	}
	return doc.toSession(), nil
}

// List returns up to limit sessions, newest first, without entries.
func (s *SessionStore) List(ctx context.Context, limit int) ([]session.Session, error) {
	ctx, cancel := s.store.withTimeout(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"entries": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.store.sessions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, wrapError(err)
	}
	var docs []sessionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapError(err)
	}
	out := make([]session.Session, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toSession())
	}
	return out, nil
}

var (
	_ note.Store    = (*Store)(nil)
	_ session.Store = (*SessionStore)(nil)
)
