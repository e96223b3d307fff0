package mongodb_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ibmi-agents/db2i-go/domain/note"
	"github.com/ibmi-agents/db2i-go/domain/session"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/mongodb"
)

// newTestStore connects to TEST_MONGODB_URI using a throwaway database.
func newTestStore(t *testing.T) *mongodb.Store {
	t.Helper()

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}
	ctx := context.Background()

	client, err := mongodb.NewClient(ctx,
		mongodb.WithURI(uri),
		mongodb.WithDatabase("db2i_test_"+uuid.NewString()[:8]),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Database().Drop(context.Background())
		_ = client.Close(context.Background())
	})

	s, err := mongodb.NewStore(ctx, client)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := mongodb.DefaultConfig()
	if cfg.Database != "db2i" || cfg.URI != "mongodb://localhost:27017" {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
	mongodb.WithDatabase("")(&cfg)
	if cfg.Database != "db2i" {
		t.Errorf("empty WithDatabase changed database to %q", cfg.Database)
	}
}

func TestStore_Notes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, note.Note{Name: "ptf", Content: "first"})
	_ = s.Put(ctx, note.Note{Name: "audit", Content: "QSECOFR"})
	if err := s.Put(ctx, note.Note{Name: "ptf", Content: "second"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "ptf")
	if err != nil || got.Content != "second" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	list, err := s.List(ctx)
	if err != nil || len(list) != 2 || list[0].Name != "audit" {
		t.Errorf("List = %+v, %v", list, err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, note.ErrNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
}

func TestStore_Sessions(t *testing.T) {
	sessions := newTestStore(t).Sessions()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	_ = sessions.Create(ctx, session.Session{ID: "a", Agent: "jvm-assistant", CreatedAt: base})
	_ = sessions.Create(ctx, session.Session{ID: "b", CreatedAt: base.Add(time.Second)})
	if err := sessions.Create(ctx, session.Session{ID: "a"}); err != nil {
		t.Fatalf("re-Create should be a no-op: %v", err)
	}

	entry := session.Entry{Tool: "get_jvm_info", Input: json.RawMessage(`{"limit":5}`), Output: "rows", At: base}
	if err := sessions.Append(ctx, "a", entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := sessions.Append(ctx, "zzz", entry); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Append(missing) error = %v", err)
	}

	got, err := sessions.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Agent != "jvm-assistant" || len(got.Entries) != 1 || string(got.Entries[0].Input) != `{"limit":5}` {
		t.Errorf("Get = %+v", got)
	}

	list, err := sessions.List(ctx, 1)
	if err != nil || len(list) != 1 || list[0].ID != "b" {
		t.Errorf("List = %+v, %v", list, err)
	}
}
