package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ibmi-agents/db2i-go/domain/cache"
	"github.com/ibmi-agents/db2i-go/domain/note"
	"github.com/ibmi-agents/db2i-go/domain/session"
	"github.com/ibmi-agents/db2i-go/infrastructure/config"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage"
)

func TestSelect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings config.Settings
		want     string
	}{
		{"default", config.Settings{}, storage.BackendMemory},
		{"sqlite wins", config.Settings{UseSQLite: true, DatabaseURL: "postgres://x", MongoURI: "mongodb://y"}, storage.BackendSQLite},
		{"postgres before mongo", config.Settings{DatabaseURL: "postgres://x", MongoURI: "mongodb://y"}, storage.BackendPostgres},
		{"mongo", config.Settings{MongoURI: "mongodb://y"}, storage.BackendMongoDB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := storage.Select(&tt.settings); got != tt.want {
				t.Errorf("Select() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOpen_Memory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b, err := storage.Open(ctx, &config.Settings{CacheBackend: "memory"}, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = b.Close(ctx) }()

	if b.Kind != storage.BackendMemory || b.CacheKind != storage.BackendMemory || b.Cache == nil {
		t.Errorf("backends = %s/%s, cache nil = %v", b.Kind, b.CacheKind, b.Cache == nil)
	}
	if err := b.Notes.Put(ctx, note.Note{Name: "n", Content: "c"}); err != nil {
		t.Errorf("Put failed: %v", err)
	}
}

func TestOpen_SQLiteSharesHandle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := &config.Settings{
		UseSQLite:    true,
		SQLitePath:   filepath.Join(t.TempDir(), "agents.db"),
		CacheBackend: "sqlite",
	}
	b, err := storage.Open(ctx, s, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = b.Close(ctx) }()

	if b.Kind != storage.BackendSQLite || b.CacheKind != storage.BackendSQLite {
		t.Fatalf("backends = %s/%s", b.Kind, b.CacheKind)
	}
	if err := b.Sessions.Create(ctx, session.New("security-assistant")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	key := cache.Key{Schema: "SAMPLE", Tool: "list_tables"}.String()
	if err := b.Cache.Set(ctx, key, []byte("v"), 0); err != nil {
		t.Fatalf("cache Set failed: %v", err)
	}
	if n, err := b.Cache.Invalidate(ctx, cache.SchemaPrefix("SAMPLE")); err != nil || n != 1 {
		t.Errorf("cache Invalidate = %d, %v, want 1", n, err)
	}
	if list, _ := b.Sessions.List(ctx, 0); len(list) != 1 {
		t.Errorf("sessions = %d, want 1", len(list))
	}
}

func TestOpen_BadgerAndNone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b, err := storage.Open(ctx, &config.Settings{CacheBackend: "badger", BadgerDir: t.TempDir()}, "")
	if err != nil {
		t.Fatalf("Open(badger) failed: %v", err)
	}
	if b.Cache == nil {
		t.Error("badger cache is nil")
	}
	if err := b.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	b, err = storage.Open(ctx, &config.Settings{CacheBackend: "none"}, "")
	if err != nil {
		t.Fatalf("Open(none) failed: %v", err)
	}
	if b.Cache != nil {
		t.Error("cache should be nil for none")
	}
}

func TestOpen_Unknown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if _, err := storage.Open(ctx, &config.Settings{}, "cassandra"); !errors.Is(err, storage.ErrUnknownBackend) {
		t.Errorf("Open(cassandra) error = %v", err)
	}
	if _, err := storage.Open(ctx, &config.Settings{CacheBackend: "memcached"}, ""); !errors.Is(err, storage.ErrUnknownBackend) {
		t.Errorf("Open(memcached cache) error = %v", err)
	}
}
