package redis

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ibmi-agents/db2i-go/domain/cache"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/cachetest"
)

func TestMatchPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		want   string
	}{
		{cache.Prefix, "db2i:tool:*"},
		{cache.SchemaPrefix("sample"), "db2i:tool:SAMPLE:*"},
		{"db2i:tool:LIB[1]:", `db2i:tool:LIB\[1\]:*`},
		{`a*b?c\`, `a\*b\?c\\*`},
	}

	for _, tt := range tests {
		if got := matchPrefix(tt.prefix); got != tt.want {
			t.Errorf("matchPrefix(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestCache_CancelledContext(t *testing.T) {
	t.Parallel()

	c := NewCacheFromClient(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := c.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get error = %v", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Set error = %v", err)
	}
	if _, err := c.Invalidate(ctx, cache.Prefix); !errors.Is(err, context.Canceled) {
		t.Errorf("Invalidate error = %v", err)
	}
}

func TestNewCache_Unreachable(t *testing.T) {
	t.Parallel()

	// Port 1 is never a Redis server.
	_, err := NewCache(DefaultConfig(), WithAddress("127.0.0.1:1"), WithTimeouts(200*time.Millisecond, time.Second, time.Second))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("NewCache error = %v, want ErrConnectionFailed", err)
	}
}

// TestCache_Live runs the shared cache suite against TEST_REDIS_ADDR. The
// database in TEST_REDIS_DB (default 15) is flushed first.
func TestCache_Live(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	db := 15
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			t.Fatalf("TEST_REDIS_DB: %v", err)
		}
		db = n
	}

	c, err := NewCache(DefaultConfig(), WithAddress(addr), WithDB(db))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := c.client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("FlushDB failed: %v", err)
	}
	cachetest.Run(t, c)
}
