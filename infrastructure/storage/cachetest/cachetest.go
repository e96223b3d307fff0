// Package cachetest checks that a cache.Cache backend keeps tool results
// apart by schema and drops them by prefix.
package cachetest

import (
	"context"
	"errors"
	"testing"

	"github.com/ibmi-agents/db2i-go/domain/cache"
)

// Run exercises c. c must be empty.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	sample := cache.Key{Schema: "SAMPLE", Tool: "list_tables", Input: []byte(`{}`)}.String()
	sampleJobs := cache.Key{Schema: "SAMPLE", Tool: "get_active_jobs", Input: []byte(`{"limit":5}`)}.String()
	prod := cache.Key{Schema: "PRODLIB", Tool: "list_tables", Input: []byte(`{}`)}.String()

	for key, v := range map[string]string{sample: `["EMPLOYEE"]`, sampleJobs: `[]`, prod: `["ORDERS"]`} {
		if err := c.Set(ctx, key, []byte(v), 0); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	got, ok, err := c.Get(ctx, sample)
	if err != nil || !ok || string(got) != `["EMPLOYEE"]` {
		t.Fatalf("Get(sample) = %q, %v, %v", got, ok, err)
	}
	got[0] = 'x'
	if again, _, _ := c.Get(ctx, sample); string(again) != `["EMPLOYEE"]` {
		t.Errorf("stored value changed through a returned slice: %q", again)
	}

	if err := c.Set(ctx, sample, []byte(`["DEPARTMENT"]`), 0); err != nil {
		t.Fatalf("Set(replace) error = %v", err)
	}
	if got, _, _ := c.Get(ctx, sample); string(got) != `["DEPARTMENT"]` {
		t.Errorf("Get after replace = %q", got)
	}

	if _, ok, err := c.Get(ctx, cache.Key{Schema: "SAMPLE", Tool: "nope"}.String()); ok || err != nil {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}
	if err := c.Set(ctx, "", []byte("v"), 0); !errors.Is(err, cache.ErrInvalidKey) {
		t.Errorf("Set(\"\") error = %v, want ErrInvalidKey", err)
	}

	n, err := c.Invalidate(ctx, cache.SchemaPrefix("sample"))
	if err != nil || n != 2 {
		t.Fatalf("Invalidate(SAMPLE) = %d, %v, want 2", n, err)
	}
	if _, ok, _ := c.Get(ctx, sampleJobs); ok {
		t.Error("SAMPLE results should be gone")
	}
	if _, ok, _ := c.Get(ctx, prod); !ok {
		t.Error("PRODLIB results should survive a SAMPLE invalidation")
	}

	if n, err := c.Invalidate(ctx, cache.SchemaPrefix("SAMPLE")); err != nil || n != 0 {
		t.Errorf("second Invalidate(SAMPLE) = %d, %v, want 0", n, err)
	}
	if n, err := c.Invalidate(ctx, cache.Prefix); err != nil || n != 1 {
		t.Errorf("Invalidate(all) = %d, %v, want 1", n, err)
	}
	if _, ok, _ := c.Get(ctx, prod); ok {
		t.Error("PRODLIB results should be gone")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := c.Get(cancelled, prod); !errors.Is(err, context.Canceled) {
		t.Errorf("Get with cancelled context error = %v", err)
	}
	if err := c.Set(cancelled, prod, []byte("v"), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Set with cancelled context error = %v", err)
	}
	if _, err := c.Invalidate(cancelled, cache.Prefix); !errors.Is(err, context.Canceled) {
		t.Errorf("Invalidate with cancelled context error = %v", err)
	}
}
