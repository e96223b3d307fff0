// Package cache stores the text results of read-only IBM i tools. Keys are
// scoped by the Db2 schema the runtime was connected to, so the results of
// one schema can be dropped without touching the others.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Prefix starts every tool-result key.
const Prefix = "db2i:tool:"

// noSchema stands in for an empty schema so keys keep a fixed shape.
const noSchema = "-"

// Cache holds serialized tool results.
type Cache interface {
	// Get returns the value under key and whether it was found and live.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes every entry whose key starts with prefix and
	// returns how many were removed.
	Invalidate(ctx context.Context, prefix string) (int, error)
}

// Key identifies one tool invocation against one schema.
type Key struct {
	Schema string
	Tool   string
	Input  []byte
}

// String renders db2i:tool:<SCHEMA>:<tool>:<sha256 of input>.
func (k Key) String() string {
	sum := sha256.Sum256(k.Input)
	return SchemaPrefix(k.Schema) + k.Tool + ":" + hex.EncodeToString(sum[:])
}

// SchemaPrefix is the prefix shared by every key of schema. Schema names
// compare upper-cased, the way Db2 for i folds ordinary identifiers.
func SchemaPrefix(schema string) string {
	schema = strings.ToUpper(strings.TrimSpace(schema))
	if schema == "" {
		schema = noSchema
	}
	return Prefix + schema + ":"
}
