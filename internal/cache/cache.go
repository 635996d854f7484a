// Package cache stores pre-expansion query results keyed by tenant and
// statement. Expansion and item-level filtering are recomputed per request,
// so entries hold exactly what the executor returned.
package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Entry is one cached result set. StoredAt drives both TTL enforcement and
// the age reported to callers.
type Entry struct {
	Columns  []string  `json:"columns"`
	Rows     [][]any   `json:"rows"`
	StoredAt time.Time `json:"stored_at"`
}

// Store is the result cache contract. Get reports the entry's age alongside
// the hit so callers can surface result freshness.
type Store interface {
	Get(ctx context.Context, key string) (Entry, time.Duration, bool, error)
	Put(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context, tenantID string) (int, error)
}

// Key derives the cache key for a statement executed on behalf of a tenant.
// The tenant id prefixes the key so identical SQL across tenants can never
// share an entry, and so flushes can target one tenant's keyspace.
func Key(tenantID, sql string) string {
	normalized := strings.Join(strings.Fields(sql), " ")
	return tenantID + ":" + strconv.FormatUint(xxhash.Sum64String(normalized), 16)
}
