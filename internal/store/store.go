// Package store provides the result cache backends used by the workflow
// engine: SQLite on disk, an in-memory LRU and Redis.
package store

import "context"

// Cache is a byte-valued key-value store for memoised step results.
type Cache interface {
	// Get returns the value stored under key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

var (
	_ Cache = (*SQLiteCache)(nil)
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
