package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries is the default capacity of a MemoryCache.
const DefaultMemoryEntries = 256

// MemoryCache is an in-process LRU Cache. Entries do not survive the process.
type MemoryCache struct {
	entries *lru.Cache[string, []byte]
}

// NewMemoryCache creates a MemoryCache holding at most size entries.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &MemoryCache{entries: entries}, nil
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries.Get(key)
	return v, ok, nil
}

// Set implements Cache. The value is copied.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	c.entries.Add(key, append([]byte(nil), value...))
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(context.Context) error {
	c.entries.Purge()
	return nil
}

// Close implements Cache.
func (c *MemoryCache) Close() error {
	c.entries.Purge()
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}
