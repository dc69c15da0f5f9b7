package storage

import (
	"sync"
	"time"

	"github.com/HatiCode/dtsociety/pkg/table"
)

// CacheKey identifies a normalized and reshaped dataset view.
type CacheKey struct {
	Session   string
	DatasetID string
	GeoColumn string
	Reshape   string
}

type cacheEntry struct {
	table   *table.Table
	expires time.Time
}

// TableCache holds prepared tables for a limited time so repeated forecasts
// over the same selection skip normalization and reshaping. Cached tables
// are shared; callers must not modify them.
type TableCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[CacheKey]cacheEntry
	now     func() time.Time
}

// NewTableCache creates a cache whose entries expire after ttl. A
// non-positive ttl disables caching.
func NewTableCache(ttl time.Duration) *TableCache {
	return &TableCache{ttl: ttl, entries: make(map[CacheKey]cacheEntry), now: time.Now}
}

// Get returns the cached table for k.
func (c *TableCache) Get(k CacheKey) (*table.Table, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, k)
		return nil, false
	}
	return e.table, true
}

// Set stores t under k.
func (c *TableCache) Set(k CacheKey, t *table.Table) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = cacheEntry{table: t, expires: c.now().Add(c.ttl)}
}

// Invalidate drops every view of a dataset.
func (c *TableCache) Invalidate(session, datasetID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.Session == session && k.DatasetID == datasetID {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of live entries, evicting expired ones.
func (c *TableCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	return len(c.entries)
}
