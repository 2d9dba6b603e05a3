// Package matchcache holds search results keyed by normalized title with
// TTL-based validity. One instance is constructed at startup and passed by
// handle into the orchestrators; the persisted snapshot in the store is merged
// in explicitly rather than through hidden globals.
package matchcache

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"tsundoku/internal/catalog"
	"tsundoku/internal/logging"
	"tsundoku/internal/titles"
)

// Cache provides thread-safe access to cached catalog results.
type Cache struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	records map[string]catalog.CacheRecord
}

// New creates a cache whose records stay valid for ttl.
func New(ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		ttl:     ttl,
		logger:  logging.NewComponentLogger(logger, "matchcache"),
		now:     time.Now,
		records: make(map[string]catalog.CacheRecord),
	}
}

// Key reduces a title to its cache key.
func Key(title string) string {
	return titles.Normalize(title)
}

// IsValid reports whether a record exists for the key and is inside its TTL.
func (c *Cache) IsValid(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Get returns the record for the key when present and still valid.
func (c *Cache) Get(key string) (catalog.CacheRecord, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return catalog.CacheRecord{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[key]
	if !ok {
		return catalog.CacheRecord{}, false
	}
	if c.now().Sub(rec.FetchedAt) >= c.ttl {
		return catalog.CacheRecord{}, false
	}
	return rec, true
}

// Set stores the post-filter, post-rank result list for the key with a fresh
// fetch timestamp.
func (c *Cache) Set(key string, entries []catalog.CatalogEntry) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[key] = catalog.CacheRecord{
		Key:       key,
		Entries:   entries,
		FetchedAt: c.now(),
	}
	c.logger.Debug("cached search results",
		logging.String("key", key),
		logging.Int("entry_count", len(entries)))
}

// Delete removes the record for the key, if any. Bypass searches call this
// before skipping the cache so a stale record cannot leak into a later
// automatic read.
func (c *Cache) Delete(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, key)
}

// Clear discards every record.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]catalog.CacheRecord)
}

// Len returns the number of records, valid or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// SyncFromPersisted merges an externally persisted snapshot into the live map.
// In-memory records win whenever they are at least as fresh as the persisted
// copy, so a concurrent process can never roll the cache backwards.
func (c *Cache) SyncFromPersisted(records []catalog.CacheRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := 0
	for _, rec := range records {
		key := strings.TrimSpace(rec.Key)
		if key == "" {
			continue
		}
		if existing, ok := c.records[key]; ok && !existing.FetchedAt.Before(rec.FetchedAt) {
			continue
		}
		rec.Key = key
		c.records[key] = rec
		merged++
	}

	c.logger.Debug("synced cache from persisted snapshot",
		logging.Int("snapshot_count", len(records)),
		logging.Int("merged_count", merged))
}

// Snapshot returns every record sorted by key for persistence.
func (c *Cache) Snapshot() []catalog.CacheRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]catalog.CacheRecord, 0, len(c.records))
	for _, rec := range c.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records
}
