package webhook

import (
	"sync"
	"time"
)

// lookupCache keeps recently resolved CRM ids in-process so returning
// candidates skip the list call. Access refreshes the TTL. It narrows
// the lookup/create race for concurrent same-phone submissions but
// does not close it.
type lookupCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	id         int64
	lastAccess time.Time
}

func newLookupCache(ttl time.Duration) *lookupCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &lookupCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *lookupCache) get(key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	if time.Since(e.lastAccess) > c.ttl {
		delete(c.entries, key)
		return 0, false
	}

	e.lastAccess = time.Now()
	c.entries[key] = e
	return e.id, true
}

// evict drops an entry whose id turned out stale, e.g. when the CRM
// record was deleted behind the cache.
func (c *lookupCache) evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *lookupCache) put(key string, id int64) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{id: id, lastAccess: time.Now()}
}
