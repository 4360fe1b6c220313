package podcast

import (
	"sync"
	"time"
)

// Cache maps feed fingerprints to built podcasts under a TTL. Lookups
// lazily evict expired entries; inserts scrub the whole map. Safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     func() time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	podcast    *Podcast
	insertedAt time.Time
}

// NewCache builds a cache whose TTL is re-read on every use, so runtime
// settings changes take effect without a restart.
func NewCache(ttl func() time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached podcast for fingerprint if still fresh. Expired
// entries are removed and reported as a miss.
func (c *Cache) Get(fingerprint string) (*Podcast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl() {
		delete(c.entries, fingerprint)
		return nil, false
	}
	return e.podcast, true
}

// Contains reports whether fingerprint has a fresh entry, without touching it.
func (c *Cache) Contains(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint]
	return ok && c.now().Sub(e.insertedAt) <= c.ttl()
}

// Put inserts a podcast and evicts every expired entry while it holds the
// lock anyway.
func (c *Cache) Put(fingerprint string, p *Podcast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	ttl := c.ttl()
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) > ttl {
			delete(c.entries, k)
		}
	}
	c.entries[fingerprint] = cacheEntry{podcast: p, insertedAt: now}
}

// DefaultViewCache memoizes each username's default music type under the
// same TTL regime as the podcast cache.
type DefaultViewCache struct {
	mu      sync.Mutex
	ttl     func() time.Duration
	now     func() time.Time
	entries map[string]viewEntry
}

type viewEntry struct {
	musicType  string
	insertedAt time.Time
}

// NewDefaultViewCache builds an empty default-view cache.
func NewDefaultViewCache(ttl func() time.Duration) *DefaultViewCache {
	return &DefaultViewCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]viewEntry),
	}
}

// Get returns the cached default music type for username, if fresh.
func (c *DefaultViewCache) Get(username string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[username]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.insertedAt) > c.ttl() {
		delete(c.entries, username)
		return "", false
	}
	return e.musicType, true
}

// Put records username's default music type.
func (c *DefaultViewCache) Put(username, musicType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[username] = viewEntry{musicType: musicType, insertedAt: c.now()}
}
