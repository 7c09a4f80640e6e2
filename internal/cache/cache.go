// Package cache provides a TTL cache for extracted documents keyed by URL.
package cache

import (
	"sync"
	"time"

	"github.com/webscout/webscout/internal/scout"
)

// DocumentCache holds extracted documents for a bounded lifetime. Bulk jobs
// often hit the same URL from multiple queries; the cache collapses those into
// one fetch.
type DocumentCache struct {
	mu        sync.RWMutex
	entries   map[string]entry
	ttl       time.Duration
	clock     scout.Clock
	lastPrune time.Time
}

type entry struct {
	doc     scout.Document
	expires time.Time
}

// New constructs a DocumentCache. A zero ttl defaults to one hour.
func New(ttl time.Duration, clock scout.Clock) *DocumentCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DocumentCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached document for url, if present and fresh.
func (c *DocumentCache) Get(url string) (scout.Document, bool) {
	c.mu.RLock()
	e, ok := c.entries[url]
	c.mu.RUnlock()
	if !ok || c.clock.Now().After(e.expires) {
		return scout.Document{}, false
	}
	return e.doc, true
}

// Put stores doc under url, replacing any prior entry. At most once per TTL
// window it also sweeps expired entries, so the cache cannot grow without
// bound between writes.
func (c *DocumentCache) Put(url string, doc scout.Document) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = entry{
		doc:     doc,
		expires: now.Add(c.ttl),
	}
	if now.Sub(c.lastPrune) >= c.ttl {
		c.pruneLocked(now)
	}
}

// Prune removes expired entries. Put does this opportunistically; Get never
// returns stale documents regardless.
func (c *DocumentCache) Prune() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked(now)
}

func (c *DocumentCache) pruneLocked(now time.Time) int {
	removed := 0
	for url, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, url)
			removed++
		}
	}
	c.lastPrune = now
	return removed
}

// Len reports the number of entries, including any not yet pruned.
func (c *DocumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
