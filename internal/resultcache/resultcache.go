// Package resultcache memoizes successful screenshot results keyed by
// (url, width, height, format) so repeat requests skip the pipeline entirely.
package resultcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is a cached screenshot result.
type Entry struct {
	URL       string
	Value     string // the signed artifact URL
	ExpiresAt time.Time
	createdAt time.Time
	accessedAt time.Time
}

func (e *Entry) expired(now time.Time) bool { return now.After(e.ExpiresAt) }

// Cache is a fixed-capacity, per-entry-TTL cache (spec §4.4).
type Cache struct {
	mu       sync.Mutex
	maxItems int
	ttl      time.Duration

	entries map[string]*Entry
	// fingerprints preserves the raw (url,w,h,fmt) tuple per key, so
	// Invalidate can lexically match against the original url.
	fingerprints map[string]string

	hits, misses int64
	lastCleanup  time.Time
	cleanupEvery time.Duration

	now func() time.Time
}

// New creates a Cache holding up to maxItems entries, each valid for ttl.
func New(maxItems int, ttl time.Duration) *Cache {
	return &Cache{
		maxItems:     maxItems,
		ttl:          ttl,
		entries:      make(map[string]*Entry),
		fingerprints: make(map[string]string),
		cleanupEvery: 5 * time.Minute,
		now:          time.Now,
	}
}

func fingerprint(url string, w, h int, format string) string {
	return fmt.Sprintf("%s|%d|%d|%s", url, w, h, format)
}

func key(fp string) string {
	sum := sha256.Sum256([]byte(fp))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value for (url,w,h,format) if present and unexpired.
// A stale hit is evicted and counted as a miss.
func (c *Cache) Get(url string, w, h int, format string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeCleanup()

	k := key(fingerprint(url, w, h, format))
	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return "", false
	}
	now := c.now()
	if e.expired(now) {
		delete(c.entries, k)
		delete(c.fingerprints, k)
		c.misses++
		return "", false
	}
	e.accessedAt = now
	c.hits++
	return e.Value, true
}

// Set stores value for (url,w,h,format), evicting the oldest-accessed 10% of
// entries first if the cache is at capacity.
func (c *Cache) Set(url string, w, h int, format, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fp := fingerprint(url, w, h, format)
	k := key(fp)
	now := c.now()

	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.maxItems {
		c.evictOldest()
	}

	c.entries[k] = &Entry{
		URL:        url,
		Value:      value,
		ExpiresAt:  now.Add(c.ttl),
		createdAt:  now,
		accessedAt: now,
	}
	c.fingerprints[k] = fp
}

func (c *Cache) evictOldest() {
	n := len(c.entries) / 10
	if n < 1 {
		n = 1
	}
	type kv struct {
		key      string
		accessed time.Time
	}
	ordered := make([]kv, 0, len(c.entries))
	for k, e := range c.entries {
		ordered = append(ordered, kv{k, e.accessedAt})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].accessed.Before(ordered[j].accessed) })
	for i := 0; i < n && i < len(ordered); i++ {
		delete(c.entries, ordered[i].key)
		delete(c.fingerprints, ordered[i].key)
	}
}

// Invalidate flushes the whole cache when url is empty, otherwise removes
// every entry whose fingerprint contains url as a substring.
func (c *Cache) Invalidate(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if url == "" {
		n := len(c.entries)
		c.entries = make(map[string]*Entry)
		c.fingerprints = make(map[string]string)
		return n
	}

	removed := 0
	for k, fp := range c.fingerprints {
		if strings.Contains(fp, url) {
			delete(c.entries, k)
			delete(c.fingerprints, k)
			removed++
		}
	}
	return removed
}

func (c *Cache) maybeCleanup() {
	now := c.now()
	if c.lastCleanup.IsZero() {
		c.lastCleanup = now
	}
	if now.Sub(c.lastCleanup) < c.cleanupEvery {
		return
	}
	c.lastCleanup = now
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			delete(c.fingerprints, k)
		}
	}
}

// Stats reports cache hit/miss counters and current size.
type Stats struct {
	Hits, Misses int64
	Size         int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}
