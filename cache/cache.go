package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/use-agent/deepcrawl/models"
)

// entry holds cached crawl results with their creation timestamp.
type entry struct {
	pages     []models.PageResult
	createdAt time.Time
}

// Cache is a simple in-memory cache of finished crawls, keyed by crawl
// configuration. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict entries older than
// 1 hour until Close is called.
func New(maxEntries int) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		done:       make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Key derives a cache key from everything that shapes a crawl's output:
// the crawl configuration and the extractor chain signature.
func Key(cfg models.CrawlConfig, extractor string) string {
	h := sha256.New()
	b, _ := json.Marshal(cfg)
	h.Write(b)
	h.Write([]byte("|"))
	h.Write([]byte(extractor))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns cached pages younger than maxAgeMs milliseconds.
// If maxAgeMs <= 0, no cache lookup is performed.
func (c *Cache) Get(key string, maxAgeMs int) ([]models.PageResult, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	out := make([]models.PageResult, len(e.pages))
	copy(out, e.pages)
	return out, true
}

// Set stores pages under key. If the cache is at capacity, a random entry
// is evicted to make room.
func (c *Cache) Set(key string, pages []models.PageResult) {
	stored := make([]models.PageResult, len(pages))
	copy(stored, pages)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random, so this evicts an arbitrary entry.
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		pages:     stored,
		createdAt: time.Now(),
	}
}

// Len returns the number of cached crawls.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictOlderThan(time.Hour)
		}
	}
}

func (c *Cache) evictOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
			n++
		}
	}
	return n
}
