package dkim

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheStats reports key cache activity since creation or the last reset.
type CacheStats struct {
	Queries uint64
	Hits    uint64
	Expired uint64
	Keys    uint64
}

type cacheEntry struct {
	record  *Record
	expires time.Time
}

// keyCache holds parsed key records by query name. Entries expire after ttl.
type keyCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	stats CacheStats
}

func newKeyCache(size int, ttl time.Duration) (*keyCache, error) {
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &keyCache{lru: c, ttl: ttl}, nil
}

func (c *keyCache) get(name string) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Queries++
	e, ok := c.lru.Get(name)
	if !ok {
		metricKeyCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	if timeNow().After(e.expires) {
		c.lru.Remove(name)
		c.stats.Expired++
		metricKeyCache.WithLabelValues("expired").Inc()
		return nil, false
	}
	c.stats.Hits++
	metricKeyCache.WithLabelValues("hit").Inc()
	return e.record, true
}

func (c *keyCache) add(name string, r *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(name, cacheEntry{record: r, expires: timeNow().Add(c.ttl)})
}

// flush drops every entry and returns how many there were.
func (c *keyCache) flush() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lru.Len()
	c.lru.Purge()
	return n
}

func (c *keyCache) snapshot(reset bool) CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Keys = uint64(c.lru.Len())
	if reset {
		c.stats = CacheStats{}
	}
	return s
}
