package apiclient

import (
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CacheStoreConfig tunes a CacheStore. The zero value gives a store with
// lazy expiry only and no size bound.
type CacheStoreConfig struct {
	// Capacity caps the number of entries; the least recently used entry
	// is evicted when it is exceeded. 0 means unbounded.
	Capacity uint64
	// Sweep starts a background janitor removing expired entries.
	Sweep bool
	// Now is the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

type cacheItem struct {
	value     any
	expiresAt time.Time
}

// CacheStore is a TTL keyed store for decoded GET responses. Expired entries
// are evicted when read, not proactively, unless Sweep is configured.
type CacheStore struct {
	items    *ttlcache.Cache[string, cacheItem]
	now      func() time.Time
	mu       sync.Mutex
	sweeping bool
}

// NewCacheStore creates an empty store.
func NewCacheStore(config CacheStoreConfig) *CacheStore {
	opts := []ttlcache.Option[string, cacheItem]{
		ttlcache.WithDisableTouchOnHit[string, cacheItem](),
	}
	if config.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, cacheItem](config.Capacity))
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	store := &CacheStore{
		items: ttlcache.New[string, cacheItem](opts...),
		now:   now,
	}
	if config.Sweep {
		store.sweeping = true
		go store.items.Start()
	}
	return store
}

// Get returns the live value stored under key. An expired entry is deleted
// and reported as a miss.
func (c *CacheStore) Get(key string) (any, bool) {
	item := c.items.Get(key)
	if item == nil {
		// ttlcache hides expired items without removing them
		c.items.Delete(key)
		return nil, false
	}

	entry := item.Value()
	if !c.now().Before(entry.expiresAt) {
		c.items.Delete(key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key for ttl, replacing any previous entry.
// Non-positive ttls are ignored.
func (c *CacheStore) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.items.Set(key, cacheItem{value: value, expiresAt: c.now().Add(ttl)}, ttl)
}

// Delete removes the entry stored under key.
func (c *CacheStore) Delete(key string) {
	c.items.Delete(key)
}

// DeleteSuffix removes every entry whose key ends with suffix and returns
// how many were removed.
func (c *CacheStore) DeleteSuffix(suffix string) int {
	removed := 0
	for _, key := range c.items.Keys() {
		if strings.HasSuffix(key, suffix) {
			c.items.Delete(key)
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (c *CacheStore) Clear() {
	c.items.DeleteAll()
}

// Len returns the number of resident entries.
func (c *CacheStore) Len() int {
	return c.items.Len()
}

// Close stops the janitor, if any, and drops all entries.
func (c *CacheStore) Close() {
	c.mu.Lock()
	if c.sweeping {
		c.items.Stop()
		c.sweeping = false
	}
	c.mu.Unlock()
	c.items.DeleteAll()
}
