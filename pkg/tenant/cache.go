package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/rlskit/pkg/cache"
)

// Cache is the interface for tenant caching implementations.
type Cache interface {
	// Get retrieves a tenant from cache by key.
	Get(ctx context.Context, key string) (*Tenant, bool)

	// Set stores a tenant in cache.
	Set(ctx context.Context, key string, tenant *Tenant) error

	// Delete removes a tenant from cache.
	Delete(ctx context.Context, key string) error
}

const (
	// DefaultCacheSize is the default maximum number of items in the cache.
	DefaultCacheSize = 1000

	// DefaultCacheTTL bounds how long a renamed or removed tenant can stay visible.
	DefaultCacheTTL = 5 * time.Minute
)

// InMemoryCache is an LRU cache with per-entry expiry.
type InMemoryCache struct {
	lru *cache.LRUCache[string, cacheEntry]
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

type cacheEntry struct {
	tenant    *Tenant
	expiresAt time.Time
}

// NewInMemoryCache creates an in-memory cache and starts its cleanup loop.
// Non-positive size or ttl fall back to the defaults.
func NewInMemoryCache(maxSize int, ttl time.Duration) *InMemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	c := &InMemoryCache{
		lru:  cache.NewLRUCache[string, cacheEntry](maxSize),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go c.cleanup(time.Minute)

	return c
}

// Get retrieves a tenant from cache. Expired entries are dropped on read.
func (c *InMemoryCache) Get(_ context.Context, key string) (*Tenant, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.tenant, true
}

// Set stores a tenant in cache, evicting the least recently used entry when full.
func (c *InMemoryCache) Set(_ context.Context, key string, tenant *Tenant) error {
	c.lru.Put(key, cacheEntry{tenant: tenant, expiresAt: c.now().Add(c.ttl)})
	return nil
}

// Delete removes a tenant from cache.
func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *InMemoryCache) Len() int {
	return c.lru.Len()
}

func (c *InMemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *InMemoryCache) removeExpired() int {
	now := c.now()
	return c.lru.RemoveFunc(func(_ string, e cacheEntry) bool {
		return now.After(e.expiresAt)
	})
}

// Close stops the cleanup goroutine and waits for it to finish.
func (c *InMemoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// NoOpCache disables caching, useful for testing or when caching is unwanted.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string) (*Tenant, bool) { return nil, false }
func (NoOpCache) Set(context.Context, string, *Tenant) error  { return nil }
func (NoOpCache) Delete(context.Context, string) error        { return nil }
