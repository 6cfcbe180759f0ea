// Package cache provides a generic, thread-safe LRU cache.
//
// The cache holds a fixed number of items and evicts the least recently
// used one when a new item would exceed that capacity. Get and Put mark an
// item as recently used; Peek does not.
//
//	c := cache.NewLRUCache[string, *tenant.Tenant](1000)
//	c.Put(id, t)
//	t, ok := c.Get(id)
//
// RemoveFunc deletes every item matching a predicate, which callers use to
// sweep entries carrying their own expiry:
//
//	c.RemoveFunc(func(_ string, e entry) bool { return now.After(e.expiresAt) })
//
// SetEvictCallback observes items leaving the cache, e.g. to count evictions
// or release resources held by the value.
package cache
