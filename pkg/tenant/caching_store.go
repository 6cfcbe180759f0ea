package tenant

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// CachingStore fronts a Store with a Cache. Concurrent misses for the same
// key share one store lookup. Existence checks are answered from the cached
// tenant when present; negative results are never cached.
type CachingStore struct {
	next  Store
	cache Cache
	group singleflight.Group
}

// NewCachingStore wraps next. A nil cache disables caching.
func NewCachingStore(next Store, cache Cache) *CachingStore {
	if cache == nil {
		cache = NoOpCache{}
	}
	return &CachingStore{next: next, cache: cache}
}

func idKey(id string) string         { return "id:" + id }
func subdomainKey(sub string) string { return "sub:" + sub }

func (s *CachingStore) Exists(ctx context.Context, id string) (bool, error) {
	if _, ok := s.cache.Get(ctx, idKey(id)); ok {
		return true, nil
	}
	return s.next.Exists(ctx, id)
}

func (s *CachingStore) GetByID(ctx context.Context, id string) (*Tenant, error) {
	return s.load(ctx, idKey(id), func(ctx context.Context) (*Tenant, error) {
		return s.next.GetByID(ctx, id)
	})
}

func (s *CachingStore) GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	return s.load(ctx, subdomainKey(subdomain), func(ctx context.Context) (*Tenant, error) {
		return s.next.GetBySubdomain(ctx, subdomain)
	})
}

// Invalidate drops every cached entry for t. Call it after renaming a tenant
// or changing its subdomain.
func (s *CachingStore) Invalidate(ctx context.Context, t *Tenant) error {
	if t == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, idKey(t.ID.String())); err != nil {
		return err
	}
	if t.Subdomain != "" {
		return s.cache.Delete(ctx, subdomainKey(t.Subdomain))
	}
	return nil
}

func (s *CachingStore) load(ctx context.Context, key string, fetch func(context.Context) (*Tenant, error)) (*Tenant, error) {
	if t, ok := s.cache.Get(ctx, key); ok {
		return t, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		t, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		// A failed cache write only costs a future lookup.
		_ = s.cache.Set(ctx, idKey(t.ID.String()), t)
		if t.Subdomain != "" {
			_ = s.cache.Set(ctx, subdomainKey(t.Subdomain), t)
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tenant), nil
}
