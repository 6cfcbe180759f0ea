package tenant_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

func newTestTenant(subdomain string) *tenant.Tenant {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &tenant.Tenant{
		ID:        uuid.New(),
		Name:      subdomain + " inc",
		Subdomain: subdomain,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// memStore is an in-memory tenant.Store that counts backend calls.
type memStore struct {
	mu      sync.Mutex
	tenants map[string]*tenant.Tenant

	exists      atomic.Int32
	byID        atomic.Int32
	bySubdomain atomic.Int32

	delay time.Duration
	err   error
}

func newMemStore(tenants ...*tenant.Tenant) *memStore {
	s := &memStore{tenants: make(map[string]*tenant.Tenant)}
	for _, t := range tenants {
		s.tenants[t.ID.String()] = t
	}
	return s
}

func (s *memStore) Exists(_ context.Context, id string) (bool, error) {
	s.exists.Add(1)
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tenants[id]
	return ok, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*tenant.Tenant, error) {
	s.byID.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		return t, nil
	}
	return nil, tenant.ErrNotFound
}

func (s *memStore) GetBySubdomain(_ context.Context, sub string) (*tenant.Tenant, error) {
	s.bySubdomain.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Subdomain == sub {
			return t, nil
		}
	}
	return nil, tenant.ErrNotFound
}
