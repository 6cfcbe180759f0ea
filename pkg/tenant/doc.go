// Package tenant identifies tenants for PostgreSQL row-level-security scoping.
//
// It covers the lookup side of multi-tenancy: turning whatever the caller has
// (a loaded tenant, a string id, an integer primary key, a request host) into
// a validated tenant id. Applying that id to a database session is the job of
// package rls.
//
// # Tenant references
//
// Ref is a closed sum type built with ByID, ByIntID, ByUUID or ByValue.
// Dynamic input is resolved once at the call boundary:
//
//	ref, err := tenant.RefOf(v) // *Tenant, Tenant, string, integers, uuid.UUID
//	if errors.Is(err, tenant.ErrInvalidArgument) {
//		// not something that can identify a tenant
//	}
//
// # Subdomains
//
// ExtractSubdomain maps "acme.example.com" and "acme.localhost:3000" to
// "acme", and "www.example.com" or "example.com" to "". NewSubdomainResolver
// wraps it as a Resolver that also rejects labels that are not DNS-safe.
//
// # Stores and caching
//
// Store is the lookup capability consumed by the rest of the module. PGStore
// implements it with pgx, CachingStore puts a Cache in front of any Store,
// and the caches come in three flavours: InMemoryCache (LRU with TTL),
// RedisCache (go-redis, shared between processes) and NoOpCache.
//
//	store := tenant.NewCachingStore(
//		tenant.NewPGStore(pool, tenant.WithSubdomainField("subdomain")),
//		tenant.NewInMemoryCache(0, 10*time.Minute),
//	)
//
// # Error Handling
//
//   - ErrInvalidArgument: input cannot identify a tenant
//   - ErrNotFound: tenant does not exist
//   - ErrNoTenantInContext: required tenant is missing from context
//   - ErrSubdomainFieldMissing: the tenants table lacks the subdomain column
package tenant
