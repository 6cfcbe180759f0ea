package tenant

import "errors"

var (
	// ErrNotFound is returned when a tenant cannot be found.
	ErrNotFound = errors.New("tenant not found")

	// ErrInvalidArgument is returned for input that cannot identify a tenant.
	ErrInvalidArgument = errors.New("invalid tenant argument")

	// ErrNoTenantInContext is returned when no tenant is found in context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrSubdomainFieldMissing is returned when the tenants table has no
	// column for the configured subdomain field.
	ErrSubdomainFieldMissing = errors.New("subdomain field not found on tenants table")
)
