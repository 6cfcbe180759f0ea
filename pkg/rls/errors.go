package rls

import "errors"

var (
	// ErrConfiguration is returned for a missing or invalid setting.
	ErrConfiguration = errors.New("rls: invalid configuration")

	// ErrSecurity is returned when the database role could defeat row security.
	// Treat it as fatal at startup.
	ErrSecurity = errors.New("rls: insecure database role")

	// ErrResetFailed is joined into errors when the tenant context could not
	// be cleared. The connection must not be reused.
	ErrResetFailed = errors.New("rls: failed to reset tenant context")

	// ErrAcquireFailed is returned when no connection could be checked out.
	ErrAcquireFailed = errors.New("rls: failed to acquire connection")
)
