package rls

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

// ErrorHandler handles errors that occur during tenant resolution.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	resolver     tenant.Resolver
	errorHandler ErrorHandler
	skipPaths    []string
	logger       *slog.Logger
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithResolver replaces the subdomain resolver built from Config.
func WithResolver(r tenant.Resolver) MiddlewareOption {
	return func(c *middlewareConfig) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithSkipPaths sets path prefixes that bypass tenant resolution.
func WithSkipPaths(paths ...string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.skipPaths = append(c.skipPaths, paths...)
	}
}

// WithMiddlewareLogger sets the logger for request-level tenant logs.
func WithMiddlewareLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		http.Error(w, "Tenant not found", http.StatusNotFound)
	case errors.Is(err, tenant.ErrInvalidArgument):
		http.Error(w, "Invalid tenant identifier", http.StatusBadRequest)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
