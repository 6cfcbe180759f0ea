package rls

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/rlskit/pkg/logger"
	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

// Middleware resolves the tenant from the request subdomain and serves the
// request on a connection switched to that tenant. Handlers reach the
// connection through ConnFromContext and the tenant through
// tenant.FromContext. Requests without a tenant subdomain are served
// without tenant scope.
func Middleware(cfg Config, m *Manager, store tenant.Store, acquire Acquirer, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	mc := &middlewareConfig{
		resolver:     tenant.NewSubdomainResolver(cfg.SubdomainOptions()),
		errorHandler: defaultErrorHandler,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(mc)
	}
	log := mc.logger.With(logger.Component("rls.middleware"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range mc.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx := r.Context()
			reqAttrs := []any{slog.String("method", r.Method), slog.String("path", r.URL.Path)}

			subdomain, err := mc.resolver(r)
			if err != nil {
				log.WarnContext(ctx, "invalid tenant subdomain", append(reqAttrs, logger.Error(err))...)
				mc.errorHandler(w, r, err)
				return
			}
			if subdomain == "" {
				log.InfoContext(ctx, "public access", reqAttrs...)
				next.ServeHTTP(w, r)
				return
			}

			t, err := store.GetBySubdomain(ctx, subdomain)
			if err != nil {
				if tenant.IsNotFound(err) {
					log.WarnContext(ctx, "no tenant for subdomain", append(reqAttrs, slog.String("subdomain", subdomain))...)
					mc.errorHandler(w, r, fmt.Errorf("%w: no tenant for subdomain '%s'", tenant.ErrNotFound, subdomain))
					return
				}
				log.ErrorContext(ctx, "failed to resolve tenant", append(reqAttrs, slog.String("subdomain", subdomain), logger.Error(err))...)
				mc.errorHandler(w, r, err)
				return
			}

			log.InfoContext(ctx, fmt.Sprintf("%s %s -> tenant %s (%s)", r.Method, r.URL.Path, t.Name, t.ID),
				append(reqAttrs, logger.TenantID(t.ID))...)

			// t was just loaded from store, so the existence check is skipped.
			served := false
			err = m.run(ctx, acquire, tenant.ByValue(t), false, func(ctx context.Context, conn Conn) error {
				ctx = tenant.WithTenant(WithConn(ctx, conn), t)
				served = true
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
			if err == nil {
				return
			}
			if served {
				// The response is already written; the connection was discarded.
				log.ErrorContext(ctx, "tenant context cleanup failed", append(reqAttrs, logger.Error(err))...)
				return
			}
			log.ErrorContext(ctx, "failed to switch tenant", append(reqAttrs, logger.TenantID(t.ID), logger.Error(err))...)
			mc.errorHandler(w, r, err)
		})
	}
}
