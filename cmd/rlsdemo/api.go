package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/rlskit/pkg/httpserver"
	"github.com/dmitrymomot/rlskit/pkg/logger"
	"github.com/dmitrymomot/rlskit/pkg/pg"
	"github.com/dmitrymomot/rlskit/pkg/rls"
	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

type api struct {
	manager *rls.Manager
	store   tenant.Store
	acquire rls.Acquirer
	log     *slog.Logger

	// subdomains mirrors rls.Config.SubdomainResolution. When set, requests
	// the middleware treats as public never pick a tenant themselves.
	subdomains bool
}

func newRouter(cfg rls.Config, a *api, checks map[string]httpserver.Check, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthHandler(a.log, nil))
	r.Get("/readyz", httpserver.HealthHandler(a.log, checks))
	r.Handle("/metrics", metrics)

	r.Group(func(r chi.Router) {
		if cfg.SubdomainResolution {
			r.Use(rls.Middleware(cfg, a.manager, a.store, a.acquire, rls.WithMiddlewareLogger(a.log)))
		}
		r.Get("/whoami", a.whoami)
		r.Post("/documents", a.createDocument)
	})
	return r
}

// errWritten marks failures that happen after the response was sent.
var errWritten = errors.New("response already written")

// scoped runs h on a tenant-scoped connection. The connection set up by the
// middleware is used when present. Otherwise, without subdomain resolution,
// the tenant comes from the tenant_id query parameter; with it, the request
// is public and runs without a tenant.
func (a *api) scoped(w http.ResponseWriter, r *http.Request, h func(w http.ResponseWriter, r *http.Request, conn rls.Conn) error) {
	if conn, ok := rls.ConnFromContext(r.Context()); ok {
		if err := h(w, r, conn); err != nil && !errors.Is(err, errWritten) {
			a.fail(w, r, err)
		}
		return
	}

	var ref tenant.Ref
	if !a.subdomains {
		ref = tenant.ByID(r.URL.Query().Get("tenant_id"))
	}

	written := false
	err := a.manager.Run(r.Context(), a.acquire, ref, func(ctx context.Context, conn rls.Conn) error {
		err := h(w, r.WithContext(ctx), conn)
		written = err == nil || errors.Is(err, errWritten)
		return err
	})
	switch {
	case err == nil:
	case written:
		a.log.ErrorContext(r.Context(), "tenant context cleanup failed", logger.Error(err))
	default:
		a.fail(w, r, err)
	}
}

type whoamiResponse struct {
	Tenant          *tenant.Tenant `json:"tenant,omitempty"`
	SessionTenantID string         `json:"session_tenant_id,omitempty"`
	Documents       int64          `json:"documents"`
}

// whoami reports the tenant the request runs as and how many documents row
// security lets it see.
func (a *api) whoami(w http.ResponseWriter, r *http.Request) {
	a.scoped(w, r, a.writeWhoami)
}

func (a *api) writeWhoami(w http.ResponseWriter, r *http.Request, conn rls.Conn) error {
	ctx := r.Context()

	var resp whoamiResponse
	if err := conn.QueryRow(ctx, "SELECT count(*) FROM documents").Scan(&resp.Documents); err != nil {
		return err
	}
	resp.SessionTenantID, _ = a.manager.CurrentID(ctx, conn)
	if t, ok := tenant.FromContext(ctx); ok {
		resp.Tenant = t
	} else if t, ok := a.manager.Current(ctx, conn); ok {
		resp.Tenant = t
	}

	return writeJSON(w, http.StatusOK, resp)
}

type createDocumentRequest struct {
	Title    string `json:"title"`
	TenantID string `json:"tenant_id,omitempty"`
}

type document struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

const insertDocument = `INSERT INTO documents (tenant_id, title) VALUES ($1, $2)
	RETURNING id::text, tenant_id::text, title, created_at`

// createDocument inserts a document stamped with the active tenant. A
// tenant_id in the body is only used when no tenant is active, and row
// security still rejects it unless it matches the session.
func (a *api) createDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.fail(w, r, fmt.Errorf("%w: decode body: %w", tenant.ErrInvalidArgument, err))
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		a.fail(w, r, fmt.Errorf("%w: title is required", tenant.ErrInvalidArgument))
		return
	}

	a.scoped(w, r, func(w http.ResponseWriter, r *http.Request, conn rls.Conn) error {
		ctx := r.Context()

		tenantID, err := a.manager.StampTenantID(ctx, conn, req.TenantID)
		if err != nil {
			return err
		}

		var doc document
		if err := conn.QueryRow(ctx, insertDocument, tenantID, req.Title).
			Scan(&doc.ID, &doc.TenantID, &doc.Title, &doc.CreatedAt); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		a.log.InfoContext(ctx, "document created", logger.TenantID(doc.TenantID), slog.String("document_id", doc.ID))

		return writeJSON(w, http.StatusCreated, doc)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return errors.Join(errWritten, err)
	}
	return nil
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case tenant.IsNotFound(err), pg.IsForeignKeyViolationError(err):
		status = http.StatusNotFound
	case errors.Is(err, tenant.ErrInvalidArgument):
		status = http.StatusBadRequest
	case pg.IsInsufficientPrivilegeError(err):
		status = http.StatusForbidden
	}
	if status >= http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed", logger.Error(err))
	} else {
		a.log.InfoContext(r.Context(), "request rejected", slog.Int("status", status), logger.Error(err))
	}
	http.Error(w, http.StatusText(status), status)
}
