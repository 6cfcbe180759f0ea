package rls

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/dmitrymomot/rlskit/pkg/logger"
	"github.com/dmitrymomot/rlskit/pkg/pg"
	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

// peekQuery reads a custom setting without raising when it was never
// defined on the session. SHOW fails with 42704 in that case, which aborts
// an enclosing transaction.
const peekQuery = `SELECT coalesce(current_setting($1, true), '')`

// Session sets, reads and clears the tenant session variable on a
// connection. The value stays visible to every later statement on that
// connection until it is reset.
type Session struct {
	name  string
	log   *slog.Logger
	set   string
	reset string
	show  string
}

// NewSession builds a Session for cfg.SessionVar(). cfg must be valid.
func NewSession(cfg Config, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	name := cfg.SessionVar()
	return &Session{
		name:  name,
		log:   log.With(logger.Component("rls.session"), logger.SessionVar(name)),
		set:   "SET " + name + " = %s",
		reset: "RESET " + name,
		show:  "SHOW " + name,
	}
}

// Name returns the session variable name.
func (s *Session) Name() string {
	return s.name
}

// Set scopes conn to tenant id. SET cannot take bind parameters, so the
// value is sent as an escaped string literal.
func (s *Session) Set(ctx context.Context, conn Conn, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: blank tenant id", tenant.ErrInvalidArgument)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf(s.set, pq.QuoteLiteral(id))); err != nil {
		return fmt.Errorf("set %s: %w", s.name, err)
	}
	return nil
}

// Clear resets the variable to its default. Safe to call when nothing is set.
func (s *Session) Clear(ctx context.Context, conn Conn) error {
	if _, err := conn.Exec(ctx, s.reset); err != nil {
		return fmt.Errorf("reset %s: %w", s.name, err)
	}
	return nil
}

// Get returns the current tenant id. A closed connection, an unset value
// and a failed statement all read as "no tenant": a failed read must never
// be mistaken for an active tenant.
func (s *Session) Get(ctx context.Context, conn Conn) (string, bool) {
	if isClosed(conn) {
		return "", false
	}

	var v string
	if err := conn.QueryRow(ctx, s.show).Scan(&v); err != nil {
		// 42704: never set on this session.
		if !pg.IsUndefinedObjectError(err) {
			s.log.DebugContext(ctx, "tenant context read failed", logger.Error(err))
		}
		return "", false
	}

	v = strings.TrimSpace(v)
	return v, v != ""
}

// peek is Get for callers that may run inside a transaction.
func (s *Session) peek(ctx context.Context, conn Conn) (string, bool) {
	if isClosed(conn) {
		return "", false
	}

	var v string
	if err := conn.QueryRow(ctx, peekQuery, s.name).Scan(&v); err != nil {
		s.log.DebugContext(ctx, "tenant context peek failed", logger.Error(err))
		return "", false
	}

	v = strings.TrimSpace(v)
	return v, v != ""
}
