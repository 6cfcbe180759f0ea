package rls

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/rlskit/pkg/logger"
)

const resetTimeout = 5 * time.Second

// ResetOnRelease returns a pgxpool AfterRelease hook that clears the tenant
// context whenever a connection is checked back in. A connection that
// cannot be reset is destroyed instead of reused.
func ResetOnRelease(cfg Config, log *slog.Logger) func(*pgx.Conn) bool {
	hook := resetHook(NewSession(cfg, log))
	return func(c *pgx.Conn) bool {
		return hook(c)
	}
}

// InstallResetHook chains ResetOnRelease in front of any existing
// AfterRelease hook on the pool config.
func InstallResetHook(cfg Config, log *slog.Logger) func(*pgxpool.Config) {
	return func(pc *pgxpool.Config) {
		pc.AfterRelease = chainAfterRelease(ResetOnRelease(cfg, log), pc.AfterRelease)
	}
}

func chainAfterRelease(first, next func(*pgx.Conn) bool) func(*pgx.Conn) bool {
	if next == nil {
		return first
	}
	return func(c *pgx.Conn) bool {
		return first(c) && next(c)
	}
}

func resetHook(s *Session) func(Conn) bool {
	return func(conn Conn) bool {
		ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
		defer cancel()

		if err := s.Clear(ctx, conn); err != nil {
			s.log.WarnContext(ctx, "discarding connection after failed reset", logger.Error(err))
			return false
		}
		return true
	}
}
