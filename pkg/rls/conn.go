package rls

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is one database session. *pgx.Conn, *pgxpool.Conn and pgx.Tx satisfy
// it. Tenant context lives on the session, so a Conn must not be shared by
// concurrent goroutines while a tenant is switched in.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isClosed is the active check. Connections that cannot report their state
// are assumed open.
func isClosed(conn Conn) bool {
	switch c := conn.(type) {
	case interface{ IsClosed() bool }:
		return c.IsClosed()
	case interface{ Conn() *pgx.Conn }:
		pc := c.Conn()
		return pc == nil || pc.IsClosed()
	}
	return false
}

// sqlHandle is satisfied by *sql.Conn and *sql.Tx. Do not pass *sql.DB:
// every call may land on a different pooled session.
type sqlHandle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlConn struct {
	h sqlHandle
}

// FromSQL adapts a database/sql session to Conn.
func FromSQL(h sqlHandle) Conn {
	return sqlConn{h: h}
}

func (c sqlConn) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if _, err := c.h.ExecContext(ctx, query, args...); err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.CommandTag{}, nil
}

func (c sqlConn) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return c.h.QueryRowContext(ctx, query, args...)
}

// Release returns a connection to its pool. With discard set the
// connection is closed instead, so a session that may still carry tenant
// context never reaches the next borrower.
type Release func(discard bool)

// Acquirer checks a connection out of a pool.
type Acquirer func(ctx context.Context) (Conn, Release, error)

// PoolAcquirer checks connections out of a pgx pool.
func PoolAcquirer(pool *pgxpool.Pool) Acquirer {
	return func(ctx context.Context) (Conn, Release, error) {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return c, func(discard bool) {
			if discard {
				// Hijacked connections are removed from the pool for good.
				raw := c.Hijack()
				_ = raw.Close(context.Background())
				return
			}
			c.Release()
		}, nil
	}
}
