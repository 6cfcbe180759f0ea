package rls_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/rlskit/pkg/rls"
	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeRow scans fixed values into string and bool destinations.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("fakeRow: want %d columns, got %d", len(r.vals), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *bool:
			*p = r.vals[i].(bool)
		default:
			return fmt.Errorf("fakeRow: unsupported destination %T", d)
		}
	}
	return nil
}

var (
	errUnrecognizedParameter = &pgconn.PgError{Code: "42704", Message: "unrecognized configuration parameter"}
	errTxAborted             = &pgconn.PgError{Code: "25P02", Message: "current transaction is aborted, commands ignored until end of transaction block"}
)

const peekSQL = `SELECT coalesce(current_setting($1, true), '')`

// fakeConn emulates one PostgreSQL session holding a custom setting.
type fakeConn struct {
	mu      sync.Mutex
	name    string
	value   string
	defined bool
	closed  bool
	stmts   []string

	// inTx makes the first failed statement abort every later one, as
	// PostgreSQL does inside a transaction block.
	inTx    bool
	aborted bool

	// execErr, when set, may fail a statement before it is applied.
	execErr func(sql string) error
	// query answers statements other than SHOW.
	query func(sql string, args []any) pgx.Row
}

func newFakeConn() *fakeConn {
	return &fakeConn{name: "rls.tenant_id"}
}

func newFakeTx() *fakeConn {
	return &fakeConn{name: "rls.tenant_id", inTx: true}
}

// fail records err as a statement failure. Must be called with mu held.
func (c *fakeConn) fail(err error) error {
	if c.inTx {
		c.aborted = true
	}
	return err
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stmts = append(c.stmts, sql)
	if c.aborted {
		return pgconn.CommandTag{}, errTxAborted
	}
	if c.execErr != nil {
		if err := c.execErr(sql); err != nil {
			return pgconn.CommandTag{}, c.fail(err)
		}
	}

	switch {
	case strings.HasPrefix(sql, "SET "+c.name+" = "):
		c.value = unquote(strings.TrimPrefix(sql, "SET "+c.name+" = "))
		c.defined = true
		return pgconn.NewCommandTag("SET"), nil
	case sql == "RESET "+c.name:
		c.value = ""
		c.defined = true
		return pgconn.NewCommandTag("RESET"), nil
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stmts = append(c.stmts, sql)
	if c.aborted {
		return fakeRow{err: errTxAborted}
	}
	switch {
	case sql == "SHOW "+c.name:
		if !c.defined {
			return fakeRow{err: c.fail(errUnrecognizedParameter)}
		}
		return fakeRow{vals: []any{c.value}}
	case sql == peekSQL && len(args) == 1 && args[0] == c.name:
		return fakeRow{vals: []any{c.value}}
	}
	if c.query != nil {
		return c.query(sql, args)
	}
	return fakeRow{err: errors.New("fakeConn: unexpected query")}
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *fakeConn) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *fakeConn) statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.stmts...)
}

func (c *fakeConn) failOn(prefix string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execErr = func(sql string) error {
		if strings.HasPrefix(sql, prefix) {
			return err
		}
		return nil
	}
}

// unquote reverses pq.QuoteLiteral for the values used in tests.
func unquote(lit string) string {
	lit = strings.TrimPrefix(lit, "E")
	lit = strings.TrimSuffix(strings.TrimPrefix(lit, "'"), "'")
	lit = strings.ReplaceAll(lit, "''", "'")
	return strings.ReplaceAll(lit, `\\`, `\`)
}

// memStore is a map-backed tenant.Store.
type memStore struct {
	tenants map[string]*tenant.Tenant
	err     error
	exists  atomic.Int32
}

func newMemStore(tenants ...*tenant.Tenant) *memStore {
	s := &memStore{tenants: map[string]*tenant.Tenant{}}
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
	_, ok := s.tenants[id]
	return ok, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*tenant.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.tenants[id]; ok {
		return t, nil
	}
	return nil, tenant.ErrNotFound
}

func (s *memStore) GetBySubdomain(_ context.Context, sub string) (*tenant.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, t := range s.tenants {
		if t.Subdomain == sub {
			return t, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func newTestTenant(subdomain string) *tenant.Tenant {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &tenant.Tenant{ID: uuid.New(), Name: strings.ToUpper(subdomain), Subdomain: subdomain, CreatedAt: now, UpdatedAt: now}
}

// fakePool hands out one fakeConn and records how it came back.
type fakePool struct {
	mu        sync.Mutex
	conn      *fakeConn
	err       error
	acquired  int
	released  int
	discarded int
}

func newFakePool() *fakePool {
	return &fakePool{conn: newFakeConn()}
}

func (p *fakePool) Acquirer() rls.Acquirer {
	return func(context.Context) (rls.Conn, rls.Release, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.err != nil {
			return nil, nil, p.err
		}
		p.acquired++
		return p.conn, func(discard bool) {
			p.mu.Lock()
			defer p.mu.Unlock()
			if discard {
				p.discarded++
				return
			}
			p.released++
		}, nil
	}
}

func (p *fakePool) counts() (acquired, released, discarded int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired, p.released, p.discarded
}
