package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn, *pgx.Conn and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore loads tenants from a PostgreSQL table.
//
// The tenants table itself must not be row-secured: tenant lookups happen
// before any tenant context exists.
type PGStore struct {
	db             Querier
	table          string
	subdomainField string

	existsSQL      string
	byIDSQL        string
	bySubdomainSQL string
}

// PGStoreOption configures PGStore.
type PGStoreOption func(*PGStore)

// WithTable overrides the tenants table name ("tenants" by default).
// A dotted name is treated as schema.table.
func WithTable(name string) PGStoreOption {
	return func(s *PGStore) {
		if name != "" {
			s.table = name
		}
	}
}

// WithSubdomainField overrides the column used for subdomain lookups.
func WithSubdomainField(column string) PGStoreOption {
	return func(s *PGStore) {
		if column != "" {
			s.subdomainField = column
		}
	}
}

// NewPGStore builds a store over db.
func NewPGStore(db Querier, opts ...PGStoreOption) *PGStore {
	s := &PGStore{
		db:             db,
		table:          "tenants",
		subdomainField: "subdomain",
	}
	for _, opt := range opts {
		opt(s)
	}

	table := pgx.Identifier(strings.Split(s.table, ".")).Sanitize()
	sub := pgx.Identifier{s.subdomainField}.Sanitize()
	cols := fmt.Sprintf("id, name, coalesce(%s, ''), created_at, updated_at", sub)

	s.existsSQL = fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table)
	s.byIDSQL = fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", cols, table)
	s.bySubdomainSQL = fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", cols, table, sub)

	return s
}

// Exists reports false for ids that are not UUIDs instead of letting the
// database reject the cast.
func (s *PGStore) Exists(ctx context.Context, id string) (bool, error) {
	tid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return false, nil
	}

	var ok bool
	if err := s.db.QueryRow(ctx, s.existsSQL, tid).Scan(&ok); err != nil {
		return false, fmt.Errorf("check tenant exists: %w", err)
	}
	return ok, nil
}

func (s *PGStore) GetByID(ctx context.Context, id string) (*Tenant, error) {
	tid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%w: tenant with id '%s'", ErrNotFound, id)
	}
	return s.scanOne(ctx, s.byIDSQL, tid)
}

func (s *PGStore) GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	subdomain = strings.TrimSpace(subdomain)
	if subdomain == "" {
		return nil, fmt.Errorf("%w: empty subdomain", ErrNotFound)
	}
	return s.scanOne(ctx, s.bySubdomainSQL, subdomain)
}

// ValidateSchema checks that the configured subdomain column exists.
func (s *PGStore) ValidateSchema(ctx context.Context) error {
	schema, table := "", s.table
	if i := strings.LastIndexByte(s.table, '.'); i >= 0 {
		schema, table = s.table[:i], s.table[i+1:]
	}

	const q = `SELECT EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_name = $1 AND column_name = $2
		AND ($3 = '' OR table_schema = $3)
	)`

	var ok bool
	if err := s.db.QueryRow(ctx, q, table, s.subdomainField, schema).Scan(&ok); err != nil {
		return fmt.Errorf("inspect tenants table: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: column '%s' on '%s'", ErrSubdomainFieldMissing, s.subdomainField, s.table)
	}
	return nil
}

func (s *PGStore) scanOne(ctx context.Context, query string, arg any) (*Tenant, error) {
	var t Tenant
	err := s.db.QueryRow(ctx, query, arg).Scan(&t.ID, &t.Name, &t.Subdomain, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, arg)
		}
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	return &t, nil
}
