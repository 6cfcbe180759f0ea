package rls

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/dmitrymomot/rlskit/pkg/logger"
)

// PolicyInfo is one row of pg_policies.
type PolicyInfo struct {
	Name       string   `json:"policyname"`
	Permissive string   `json:"permissive"`
	Roles      []string `json:"roles"`
	Command    string   `json:"cmd"`
	Using      string   `json:"qual"`
}

// Policy manages the tenant isolation policy on tables. Run it as the
// table owner, not as the application role.
type Policy struct {
	cfg Config
	log *slog.Logger
}

// NewPolicy builds a Policy helper. cfg must be valid.
func NewPolicy(cfg Config, log *slog.Logger) *Policy {
	if log == nil {
		log = slog.Default()
	}
	return &Policy{cfg: cfg, log: log.With(logger.Component("rls.policy"))}
}

// PolicyName is the name of the isolation policy created for table.
func PolicyName(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	return table + "_app_user"
}

func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// UsingClause is the policy predicate. An unset variable becomes NULL and
// matches no rows.
func (p *Policy) UsingClause() string {
	return fmt.Sprintf("%s = NULLIF(current_setting(%s, TRUE), '')::uuid",
		pgx.Identifier{p.cfg.TenantIDColumn}.Sanitize(), pq.QuoteLiteral(p.cfg.SessionVar()))
}

// CreatePolicySQL renders the CREATE POLICY statement for table.
func (p *Policy) CreatePolicySQL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE POLICY %s ON %s",
		pgx.Identifier{PolicyName(table)}.Sanitize(), quoteTable(table))
	if p.cfg.AppRole != "" {
		fmt.Fprintf(&b, " TO %s", pgx.Identifier{p.cfg.AppRole}.Sanitize())
	}
	fmt.Fprintf(&b, " USING (%s)", p.UsingClause())
	return b.String()
}

// EnableTable turns on and forces row security for table and (re)creates
// its isolation policy.
func (p *Policy) EnableTable(ctx context.Context, conn Conn, table string) error {
	qt := quoteTable(table)
	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY, FORCE ROW LEVEL SECURITY", qt),
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", pgx.Identifier{PolicyName(table)}.Sanitize(), qt),
		p.CreatePolicySQL(table),
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("enable row security on %s: %w", table, err)
		}
	}
	p.log.InfoContext(ctx, "row security enabled", slog.String("table", table), slog.String("policy", PolicyName(table)))
	return nil
}

// DisableTable drops the isolation policy and turns row security off.
func (p *Policy) DisableTable(ctx context.Context, conn Conn, table string) error {
	qt := quoteTable(table)
	stmts := []string{
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", pgx.Identifier{PolicyName(table)}.Sanitize(), qt),
		fmt.Sprintf("ALTER TABLE %s DISABLE ROW LEVEL SECURITY, NO FORCE ROW LEVEL SECURITY", qt),
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("disable row security on %s: %w", table, err)
		}
	}
	p.log.InfoContext(ctx, "row security disabled", slog.String("table", table))
	return nil
}

// IsEnabled reports whether row security is both enabled and forced on table.
// A missing table reports false.
func (p *Policy) IsEnabled(ctx context.Context, conn Conn, table string) (bool, error) {
	const q = `SELECT coalesce(bool_and(relrowsecurity AND relforcerowsecurity), false)
		FROM pg_class WHERE oid = to_regclass($1)`

	var ok bool
	if err := conn.QueryRow(ctx, q, table).Scan(&ok); err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	return ok, nil
}

// Policies lists the row security policies attached to table.
func (p *Policy) Policies(ctx context.Context, conn Conn, table string) ([]PolicyInfo, error) {
	const q = `SELECT coalesce(json_agg(json_build_object(
			'policyname', policyname, 'permissive', permissive,
			'roles', roles, 'cmd', cmd, 'qual', qual) ORDER BY policyname), '[]')::text
		FROM pg_policies WHERE tablename = $1 AND ($2 = '' OR schemaname = $2)`

	schema, name := "", table
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}

	var raw string
	if err := conn.QueryRow(ctx, q, name, schema).Scan(&raw); err != nil {
		return nil, fmt.Errorf("list policies on %s: %w", table, err)
	}

	var out []PolicyInfo
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode policies on %s: %w", table, err)
	}
	return out, nil
}
