package rls_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rlskit/pkg/rls"
)

func TestPolicy_SQL(t *testing.T) {
	t.Parallel()

	cfg := rls.DefaultConfig()
	cfg.AppRole = "app_user"
	p := rls.NewPolicy(cfg, discardLogger)

	assert.Equal(t, "documents_app_user", rls.PolicyName("documents"))
	assert.Equal(t, "documents_app_user", rls.PolicyName("app.documents"))

	assert.Equal(t,
		`"tenant_id" = NULLIF(current_setting('rls.tenant_id', TRUE), '')::uuid`,
		p.UsingClause())

	assert.Equal(t,
		`CREATE POLICY "documents_app_user" ON "app"."documents" TO "app_user" USING ("tenant_id" = NULLIF(current_setting('rls.tenant_id', TRUE), '')::uuid)`,
		p.CreatePolicySQL("app.documents"))

	noRole := rls.NewPolicy(rls.DefaultConfig(), nil)
	assert.Equal(t,
		`CREATE POLICY "documents_app_user" ON "documents" USING ("tenant_id" = NULLIF(current_setting('rls.tenant_id', TRUE), '')::uuid)`,
		noRole.CreatePolicySQL("documents"))
}

func TestPolicy_EnableDisable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := rls.NewPolicy(rls.DefaultConfig(), discardLogger)

	t.Run("enable", func(t *testing.T) {
		t.Parallel()
		conn := newFakeConn()
		require.NoError(t, p.EnableTable(ctx, conn, "documents"))
		assert.Equal(t, []string{
			`ALTER TABLE "documents" ENABLE ROW LEVEL SECURITY, FORCE ROW LEVEL SECURITY`,
			`DROP POLICY IF EXISTS "documents_app_user" ON "documents"`,
			p.CreatePolicySQL("documents"),
		}, conn.statements())
	})

	t.Run("disable", func(t *testing.T) {
		t.Parallel()
		conn := newFakeConn()
		require.NoError(t, p.DisableTable(ctx, conn, "documents"))
		assert.Equal(t, []string{
			`DROP POLICY IF EXISTS "documents_app_user" ON "documents"`,
			`ALTER TABLE "documents" DISABLE ROW LEVEL SECURITY, NO FORCE ROW LEVEL SECURITY`,
		}, conn.statements())
	})

	t.Run("stops at the first failing statement", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("must be owner of table documents")
		conn := newFakeConn()
		conn.failOn("ALTER", cause)

		err := p.EnableTable(ctx, conn, "documents")
		assert.ErrorIs(t, err, cause)
		assert.Len(t, conn.statements(), 1)
	})
}

func TestPolicy_Inspect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := rls.NewPolicy(rls.DefaultConfig(), discardLogger)

	t.Run("is enabled", func(t *testing.T) {
		t.Parallel()
		var gotArgs []any
		conn := newFakeConn()
		conn.query = func(_ string, args []any) pgx.Row {
			gotArgs = args
			return fakeRow{vals: []any{true}}
		}

		ok, err := p.IsEnabled(ctx, conn, "app.documents")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []any{"app.documents"}, gotArgs)
	})

	t.Run("policies", func(t *testing.T) {
		t.Parallel()
		var gotArgs []any
		conn := newFakeConn()
		conn.query = func(_ string, args []any) pgx.Row {
			gotArgs = args
			return fakeRow{vals: []any{`[{"policyname":"documents_app_user","permissive":"PERMISSIVE","roles":["app_user"],"cmd":"ALL","qual":"(tenant_id = x)"}]`}}
		}

		got, err := p.Policies(ctx, conn, "app.documents")
		require.NoError(t, err)
		assert.Equal(t, []any{"documents", "app"}, gotArgs)
		assert.Equal(t, []rls.PolicyInfo{{
			Name:       "documents_app_user",
			Permissive: "PERMISSIVE",
			Roles:      []string{"app_user"},
			Command:    "ALL",
			Using:      "(tenant_id = x)",
		}}, got)
	})

	t.Run("no policies", func(t *testing.T) {
		t.Parallel()
		conn := newFakeConn()
		conn.query = func(string, []any) pgx.Row { return fakeRow{vals: []any{"[]"}} }

		got, err := p.Policies(ctx, conn, "documents")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("query failure", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("permission denied")
		conn := newFakeConn()
		conn.query = func(string, []any) pgx.Row { return fakeRow{err: cause} }

		_, err := p.IsEnabled(ctx, conn, "documents")
		assert.ErrorIs(t, err, cause)
		_, err = p.Policies(ctx, conn, "documents")
		assert.ErrorIs(t, err, cause)
	})
}
