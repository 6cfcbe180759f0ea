package rls_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rlskit/pkg/rls"
	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

func TestSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	session := rls.NewSession(rls.DefaultConfig(), discardLogger)

	t.Run("name", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "rls.tenant_id", session.Name())

		cfg := rls.DefaultConfig()
		cfg.Namespace = "app"
		cfg.TenantIDColumn = "org_id"
		assert.Equal(t, "app.org_id", rls.NewSession(cfg, nil).Name())
	})

	t.Run("set get clear", func(t *testing.T) {
		t.Parallel()
		conn := newFakeConn()

		_, ok := session.Get(ctx, conn)
		assert.False(t, ok, "never-set variable reads as no tenant")

		require.NoError(t, session.Set(ctx, conn, " abc "))
		id, ok := session.Get(ctx, conn)
		require.True(t, ok)
		assert.Equal(t, "abc", id)

		require.NoError(t, session.Clear(ctx, conn))
		_, ok = session.Get(ctx, conn)
		assert.False(t, ok)

		assert.Equal(t, []string{
			"SHOW rls.tenant_id",
			"SET rls.tenant_id = 'abc'",
			"SHOW rls.tenant_id",
			"RESET rls.tenant_id",
			"SHOW rls.tenant_id",
		}, conn.statements())
	})

	t.Run("value is sent as an escaped literal", func(t *testing.T) {
		t.Parallel()
		conn := newFakeConn()

		require.NoError(t, session.Set(ctx, conn, "x'; DROP TABLE tenants; --"))
		assert.Equal(t, []string{"SET rls.tenant_id = 'x''; DROP TABLE tenants; --'"}, conn.statements())
		assert.Equal(t, "x'; DROP TABLE tenants; --", conn.current())
	})

	t.Run("blank id is rejected without a statement", func(t *testing.T) {
		t.Parallel()
		conn := newFakeConn()

		err := session.Set(ctx, conn, "  ")
		assert.ErrorIs(t, err, tenant.ErrInvalidArgument)
		assert.Empty(t, conn.statements())
	})

	t.Run("statement errors are wrapped", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("server closed the connection")
		conn := newFakeConn()
		conn.failOn("", cause)

		assert.ErrorIs(t, session.Set(ctx, conn, "abc"), cause)
		assert.ErrorIs(t, session.Clear(ctx, conn), cause)
	})

	t.Run("closed connection reads as no tenant", func(t *testing.T) {
		t.Parallel()
		conn := newFakeConn()
		require.NoError(t, session.Set(ctx, conn, "abc"))
		conn.closed = true

		_, ok := session.Get(ctx, conn)
		assert.False(t, ok)
		assert.Len(t, conn.statements(), 1, "no SHOW on a closed connection")
	})
}

// brokenReads fails every query with err.
type brokenReads struct {
	*fakeConn
	err error
}

func (c brokenReads) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{err: c.err}
}

func TestSession_GetLogging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	session := rls.NewSession(rls.DefaultConfig(), log)

	_, ok := session.Get(ctx, newFakeConn())
	assert.False(t, ok)
	assert.Empty(t, buf.String(), "an unset variable is not a failure")

	_, ok = session.Get(ctx, brokenReads{fakeConn: newFakeConn(), err: errors.New("conn reset by peer")})
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "tenant context read failed")
	assert.Contains(t, buf.String(), "conn reset by peer")
}

func TestFromSQL(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	sqlConn, err := db.Conn(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlConn.Close() })

	mock.ExpectExec(regexp.QuoteMeta("SET rls.tenant_id = 'abc'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SHOW rls.tenant_id")).
		WillReturnRows(sqlmock.NewRows([]string{"rls.tenant_id"}).AddRow("abc"))
	mock.ExpectExec(regexp.QuoteMeta("RESET rls.tenant_id")).
		WillReturnError(errors.New("connection lost"))

	conn := rls.FromSQL(sqlConn)
	session := rls.NewSession(rls.DefaultConfig(), discardLogger)

	require.NoError(t, session.Set(ctx, conn, "abc"))
	id, ok := session.Get(ctx, conn)
	require.True(t, ok)
	assert.Equal(t, "abc", id)
	assert.Error(t, session.Clear(ctx, conn))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFromSQL_SwitchInTransaction(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	acme := newTestTenant("acme")
	m := newManager(newMemStore(acme))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT coalesce(current_setting($1, true), '')")).
		WithArgs("rls.tenant_id").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(""))
	mock.ExpectExec(regexp.QuoteMeta("SET rls.tenant_id = '" + acme.ID.String() + "'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents (title) VALUES ($1)")).
		WithArgs("hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("RESET rls.tenant_id")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	conn := rls.FromSQL(tx)

	err = m.Switch(ctx, conn, tenant.ByValue(acme), func(ctx context.Context) error {
		_, err := conn.Exec(ctx, "INSERT INTO documents (title) VALUES ($1)", "hello")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
