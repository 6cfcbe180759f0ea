package tenant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		acme := newTestTenant("acme")
		ctx := tenant.WithTenant(context.Background(), acme)

		got, ok := tenant.FromContext(ctx)
		require.True(t, ok)
		assert.Same(t, acme, got)

		id, ok := tenant.IDFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, acme.ID, id)

		assert.Same(t, acme, tenant.MustFromContext(ctx))
	})

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()
		_, ok := tenant.FromContext(context.Background())
		assert.False(t, ok)
		_, ok = tenant.IDFromContext(context.Background())
		assert.False(t, ok)
		assert.Panics(t, func() { tenant.MustFromContext(context.Background()) })
	})

	t.Run("nil tenant counts as absent", func(t *testing.T) {
		t.Parallel()
		ctx := tenant.WithTenant(context.Background(), nil)
		_, ok := tenant.FromContext(ctx)
		assert.False(t, ok)
	})
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := tenant.LoggerExtractor()

	_, ok := extract(context.Background())
	assert.False(t, ok)

	acme := newTestTenant("acme")
	attr, ok := extract(tenant.WithTenant(context.Background(), acme))
	require.True(t, ok)
	assert.Equal(t, "tenant_id", attr.Key)
	assert.Equal(t, acme.ID.String(), attr.Value.String())
}
