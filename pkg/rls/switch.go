package rls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/rlskit/pkg/logger"
	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

const tracerName = "github.com/dmitrymomot/rlskit/pkg/rls"

// Manager applies tenant context to connections.
//
// Scoped switches nest: leaving an inner Switch restores the tenant that
// was active when it started, and leaving the outermost one resets the
// connection to "no tenant".
type Manager struct {
	session *Session
	column  string
	store   tenant.Store
	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics records switch outcomes.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithTracer overrides the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// NewManager builds a Manager. The store is used to validate tenant ids
// before they are applied.
func NewManager(cfg Config, store tenant.Store, opts ...Option) *Manager {
	m := &Manager{
		column: cfg.TenantIDColumn,
		store:  store,
		log:    slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.session = NewSession(cfg, m.log)
	m.log = m.log.With(logger.Component("rls.manager"))
	return m
}

// Session exposes the underlying session controller.
func (m *Manager) Session() *Session {
	return m.session
}

// Switch runs fn with conn scoped to ref and restores the previous context
// on every exit path, panics included. A blank ref runs fn with no tenant.
// If the context cannot be restored the returned error wraps ErrResetFailed
// and conn must be discarded.
func (m *Manager) Switch(ctx context.Context, conn Conn, ref tenant.Ref, fn func(ctx context.Context) error) error {
	return m.switchTo(ctx, conn, ref, true, fn)
}

// switchTo is Switch with the existence check optional, for callers that
// loaded the tenant from the store on the same request.
func (m *Manager) switchTo(ctx context.Context, conn Conn, ref tenant.Ref, validate bool, fn func(ctx context.Context) error) (err error) {
	ctx, span := m.tracer.Start(ctx, "rls.switch", trace.WithAttributes(attribute.String("tenant.id", ref.ID())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		m.metrics.observeSwitch("scoped", err)
		span.End()
	}()

	if validate {
		if err := tenant.ValidateExists(ctx, m.store, ref.ID()); err != nil {
			return err
		}
	}

	prev, hadPrev := m.session.peek(ctx, conn)

	defer func() {
		if rerr := m.restore(ctx, conn, prev, hadPrev); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()

	if ref.IsBlank() {
		if err := m.session.Clear(ctx, conn); err != nil {
			return err
		}
	} else if err := m.session.Set(ctx, conn, ref.ID()); err != nil {
		return err
	}

	return fn(ctx)
}

// restore puts back the tenant that was active before a scoped switch.
// It falls back to a plain reset so a failed restore never leaves the
// inner tenant in place.
func (m *Manager) restore(ctx context.Context, conn Conn, prev string, hadPrev bool) error {
	// The switch's own deadline may have passed; the reset must still run.
	ctx = context.WithoutCancel(ctx)

	if hadPrev {
		err := m.session.Set(ctx, conn, prev)
		if err == nil {
			return nil
		}
		m.log.WarnContext(ctx, "failed to restore outer tenant, resetting", logger.TenantID(prev), logger.Error(err))
	}

	if err := m.session.Clear(ctx, conn); err != nil {
		m.metrics.observeResetFailure()
		m.log.ErrorContext(ctx, "failed to reset tenant context", logger.Error(err))
		return errors.Join(ErrResetFailed, err)
	}
	return nil
}

// SwitchPermanent scopes conn to ref until Reset is called.
func (m *Manager) SwitchPermanent(ctx context.Context, conn Conn, ref tenant.Ref) (err error) {
	defer func() { m.metrics.observeSwitch("permanent", err) }()

	if err := tenant.ValidateExists(ctx, m.store, ref.ID()); err != nil {
		return err
	}
	if ref.IsBlank() {
		return m.session.Clear(ctx, conn)
	}
	return m.session.Set(ctx, conn, ref.ID())
}

// Reset clears the tenant context on conn.
func (m *Manager) Reset(ctx context.Context, conn Conn) error {
	if err := m.session.Clear(ctx, conn); err != nil {
		return errors.Join(ErrResetFailed, err)
	}
	return nil
}

// CurrentID returns the tenant id active on conn, best effort.
func (m *Manager) CurrentID(ctx context.Context, conn Conn) (string, bool) {
	return m.session.Get(ctx, conn)
}

// RequireCurrentID is CurrentID for writes that must carry a tenant id.
// It reads the variable without SHOW, so it is safe inside a transaction.
func (m *Manager) RequireCurrentID(ctx context.Context, conn Conn) (string, error) {
	id, ok := m.session.peek(ctx, conn)
	if !ok {
		return "", tenant.ErrNoTenantInContext
	}
	return id, nil
}

// StampTenantID returns the tenant id a new row must carry. The tenant
// active on conn takes precedence over explicit. With neither, the write
// is rejected with tenant.ErrInvalidArgument.
func (m *Manager) StampTenantID(ctx context.Context, conn Conn, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)

	id, err := m.RequireCurrentID(ctx, conn)
	if err != nil {
		if explicit == "" {
			return "", fmt.Errorf("%w: %s is required: %w", tenant.ErrInvalidArgument, m.column, err)
		}
		return explicit, nil
	}
	if explicit != "" && !strings.EqualFold(explicit, id) {
		m.log.WarnContext(ctx, "explicit tenant id replaced by active tenant",
			logger.TenantID(id), slog.String("explicit", explicit))
	}
	return id, nil
}

// Current loads the tenant active on conn. Lookup failures read as "no tenant".
func (m *Manager) Current(ctx context.Context, conn Conn) (*tenant.Tenant, bool) {
	id, ok := m.session.Get(ctx, conn)
	if !ok {
		return nil, false
	}
	t, err := m.store.GetByID(ctx, id)
	if err != nil {
		m.log.DebugContext(ctx, "current tenant lookup failed", logger.TenantID(id), logger.Error(err))
		return nil, false
	}
	return t, true
}

// Run checks a connection out, runs fn scoped to ref and returns the
// connection. Connections whose context could not be reset, or whose fn
// panicked, are discarded rather than returned to the pool.
func (m *Manager) Run(ctx context.Context, acquire Acquirer, ref tenant.Ref, fn func(ctx context.Context, conn Conn) error) error {
	return m.run(ctx, acquire, ref, true, fn)
}

func (m *Manager) run(ctx context.Context, acquire Acquirer, ref tenant.Ref, validate bool, fn func(ctx context.Context, conn Conn) error) (err error) {
	conn, release, err := acquire(ctx)
	if err != nil {
		return errors.Join(ErrAcquireFailed, err)
	}

	discard := true
	defer func() { release(discard) }()

	err = m.switchTo(ctx, conn, ref, validate, func(ctx context.Context) error {
		return fn(ctx, conn)
	})
	discard = errors.Is(err, ErrResetFailed)
	return err
}
