package rls

import "context"

type connKey struct{}

// WithConn stores the tenant-scoped connection in ctx.
func WithConn(ctx context.Context, conn Conn) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

// ConnFromContext returns the connection switched in by Middleware. It is
// only valid until the handler returns.
func ConnFromContext(ctx context.Context) (Conn, bool) {
	conn, ok := ctx.Value(connKey{}).(Conn)
	return conn, ok && conn != nil
}
