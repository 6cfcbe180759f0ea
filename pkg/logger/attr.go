package logger

import (
	"fmt"
	"log/slog"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// TenantID records a tenant identifier under the key "tenant_id".
// Any fmt.Stringer (uuid.UUID included) is logged in its string form;
// a nil id returns an empty Attr.
func TenantID(id any) slog.Attr {
	switch v := id.(type) {
	case nil:
		return slog.Attr{}
	case string:
		return slog.String("tenant_id", v)
	case fmt.Stringer:
		return slog.String("tenant_id", v.String())
	default:
		return slog.Any("tenant_id", v)
	}
}

// SessionVar records the PostgreSQL session variable name.
func SessionVar(name string) slog.Attr {
	return slog.String("session_var", name)
}

// DBRole records a database role name under the key "db_role".
func DBRole(role string) slog.Attr {
	return slog.String("db_role", role)
}
