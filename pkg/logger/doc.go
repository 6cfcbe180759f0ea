// Package logger builds *slog.Logger values with functional options and
// injects request-scoped attributes from context.Context.
//
//	log := logger.New(
//		logger.WithEnvironment(os.Getenv("APP_ENV"), "rlsdemo"),
//		logger.WithContextExtractors(tenant.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "tenant switched", logger.TenantID(id))
//
// Attribute helpers (Error, Component, TenantID, SessionVar, DBRole) keep key
// names consistent; Error and TenantID return an empty Attr for nil input so
// they can be passed unconditionally.
package logger
