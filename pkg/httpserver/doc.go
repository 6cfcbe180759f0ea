// Package httpserver runs an http.Handler with graceful shutdown.
//
// Run blocks until the context is cancelled or SIGINT/SIGTERM arrives, then
// drains in-flight requests so every tenant-scoped connection is reset and
// returned before the pool closes:
//
//	srv := httpserver.New(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithStopHook(pool.Close),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// HealthHandler serves liveness and readiness probes from named checks.
package httpserver
