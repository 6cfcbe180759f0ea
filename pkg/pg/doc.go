// Package pg bootstraps the PostgreSQL layer on pgx/v5: a connection pool
// with retry, goose migrations from an fs.FS, a health check and helpers
// that classify driver errors.
//
// Pool options passed to Connect run against the parsed *pgxpool.Config
// before the pool is created. That is how row-security hooks are attached:
//
//	pool, err := pg.Connect(ctx, cfg, rls.InstallResetHook(rlsCfg, log))
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
// Migrations are expected to run as the schema owner, on a separate pool:
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	err := pg.Migrate(ctx, ownerPool, migrations, "migrations", cfg, log)
//
// # Errors
//
// IsNotFoundError, IsDuplicateKeyError, IsForeignKeyViolationError,
// IsInsufficientPrivilegeError and IsUndefinedObjectError inspect wrapped
// *pgconn.PgError values, so callers can keep using errors.Join and %w.
package pg
