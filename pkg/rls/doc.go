// Package rls scopes PostgreSQL sessions to a tenant for row-level security.
//
// Every row-secured table carries a policy comparing its tenant column with
// the session variable "rls.tenant_id" (namespace and column are
// configurable). An unset variable matches no rows, so a connection without
// tenant context sees nothing.
//
// # Components
//
//   - Session issues SET, RESET and SHOW for the variable on one connection.
//   - Manager validates a tenant reference and switches it in, either for the
//     duration of a function (Switch, Run) or until Reset (SwitchPermanent).
//     Switch works inside transactions: the previous value is read with
//     current_setting, which never fails for an unset variable.
//     StampTenantID picks the tenant id for rows being inserted.
//   - Checker refuses to start when the connected role is a superuser, has
//     BYPASSRLS, or the configured application role is a known admin role.
//   - Policy enables row security on a table and manages its policy.
//   - Middleware serves HTTP requests on a connection switched to the tenant
//     named by the request subdomain.
//
// # Startup
//
//	cfg, err := config.Load[rls.Config]()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
//	pool, err := pg.Connect(ctx, dbCfg, rls.InstallResetHook(cfg, log))
//	if err != nil { ... }
//
//	conn, err := pool.Acquire(ctx)
//	if err != nil { ... }
//	err = rls.NewChecker(cfg, log).Validate(ctx, conn)
//	conn.Release()
//	if err != nil { ... } // fatal
//
//	mgr := rls.NewManager(cfg, store, rls.WithLogger(log))
//
// # Switching
//
//	err := mgr.Run(ctx, rls.PoolAcquirer(pool), tenant.ByID(id),
//		func(ctx context.Context, conn rls.Conn) error {
//			_, err := conn.Exec(ctx, "UPDATE projects SET archived = true")
//			return err
//		})
//
// Nested Switch calls on one connection restore the outer tenant when the
// inner call returns. Connections are not safe for concurrent use while a
// tenant is switched in; check one out per unit of work.
package rls
