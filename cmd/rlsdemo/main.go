// Command rlsdemo serves a tenant-isolated HTTP API on top of PostgreSQL
// row-level security.
package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/rlskit/pkg/config"
	"github.com/dmitrymomot/rlskit/pkg/httpserver"
	"github.com/dmitrymomot/rlskit/pkg/logger"
	"github.com/dmitrymomot/rlskit/pkg/pg"
	"github.com/dmitrymomot/rlskit/pkg/redis"
	"github.com/dmitrymomot/rlskit/pkg/rls"
	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("rlsdemo stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load[appConfig]()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithContextExtractors(tenant.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	if err := cfg.RLS.Validate(); err != nil {
		return err
	}

	if cfg.RLS.AdminMode {
		if err := setupSchema(ctx, cfg, log); err != nil {
			return err
		}
	}

	pool, err := pg.Connect(ctx, cfg.PG, rls.InstallResetHook(cfg.RLS, log))
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := checkSecurity(ctx, pool, cfg.RLS, log); err != nil {
		return err
	}

	pgStore := tenant.NewPGStore(pool, tenant.WithSubdomainField(cfg.RLS.SubdomainField))
	if cfg.RLS.SubdomainResolution {
		if err := pgStore.ValidateSchema(ctx); err != nil {
			return err
		}
	}

	checks := map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)}

	cache, closeCache, client, err := newTenantCache(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeCache()
	if client != nil {
		checks["redis"] = redis.Healthcheck(client)
	}

	store := tenant.NewCachingStore(pgStore, cache)
	manager := rls.NewManager(cfg.RLS, store,
		rls.WithLogger(log),
		rls.WithMetrics(rls.NewMetrics(prometheus.DefaultRegisterer)),
	)

	api := &api{
		manager:    manager,
		store:      store,
		acquire:    rls.PoolAcquirer(pool),
		log:        log,
		subdomains: cfg.RLS.SubdomainResolution,
	}
	router := newRouter(cfg.RLS, api, checks, promhttp.Handler())

	return httpserver.New(cfg.HTTP, httpserver.WithLogger(log)).Run(ctx, router)
}

// setupSchema migrates and installs the isolation policies as the schema
// owner. The owner pool is closed before the application pool opens.
func setupSchema(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	ownerCfg := cfg.PG
	if cfg.OwnerConnectionString != "" {
		ownerCfg.ConnectionString = cfg.OwnerConnectionString
	}

	owner, err := pg.Connect(ctx, ownerCfg)
	if err != nil {
		return err
	}
	defer owner.Close()

	if err := pg.Migrate(ctx, owner, migrations, "migrations", cfg.PG, log); err != nil {
		return err
	}

	conn, err := owner.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	policy := rls.NewPolicy(cfg.RLS, log)
	for _, table := range cfg.SecuredTables {
		if err := policy.EnableTable(ctx, conn, table); err != nil {
			return err
		}
	}
	return grantAppRole(ctx, conn, cfg)
}

func grantAppRole(ctx context.Context, conn rls.Conn, cfg appConfig) error {
	if cfg.RLS.AppRole == "" {
		return nil
	}
	role := pgx.Identifier{cfg.RLS.AppRole}.Sanitize()

	stmts := []string{fmt.Sprintf("GRANT SELECT ON tenants TO %s", role)}
	for _, table := range cfg.SecuredTables {
		stmts = append(stmts, fmt.Sprintf("GRANT SELECT, INSERT, UPDATE, DELETE ON %s TO %s",
			pgx.Identifier(strings.Split(table, ".")).Sanitize(), role))
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("grant privileges to %s: %w", cfg.RLS.AppRole, err)
		}
	}
	return nil
}

func checkSecurity(ctx context.Context, pool *pgxpool.Pool, cfg rls.Config, log *slog.Logger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return rls.NewChecker(cfg, log).Validate(ctx, conn)
}

// newTenantCache picks Redis when configured and an in-process LRU otherwise.
func newTenantCache(ctx context.Context, cfg redis.Config, log *slog.Logger) (tenant.Cache, func(), *goredis.Client, error) {
	if !cfg.Enabled() {
		c := tenant.NewInMemoryCache(tenant.DefaultCacheSize, cfg.CacheTTL)
		return c, func() { _ = c.Close() }, nil, nil
	}

	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	log.InfoContext(ctx, "tenant cache backed by redis", slog.String("prefix", cfg.KeyPrefix))

	return tenant.NewRedisCache(client, cfg.KeyPrefix, cfg.CacheTTL), func() { _ = client.Close() }, client, nil
}
