package main

import (
	"github.com/dmitrymomot/rlskit/pkg/httpserver"
	"github.com/dmitrymomot/rlskit/pkg/pg"
	"github.com/dmitrymomot/rlskit/pkg/redis"
	"github.com/dmitrymomot/rlskit/pkg/rls"
)

type appConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"APP_NAME" envDefault:"rlsdemo"`

	// OwnerConnectionString connects as the schema owner for migrations and
	// policy setup. Only used in admin mode.
	OwnerConnectionString string `env:"PG_OWNER_CONN_URL"`

	// SecuredTables get the tenant isolation policy after migrating.
	SecuredTables []string `env:"RLS_SECURED_TABLES" envSeparator:"," envDefault:"documents"`

	PG    pg.Config
	Redis redis.Config
	RLS   rls.Config
	HTTP  httpserver.Config
}
