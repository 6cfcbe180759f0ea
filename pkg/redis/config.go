package redis

import "time"

// Config describes the Redis connection backing the shared tenant cache.
// An empty ConnectionURL means no Redis; callers fall back to an
// in-process cache.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                              // ConnectionURL has the form "redis://:password@localhost:6379/0".
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`    // RetryAttempts is the number of ping attempts before giving up.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`   // RetryInterval is the pause between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"` // ConnectTimeout bounds the whole connect sequence.

	KeyPrefix string        `env:"REDIS_TENANT_KEY_PREFIX" envDefault:"rlskit:tenant:"` // KeyPrefix namespaces cached tenant records.
	CacheTTL  time.Duration `env:"REDIS_TENANT_CACHE_TTL" envDefault:"5m"`              // CacheTTL is how long a tenant record stays cached.
}

// Enabled reports whether a Redis URL was configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
