// Package redis connects the optional shared tenant cache.
//
// Config is read from the environment; when REDIS_URL is empty the
// service keeps tenant lookups in process instead:
//
//	if cfg.Redis.Enabled() {
//		client, err := redis.Connect(ctx, cfg.Redis)
//		if err != nil {
//			return err
//		}
//		defer client.Close()
//		cache = tenant.NewRedisCache(client, cfg.Redis.KeyPrefix, cfg.Redis.CacheTTL)
//	}
//
// Healthcheck wraps a ping for readiness probes.
package redis
