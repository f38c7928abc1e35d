package balancing

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rentledger/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("balancing.service",
	fx.Provide(NewRedisClient),
	fx.Provide(NewMetrics),
	fx.Provide(NewInvoiceLocker),
	fx.Provide(NewService),
)

// NewRedisClient builds the client backing the per-invoice lock. An empty
// address disables distributed locking; the database transaction remains
// the only critical section.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
