package orderlock

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paysync/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("orderlock",
	fx.Provide(NewRedisLockerFromConfig),
	fx.Provide(NewManager),
)

func NewRedisLockerFromConfig(cfg config.Config) *RedisLocker {
	if !cfg.Redis.Enabled {
		return nil
	}
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	return NewRedisLocker(client)
}
