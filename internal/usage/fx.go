package usage

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/marketplace/internal/config"
	"github.com/smallbiznis/marketplace/internal/usage/counter"
	usagedomain "github.com/smallbiznis/marketplace/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("usage.counter",
	fx.Provide(NewCounter),
)

func NewCounter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (usagedomain.Counter, error) {
	if !cfg.Redis.Enabled {
		log.Info("redis disabled, usage counters report zero")
		return counter.NewNoop(), nil
	}

	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("usage counter redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return counter.NewRedis(client), nil
}
