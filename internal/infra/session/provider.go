package session

import (
	"context"
	"log/slog"

	"stockdash/config"
	"stockdash/internal/domain/constants"
	"stockdash/internal/domain/lifecycle"
	"stockdash/internal/domain/repository"
	"stockdash/internal/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New selects the session store named by session.store.
func New(params Params) (repository.SessionRepository, error) {
	switch params.Config.Session.Store {
	case constants.SessionStoreMemory:
		return NewMemoryStore(), nil

	case constants.SessionStoreRedis:
		if params.Config.Redis == nil || params.Config.Redis.Addr == "" {
			return nil, errors.New("redis.addr is required for the redis session store")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     params.Config.Redis.Addr,
			Password: params.Config.Redis.Password,
			DB:       params.Config.Redis.DB,
		})

		params.Append(fx.Hook{
			OnStart: func(startCtx context.Context) error {
				ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
				defer cancel()

				if err := client.Ping(ctx).Err(); err != nil {
					return errors.Wrap(err, "failed to ping redis")
				}
				params.Logger.Info("Session store connected", slog.String("addr", params.Config.Redis.Addr))

				return nil
			},
			OnStop: func(_ context.Context) error {
				return client.Close()
			},
		})

		return NewRedisStore(client), nil

	default:
		return nil, errors.Errorf("unsupported session store: %s", params.Config.Session.Store)
	}
}
