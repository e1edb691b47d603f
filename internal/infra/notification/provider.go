package notification

import (
	"context"
	"log/slog"

	"stockdash/config"
	"stockdash/internal/domain/constants"
	"stockdash/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Params holds dependencies for the Notifier, injected by Fx
type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// New creates the Notifier named by notifier.provider.
func New(params Params) (service.Notifier, error) {
	cfg := params.Config.Notifier
	logger := params.Logger

	notifier, err := newNotifier(params.Ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing Notifier")

			return notifier.Close()
		},
	})

	return notifier, nil
}

// NewMailSender creates the notifier the mail worker delivers queued jobs with:
// SMTP when a host is configured, the log notifier otherwise.
func NewMailSender(params Params) (service.Notifier, error) {
	cfg := params.Config.Notifier
	if cfg == nil || cfg.SMTP.Host == "" {
		params.Logger.Warn("SMTP not configured, mail jobs will only be logged")

		return NewLogNotifier(params.Logger), nil
	}

	sender, err := NewSMTPNotifier(cfg.SMTP, params.Logger)
	if err != nil {
		return nil, err
	}
	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return sender.Close()
		},
	})

	return sender, nil
}

func newNotifier(ctx context.Context, cfg *config.NotifierConfig, logger *slog.Logger) (service.Notifier, error) {
	if cfg == nil || cfg.Provider == "" || cfg.Provider == constants.NotifierProviderLog {
		logger.Info("Email delivery not configured, using log notifier")

		return NewLogNotifier(logger), nil
	}

	switch cfg.Provider {
	case constants.NotifierProviderSMTP:
		logger.Info("Using SMTP notifier", slog.String("host", cfg.SMTP.Host), slog.Int("port", cfg.SMTP.Port))

		return NewSMTPNotifier(cfg.SMTP, logger)

	case constants.NotifierProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("local endpoint is required for local provider")
		}
		logger.Info("Using local HTTP notifier", slog.String("endpoint", cfg.LocalEndpoint))

		return NewLocalHTTPNotifier(cfg.LocalEndpoint, logger), nil

	case constants.NotifierProviderPubSub:
		if cfg.ProjectID == "" {
			return nil, errors.New("project ID is required for pubsub provider")
		}
		if cfg.TopicID == "" {
			return nil, errors.New("topic ID is required for pubsub provider")
		}

		return NewPubSubNotifier(ctx, cfg.ProjectID, cfg.TopicID, logger)

	default:
		return nil, errors.Errorf("unknown notifier provider: %s", cfg.Provider)
	}
}
