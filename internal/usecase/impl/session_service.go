package impl

import (
	"context"
	"log/slog"
	"time"

	"stockdash/config"
	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/domain/entity"
	domainerrors "stockdash/internal/domain/errors"
	"stockdash/internal/domain/repository"
	"stockdash/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	sessions repository.SessionRepository
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// SessionServiceParams holds dependencies for SessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	Sessions repository.SessionRepository
	Config   *config.Config
	Logger   *slog.Logger

	Clock func() time.Time `optional:"true"`
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	now := params.Clock
	if now == nil {
		now = time.Now
	}

	return &sessionService{
		sessions: params.Sessions,
		ttl:      params.Config.Session.TTL,
		now:      now,
		logger:   params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *sessionService) Load(ctx context.Context, id string) (*entity.Session, error) {
	if id != "" {
		session, err := srv.sessions.Find(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domainerrors.ErrStoreUnavailable.Wrap(err, "failed to load session")
		}
	}

	return entity.NewAnonymousSession(uuid.NewString(), srv.now(), srv.ttl), nil
}

// Save persists the session only when a grant or reset changed it. A session
// leaving the anonymous state is saved under a new id so a pre-login id cannot
// be reused.
func (srv *sessionService) Save(ctx context.Context, session *entity.Session) error {
	if session == nil || !session.Dirty() {
		return nil
	}

	if session.IsAuthenticated() || session.IsAdmin() {
		previous := session.ID
		session.ID = uuid.NewString()
		if err := srv.sessions.Delete(ctx, previous); err != nil {
			srv.log(ctx).Warn("Failed to drop pre-login session", slog.Any("error", err))
		}
	}

	if err := srv.sessions.Save(ctx, session); err != nil {
		return domainerrors.ErrStoreUnavailable.Wrap(err, "failed to save session")
	}

	return nil
}

func (srv *sessionService) Destroy(ctx context.Context, session *entity.Session) error {
	if session == nil {
		return nil
	}

	session.Reset()
	if err := srv.sessions.Delete(ctx, session.ID); err != nil {
		return domainerrors.ErrStoreUnavailable.Wrap(err, "failed to delete session")
	}
	session.MarkClean()

	srv.log(ctx).Debug("Session destroyed")

	return nil
}
