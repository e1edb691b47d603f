package usecase

import (
	"context"

	"stockdash/internal/domain/entity"
)

// SessionUsecase manages the per-browser login session.
type SessionUsecase interface {
	// Load returns the live session with id, or a fresh anonymous one when id is
	// empty, unknown or expired.
	Load(ctx context.Context, id string) (*entity.Session, error)

	// Save persists the session if its state changed.
	Save(ctx context.Context, session *entity.Session) error

	// Destroy logs the session out and forgets it.
	Destroy(ctx context.Context, session *entity.Session) error
}
