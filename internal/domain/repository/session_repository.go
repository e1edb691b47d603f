package repository

import (
	"context"
	"errors"

	"stockdash/internal/domain/entity"
)

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores ephemeral sessions outside the credential store.
type SessionRepository interface {
	// Save writes the session; it lives until session.ExpiresAt.
	Save(ctx context.Context, session *entity.Session) error

	// Find loads a live session by id.
	Find(ctx context.Context, id string) (*entity.Session, error)

	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}
