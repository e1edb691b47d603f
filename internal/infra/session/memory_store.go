// Package session stores login sessions in process memory or Redis.
package session

import (
	"context"
	"sync"
	"time"

	"stockdash/internal/domain/entity"
	"stockdash/internal/domain/repository"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]entity.Session
	now      func() time.Time
}

// NewMemoryStore returns a session store that lives as long as the process.
func NewMemoryStore() repository.SessionRepository {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{
		sessions: make(map[string]entity.Session),
		now:      now,
	}
}

func (s *memoryStore) Save(_ context.Context, sess *entity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = *sess
	sess.MarkClean()

	return nil
}

func (s *memoryStore) Find(_ context.Context, id string) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	if sess.IsExpired(s.now()) {
		delete(s.sessions, id)

		return nil, repository.ErrSessionNotFound
	}
	sess.MarkClean()

	return &sess, nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)

	return nil
}
