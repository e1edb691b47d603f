package session

import (
	"context"
	"encoding/json"
	"time"

	"stockdash/internal/domain/entity"
	"stockdash/internal/domain/repository"
	"stockdash/internal/errors"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

type redisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore keeps sessions as JSON values that Redis expires at ExpiresAt.
func NewRedisStore(client *redis.Client) repository.SessionRepository {
	return &redisStore{client: client, now: time.Now}
}

func (s *redisStore) Save(ctx context.Context, sess *entity.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}

	if err := s.client.Set(ctx, keyPrefix+sess.ID, payload, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to save session")
	}
	sess.MarkClean()

	return nil
}

func (s *redisStore) Find(ctx context.Context, id string) (*entity.Session, error) {
	payload, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to load session")
	}

	var sess entity.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, errors.Wrap(err, "failed to decode session")
	}
	if !sess.Kind.IsValid() || sess.IsExpired(s.now()) {
		return nil, repository.ErrSessionNotFound
	}

	return &sess, nil
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "failed to delete session")
	}

	return nil
}
