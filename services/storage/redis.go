package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const SessionKeyPrefix = "opdportal:session:"

// RedisTokenStore keeps the persisted session under one redis key.
type RedisTokenStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisTokenStore stores the session under SessionKeyPrefix+profile. A zero
// ttl keeps the key until logout.
func NewRedisTokenStore(client *redis.Client, profile string, ttl time.Duration) *RedisTokenStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisTokenStore{client: client, key: SessionKeyPrefix + profile, ttl: ttl}
}

func (s *RedisTokenStore) Load(ctx context.Context) (PersistedSession, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return PersistedSession{}, ErrNoSession
	}
	if err != nil {
		return PersistedSession{}, fmt.Errorf("failed to read session key: %w", err)
	}
	var session PersistedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return PersistedSession{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.Token == "" {
		return PersistedSession{}, ErrNoSession
	}
	return session, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, session PersistedSession) error {
	session.SavedAt = time.Now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
