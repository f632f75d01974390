package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryTokenStore keeps the session in process memory only.
type MemoryTokenStore struct {
	mu      sync.Mutex
	session *PersistedSession
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(ctx context.Context) (PersistedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || s.session.Token == "" {
		return PersistedSession{}, ErrNoSession
	}
	return *s.session, nil
}

func (s *MemoryTokenStore) Save(ctx context.Context, session PersistedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.SavedAt = time.Now().UTC()
	s.session = &session
	return nil
}

func (s *MemoryTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
