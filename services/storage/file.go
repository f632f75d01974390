package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileTokenStore keeps the persisted session in a single JSON file. When a
// passphrase is set the file content is sealed.
type FileTokenStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

func NewFileTokenStore(path, passphrase string) *FileTokenStore {
	return &FileTokenStore{path: path, passphrase: passphrase}
}

func (s *FileTokenStore) Load(ctx context.Context) (PersistedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return PersistedSession{}, ErrNoSession
	}
	if err != nil {
		return PersistedSession{}, fmt.Errorf("failed to read session file: %w", err)
	}
	if s.passphrase != "" {
		if data, err = open(data, s.passphrase); err != nil {
			return PersistedSession{}, err
		}
	}

	var session PersistedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return PersistedSession{}, fmt.Errorf("failed to unmarshal session file: %w", err)
	}
	if session.Token == "" {
		return PersistedSession{}, ErrNoSession
	}
	return session, nil
}

func (s *FileTokenStore) Save(ctx context.Context, session PersistedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.SavedAt = time.Now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if s.passphrase != "" {
		if data, err = seal(data, s.passphrase); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
