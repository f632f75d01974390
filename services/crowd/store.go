package crowd

import (
	"encoding/json"
	"sync"
	"time"

	"opdportal/models"

	"go.uber.org/zap"
)

// Subscriber is the slice of the real-time channel the store listens on.
type Subscriber interface {
	On(event string, fn func(data json.RawMessage)) func()
}

// Store maps a facility or doctor id to its latest crowd entry. Entries are
// only written by pushes and never expire.
type Store struct {
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	entries   map[string]models.CrowdEntry
	listeners []func(models.CrowdEntry)
	resets    []func()
}

func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[string]models.CrowdEntry),
	}
}

// Attach subscribes the store to every given event name and returns one
// function detaching all of them.
func (s *Store) Attach(sub Subscriber, events ...string) func() {
	var offs []func()
	for _, event := range events {
		offs = append(offs, sub.On(event, s.handle))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func (s *Store) handle(data json.RawMessage) {
	var update models.CrowdUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		s.logger.Debug("crowd: malformed push dropped", zap.Error(err))
		return
	}
	s.Receive(update)
}

// Receive overwrites the entry for the update's normalized key. Updates
// without an identifier are dropped.
func (s *Store) Receive(update models.CrowdUpdate) bool {
	key := update.Key()
	if key == "" {
		return false
	}
	level := update.Level
	if level == "" {
		level = update.CrowdLevel
	}
	entry := models.CrowdEntry{
		Key:       key,
		Level:     models.ParseCrowdLevel(level),
		Color:     update.Color,
		WaitTime:  update.WaitTime,
		UpdatedAt: s.now(),
	}

	s.mu.Lock()
	s.entries[key] = entry
	listeners := append([]func(models.CrowdEntry){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(entry)
	}
	return true
}

// Get returns the entry stored under id.
func (s *Store) Get(id string) (models.CrowdEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Snapshot returns a copy of every entry.
func (s *Store) Snapshot() map[string]models.CrowdEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.CrowdEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// OnChange registers a listener called with every written entry.
func (s *Store) OnChange(fn func(models.CrowdEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// OnReset registers a listener called after Reset has cleared every entry.
func (s *Store) OnReset(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, fn)
}

func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = make(map[string]models.CrowdEntry)
	resets := append([]func(){}, s.resets...)
	s.mu.Unlock()

	for _, fn := range resets {
		fn()
	}
}
