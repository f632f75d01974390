package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"opdportal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// API is the slice of the backend the notification store depends on.
type API interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Subscriber is the slice of the real-time channel the store listens on.
type Subscriber interface {
	On(event string, fn func(data json.RawMessage)) func()
}

// MarkReadError reports that at least one server update of a mark-all-read
// batch failed. Local state is already marked read.
type MarkReadError struct {
	Failed []string
	Total  int
	Err    error
}

func (e *MarkReadError) Error() string {
	return fmt.Sprintf("mark read: %d of %d updates failed: %v", len(e.Failed), e.Total, e.Err)
}

func (e *MarkReadError) Unwrap() error { return e.Err }

// Store merges fetched history and live pushes into one newest-first list.
type Store struct {
	api     API
	limiter *rate.Limiter
	logger  *zap.Logger

	mu        sync.RWMutex
	items     []models.Notification
	epoch     uint64
	listeners []func([]models.Notification)
}

// NewStore paces mark-read fan-out to perSecond requests; zero disables pacing.
func NewStore(api API, perSecond int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = perSecond
	}
	return &Store{
		api:     api,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Attach subscribes the store to notification pushes and returns the detach
// function.
func (s *Store) Attach(sub Subscriber, event string) func() {
	return sub.On(event, func(data json.RawMessage) {
		var n models.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			s.logger.Warn("notification: malformed push dropped", zap.Error(err))
			return
		}
		s.Receive(n)
	})
}

// OnChange registers a listener called with a copy of the list after every
// change.
func (s *Store) OnChange(fn func([]models.Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// List returns a copy of the current list, newest first.
func (s *Store) List() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.items...)
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Refresh replaces the whole list with the server history. On failure the
// current list is left untouched. A result that arrives after Reset is
// dropped.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	items, err := s.api.ListNotifications(ctx)
	if err != nil {
		s.logger.Warn("notification: refresh failed", zap.Error(err))
		return err
	}
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("notification: stale refresh discarded")
		return nil
	}
	s.items = append([]models.Notification(nil), items...)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Receive prepends one pushed notification, tagged unread. A push whose
// server id is already listed is ignored.
func (s *Store) Receive(n models.Notification) bool {
	n.Read = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	if !n.ID.Empty() {
		for _, item := range s.items {
			if item.ID == n.ID {
				s.mu.Unlock()
				return false
			}
		}
	}
	s.items = append([]models.Notification{n}, s.items...)
	s.mu.Unlock()
	s.notify()
	return true
}

// MarkAllRead marks every notification read locally, then issues one server
// update per previously unread item that has an id. Local state is never
// rolled back.
func (s *Store) MarkAllRead(ctx context.Context) error {
	var pending []string
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].Read {
			continue
		}
		s.items[i].Read = true
		changed = true
		if !s.items[i].ID.Empty() {
			pending = append(pending, s.items[i].ID.String())
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	// Every update is attempted; one failure does not cancel the others.
	var g errgroup.Group
	for _, id := range pending {
		id := id
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				mu.Lock()
				failed = append(failed, id)
				mu.Unlock()
				return err
			}
			if err := s.api.MarkNotificationRead(ctx, id); err != nil {
				mu.Lock()
				failed = append(failed, id)
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("notification: mark all read failed",
			zap.Int("failed", len(failed)),
			zap.Int("total", len(pending)),
			zap.Error(err))
		return &MarkReadError{Failed: failed, Total: len(pending), Err: err}
	}
	return nil
}

// Reset empties the list and invalidates refreshes still in flight.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = nil
	s.epoch++
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := append([]func([]models.Notification){}, s.listeners...)
	items := append([]models.Notification(nil), s.items...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(items)
	}
}
