package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"opdportal/models"
	"opdportal/services/storage"
	"opdportal/utils"

	"go.uber.org/zap"
)

// Status is the position of the session in its state machine:
// uninitialized → loading → {authenticated, anonymous}.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
)

// AuthAPI is the slice of the backend the session store depends on.
type AuthAPI interface {
	Me(ctx context.Context) (models.SessionUser, error)
	Login(ctx context.Context, in models.LoginRequest) (models.AuthResponse, error)
	Register(ctx context.Context, in models.RegisterRequest) (models.AuthResponse, error)
	Logout(ctx context.Context) error
}

// Room is the slice of the real-time channel the session store drives.
type Room interface {
	JoinUser(userID string) error
	Reset() error
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	Status         Status              `json:"status"`
	Loading        bool                `json:"loading"`
	User           *models.SessionUser `json:"user,omitempty"`
	TokenExpiresAt *time.Time          `json:"tokenExpiresAt,omitempty"`
}

// Authenticated reports whether a user is present.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// Store is the single source of truth for who is logged in.
type Store struct {
	api       AuthAPI
	tokens    storage.TokenStore
	room      Room
	logger    *zap.Logger
	loginPath string

	mu     sync.RWMutex
	status Status
	user   *models.SessionUser
	token  string
	// epoch increments on every explicit identity change so that a bootstrap
	// resolving afterwards cannot overwrite it.
	epoch  uint64
	hooks  []func()
	signIn []func(models.SessionUser)
}

func NewStore(api AuthAPI, tokens storage.TokenStore, room Room, loginPath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:       api,
		tokens:    tokens,
		room:      room,
		logger:    logger,
		loginPath: loginPath,
		status:    StatusUninitialized,
	}
}

// OnReset registers a function run, in registration order, on logout.
func (s *Store) OnReset(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// OnSignIn registers a function run whenever a different user becomes
// current, after the realtime room was joined.
func (s *Store) OnSignIn(fn func(models.SessionUser)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signIn = append(s.signIn, fn)
}

// Token returns the in-memory bearer token.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Snapshot returns the current session view.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Status:  s.status,
		Loading: s.status == StatusUninitialized || s.status == StatusLoading,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.token != "" {
		if claims, err := utils.DecodeTokenClaims(s.token); err == nil && !claims.ExpiresAt.IsZero() {
			exp := claims.ExpiresAt
			snap.TokenExpiresAt = &exp
		}
	}
	return snap
}

// Bootstrap resolves the session from the persisted token. It never leaves
// the store loading: every failure resolves to anonymous.
func (s *Store) Bootstrap(ctx context.Context) Snapshot {
	s.mu.Lock()
	s.status = StatusLoading
	epoch := s.epoch
	s.mu.Unlock()

	persisted, err := s.tokens.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNoSession) {
			s.logger.Warn("session: failed to load persisted token", zap.Error(err))
		}
		s.resolve(epoch, nil, "")
		return s.Snapshot()
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.token = persisted.Token
	}
	s.mu.Unlock()

	user, err := s.api.Me(ctx)
	if err != nil {
		s.logger.Info("session: bootstrap resolved anonymous",
			zap.String("token_fp", fingerprint(persisted.Token)),
			zap.Error(err))
		s.resolve(epoch, nil, persisted.Token)
		return s.Snapshot()
	}

	if s.resolve(epoch, &user, persisted.Token) && (persisted.User == nil || *persisted.User != user) {
		persisted.User = &user
		if err := s.tokens.Save(ctx, persisted); err != nil {
			s.logger.Warn("session: failed to refresh cached user", zap.Error(err))
		}
	}
	return s.Snapshot()
}

// Refetch re-runs the bootstrap fetch on demand.
func (s *Store) Refetch(ctx context.Context) Snapshot {
	return s.Bootstrap(ctx)
}

// SetUser replaces the user directly, bypassing a refetch.
func (s *Store) SetUser(user models.SessionUser) {
	s.mu.Lock()
	s.epoch++
	join := s.setUserLocked(&user)
	s.mu.Unlock()
	s.join(join)
}

// Login authenticates against the backend, persists the token and sets the
// user.
func (s *Store) Login(ctx context.Context, in models.LoginRequest) (models.SessionUser, error) {
	resp, err := s.api.Login(ctx, in)
	if err != nil {
		return models.SessionUser{}, err
	}
	s.establish(ctx, resp)
	return resp.User, nil
}

// Register creates an account and signs it in.
func (s *Store) Register(ctx context.Context, in models.RegisterRequest) (models.SessionUser, error) {
	resp, err := s.api.Register(ctx, in)
	if err != nil {
		return models.SessionUser{}, err
	}
	s.establish(ctx, resp)
	return resp.User, nil
}

func (s *Store) establish(ctx context.Context, resp models.AuthResponse) {
	user := resp.User
	if err := s.tokens.Save(ctx, storage.PersistedSession{Token: resp.Token, User: &user}); err != nil {
		s.logger.Warn("session: failed to persist token", zap.Error(err))
	}

	s.mu.Lock()
	s.epoch++
	s.token = resp.Token
	join := s.setUserLocked(&user)
	s.mu.Unlock()
	s.join(join)

	s.logger.Info("session: signed in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role),
		zap.String("token_fp", fingerprint(resp.Token)))
}

// Logout tears the session down and returns the login destination. Every
// step runs even when an earlier one fails.
func (s *Store) Logout(ctx context.Context) string {
	if s.Token() != "" {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Info("session: backend logout failed", zap.Error(err))
		}
	}
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Warn("session: failed to clear persisted token", zap.Error(err))
	}

	s.mu.Lock()
	s.epoch++
	s.token = ""
	s.user = nil
	s.status = StatusAnonymous
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()

	if s.room != nil {
		if err := s.room.Reset(); err != nil {
			s.logger.Warn("session: failed to reset realtime channel", zap.Error(err))
		}
	}
	for _, fn := range hooks {
		fn()
	}
	return s.loginPath
}

// resolve applies a bootstrap result unless an explicit identity change
// happened since the bootstrap began. It reports whether it applied.
func (s *Store) resolve(epoch uint64, user *models.SessionUser, token string) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.token = token
	join := s.setUserLocked(user)
	s.mu.Unlock()
	s.join(join)
	return true
}

// setUserLocked stores the user and returns the id to join when the user id
// changed to a new non-empty value.
func (s *Store) setUserLocked(user *models.SessionUser) string {
	prev := ""
	if s.user != nil {
		prev = s.user.ID.String()
	}
	s.user = user
	if user == nil {
		s.status = StatusAnonymous
		return ""
	}
	s.status = StatusAuthenticated
	if id := user.ID.String(); id != "" && id != prev {
		return id
	}
	return ""
}

func (s *Store) join(userID string) {
	if userID == "" {
		return
	}
	if s.room != nil {
		if err := s.room.JoinUser(userID); err != nil {
			s.logger.Warn("session: failed to join user room", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.mu.RLock()
	hooks := append([]func(models.SessionUser){}, s.signIn...)
	var user models.SessionUser
	current := s.user != nil && s.user.ID.String() == userID
	if current {
		user = *s.user
	}
	s.mu.RUnlock()
	if !current {
		return
	}
	for _, fn := range hooks {
		fn(user)
	}
}

func fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return utils.HashToken(token)[:12]
}
