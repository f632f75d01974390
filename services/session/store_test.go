package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"opdportal/models"
	"opdportal/services/storage"

	"go.uber.org/zap"
)

type fakeAPI struct {
	meFn       func(ctx context.Context) (models.SessionUser, error)
	loginFn    func(ctx context.Context, in models.LoginRequest) (models.AuthResponse, error)
	registerFn func(ctx context.Context, in models.RegisterRequest) (models.AuthResponse, error)
	logoutFn   func(ctx context.Context) error

	mu      sync.Mutex
	meCalls int
}

func (f *fakeAPI) Me(ctx context.Context) (models.SessionUser, error) {
	f.mu.Lock()
	f.meCalls++
	f.mu.Unlock()
	if f.meFn == nil {
		return models.SessionUser{}, errors.New("no me")
	}
	return f.meFn(ctx)
}

func (f *fakeAPI) Login(ctx context.Context, in models.LoginRequest) (models.AuthResponse, error) {
	if f.loginFn == nil {
		return models.AuthResponse{}, errors.New("no login")
	}
	return f.loginFn(ctx, in)
}

func (f *fakeAPI) Register(ctx context.Context, in models.RegisterRequest) (models.AuthResponse, error) {
	if f.registerFn == nil {
		return models.AuthResponse{}, errors.New("no register")
	}
	return f.registerFn(ctx, in)
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	if f.logoutFn == nil {
		return nil
	}
	return f.logoutFn(ctx)
}

type fakeRoom struct {
	joins    []string
	resets   int
	resetErr error
}

func (r *fakeRoom) JoinUser(id string) error {
	r.joins = append(r.joins, id)
	return nil
}

func (r *fakeRoom) Reset() error {
	r.resets++
	return r.resetErr
}

var patient = models.SessionUser{ID: "u1", Name: "Asha", Role: models.RolePatient, Phone: "555", Gender: "female"}

func newTestStore(api *fakeAPI, tokens storage.TokenStore, room *fakeRoom) *Store {
	return NewStore(api, tokens, room, "/login", zap.NewNop())
}

func TestBootstrapWithoutTokenSkipsNetwork(t *testing.T) {
	api := &fakeAPI{}
	room := &fakeRoom{}
	store := newTestStore(api, storage.NewMemoryTokenStore(), room)

	if got := store.Snapshot(); got.Status != StatusUninitialized || !got.Loading {
		t.Fatalf("unexpected initial snapshot %+v", got)
	}

	snap := store.Bootstrap(context.Background())
	if snap.Status != StatusAnonymous || snap.Loading || snap.User != nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if api.meCalls != 0 {
		t.Fatalf("expected no network call, got %d", api.meCalls)
	}
	if len(room.joins) != 0 {
		t.Fatalf("unexpected joins %v", room.joins)
	}
}

func TestBootstrapFailureResolvesAnonymous(t *testing.T) {
	tokens := storage.NewMemoryTokenStore()
	_ = tokens.Save(context.Background(), storage.PersistedSession{Token: "stale"})
	api := &fakeAPI{meFn: func(context.Context) (models.SessionUser, error) {
		return models.SessionUser{}, errors.New("401")
	}}
	store := newTestStore(api, tokens, &fakeRoom{})

	snap := store.Bootstrap(context.Background())
	if snap.Status != StatusAnonymous || snap.Loading || snap.User != nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestBootstrapIdempotent(t *testing.T) {
	tokens := storage.NewMemoryTokenStore()
	_ = tokens.Save(context.Background(), storage.PersistedSession{Token: "tok"})
	api := &fakeAPI{meFn: func(context.Context) (models.SessionUser, error) { return patient, nil }}
	room := &fakeRoom{}
	store := newTestStore(api, tokens, room)

	first := store.Bootstrap(context.Background())
	for i := 0; i < 3; i++ {
		again := store.Bootstrap(context.Background())
		if again.Status != first.Status || *again.User != *first.User {
			t.Fatalf("bootstrap %d diverged: %+v vs %+v", i, again, first)
		}
	}
	if first.Status != StatusAuthenticated || first.User.ID != "u1" {
		t.Fatalf("unexpected snapshot %+v", first)
	}
	if len(room.joins) != 1 || room.joins[0] != "u1" {
		t.Fatalf("expected exactly one join, got %v", room.joins)
	}
	if store.Token() != "tok" {
		t.Fatalf("unexpected token %q", store.Token())
	}
	persisted, _ := tokens.Load(context.Background())
	if persisted.User == nil || persisted.User.ID != "u1" {
		t.Fatalf("cached user not refreshed: %+v", persisted)
	}
}

func TestLoginPersistsAndJoins(t *testing.T) {
	tokens := storage.NewMemoryTokenStore()
	api := &fakeAPI{loginFn: func(_ context.Context, in models.LoginRequest) (models.AuthResponse, error) {
		if in.Email != "a@b.c" {
			t.Fatalf("unexpected email %q", in.Email)
		}
		return models.AuthResponse{Token: "new", User: patient}, nil
	}}
	room := &fakeRoom{}
	store := newTestStore(api, tokens, room)

	user, err := store.Login(context.Background(), models.LoginRequest{Email: "a@b.c", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != "u1" || store.Token() != "new" {
		t.Fatalf("unexpected login result %+v token=%q", user, store.Token())
	}
	persisted, err := tokens.Load(context.Background())
	if err != nil || persisted.Token != "new" {
		t.Fatalf("token not persisted: %+v %v", persisted, err)
	}
	if len(room.joins) != 1 {
		t.Fatalf("expected one join, got %v", room.joins)
	}
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	api := &fakeAPI{loginFn: func(context.Context, models.LoginRequest) (models.AuthResponse, error) {
		return models.AuthResponse{}, errors.New("bad credentials")
	}}
	store := newTestStore(api, storage.NewMemoryTokenStore(), &fakeRoom{})
	store.Bootstrap(context.Background())

	if _, err := store.Login(context.Background(), models.LoginRequest{}); err == nil {
		t.Fatalf("expected error")
	}
	if snap := store.Snapshot(); snap.User != nil {
		t.Fatalf("unexpected user %+v", snap.User)
	}
}

func TestLogoutCompleteness(t *testing.T) {
	tokens := storage.NewMemoryTokenStore()
	_ = tokens.Save(context.Background(), storage.PersistedSession{Token: "tok"})
	api := &fakeAPI{
		meFn:     func(context.Context) (models.SessionUser, error) { return patient, nil },
		logoutFn: func(context.Context) error { return errors.New("backend down") },
	}
	room := &fakeRoom{resetErr: errors.New("close failed")}
	store := newTestStore(api, tokens, room)

	var order []string
	store.OnReset(func() { order = append(order, "notifications") })
	store.OnReset(func() { order = append(order, "wizard") })

	store.Bootstrap(context.Background())
	dest := store.Logout(context.Background())

	if dest != "/login" {
		t.Fatalf("unexpected destination %q", dest)
	}
	if _, err := tokens.Load(context.Background()); !errors.Is(err, storage.ErrNoSession) {
		t.Fatalf("persisted token survived logout: %v", err)
	}
	snap := store.Snapshot()
	if snap.User != nil || snap.Status != StatusAnonymous || store.Token() != "" {
		t.Fatalf("in-memory session survived logout: %+v", snap)
	}
	if room.resets != 1 {
		t.Fatalf("expected one channel reset, got %d", room.resets)
	}
	if len(order) != 2 || order[0] != "notifications" || order[1] != "wizard" {
		t.Fatalf("unexpected reset order %v", order)
	}
}

func TestStaleBootstrapDoesNotResurrectUser(t *testing.T) {
	tokens := storage.NewMemoryTokenStore()
	_ = tokens.Save(context.Background(), storage.PersistedSession{Token: "tok"})

	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{meFn: func(context.Context) (models.SessionUser, error) {
		close(started)
		<-release
		return patient, nil
	}}
	store := newTestStore(api, tokens, &fakeRoom{})

	done := make(chan Snapshot)
	go func() { done <- store.Bootstrap(context.Background()) }()
	<-started
	store.Logout(context.Background())
	close(release)
	<-done

	if snap := store.Snapshot(); snap.User != nil {
		t.Fatalf("bootstrap resolved after logout resurrected %+v", snap.User)
	}
}

func TestSetUserJoinsOnlyOnChange(t *testing.T) {
	room := &fakeRoom{}
	store := newTestStore(&fakeAPI{}, storage.NewMemoryTokenStore(), room)

	store.SetUser(patient)
	store.SetUser(patient)
	other := patient
	other.ID = "u2"
	store.SetUser(other)

	if len(room.joins) != 2 || room.joins[0] != "u1" || room.joins[1] != "u2" {
		t.Fatalf("unexpected joins %v", room.joins)
	}
}

func TestOnSignInRunsOncePerUser(t *testing.T) {
	tokens := storage.NewMemoryTokenStore()
	_ = tokens.Save(context.Background(), storage.PersistedSession{Token: "tok"})
	api := &fakeAPI{meFn: func(context.Context) (models.SessionUser, error) { return patient, nil }}
	store := newTestStore(api, tokens, &fakeRoom{})

	var seen []string
	store.OnSignIn(func(u models.SessionUser) { seen = append(seen, u.ID.String()) })

	store.Bootstrap(context.Background())
	store.Bootstrap(context.Background())
	if len(seen) != 1 || seen[0] != "u1" {
		t.Fatalf("unexpected sign-in calls %v", seen)
	}

	store.Logout(context.Background())
	store.SetUser(patient)
	if len(seen) != 2 {
		t.Fatalf("expected a second sign-in after logout, got %v", seen)
	}
}
