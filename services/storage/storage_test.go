package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"opdportal/models"
)

func TestFileTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileTokenStore(path, "")

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	user := &models.SessionUser{ID: "u1", Name: "Asha", Role: models.RolePatient}
	if err := store.Save(ctx, PersistedSession{Token: "tok", User: user}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Token != "tok" || got.User == nil || got.User.ID != "u1" {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.SavedAt.IsZero() {
		t.Fatalf("expected SavedAt to be set")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear should be a no-op: %v", err)
	}
}

func TestSealedFileTokenStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileTokenStore(path, "correct horse")

	if err := store.Save(ctx, PersistedSession{Token: "secret-token"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if bytes.Contains(raw, []byte("secret-token")) {
		t.Fatalf("token stored in clear text")
	}

	got, err := store.Load(ctx)
	if err != nil || got.Token != "secret-token" {
		t.Fatalf("Load = %+v, %v", got, err)
	}

	wrong := NewFileTokenStore(path, "wrong")
	if _, err := wrong.Load(ctx); !errors.Is(err, ErrSealedData) {
		t.Fatalf("expected ErrSealedData, got %v", err)
	}
}

func TestOpenRejectsShortInput(t *testing.T) {
	if _, err := open([]byte("short"), "x"); !errors.Is(err, ErrSealedData) {
		t.Fatalf("expected ErrSealedData, got %v", err)
	}
}

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	_ = store.Save(ctx, PersistedSession{Token: "t"})
	if got, err := store.Load(ctx); err != nil || got.Token != "t" {
		t.Fatalf("Load = %+v, %v", got, err)
	}
	_ = store.Clear(ctx)
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
