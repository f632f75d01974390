package storage

import (
	"context"
	"errors"
	"time"

	"opdportal/models"
)

// ErrNoSession is returned by Load when nothing has been persisted.
var ErrNoSession = errors.New("no persisted session")

// PersistedSession is the client state that survives restarts: one bearer
// token and a cached user blob.
type PersistedSession struct {
	Token   string              `json:"token"`
	User    *models.SessionUser `json:"user,omitempty"`
	SavedAt time.Time           `json:"savedAt"`
}

// TokenStore defines the persistence of the session token.
type TokenStore interface {
	Load(ctx context.Context) (PersistedSession, error)
	Save(ctx context.Context, s PersistedSession) error
	Clear(ctx context.Context) error
}
