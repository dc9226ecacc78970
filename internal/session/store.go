package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load for missing and expired sessions.
var ErrNotFound = errors.New("session: not found")

// Store persists sessions by ID. Implementations must honor ExpiresAt and
// be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
