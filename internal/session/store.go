package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when no session matches the id.
var ErrNotFound = errors.New("session not found")

// Store persists session records. Delete must cascade to the session's
// check-ins atomically with respect to readers.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	ListByCreator(ctx context.Context, creatorID string) ([]*Session, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
}
