package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/apperr"
	"rollcall/internal/clock"
)

// Service is the session lifecycle controller: it creates sessions and
// applies owner-gated status transitions and deletion. Expiry is enforced at
// admission time, never by transitioning stored status.
type Service struct {
	store Store
	clock clock.Clock
}

// NewService creates the lifecycle controller.
func NewService(store Store, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Default{}
	}
	return &Service{store: store, clock: clk}
}

// CreateInput carries the caller-supplied session attributes.
type CreateInput struct {
	Title            string
	Description      string
	CreatorID        string
	ExpiresInMinutes int
}

// Create makes a new active session. A positive ExpiresInMinutes sets the
// expiry to creation time plus that offset.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Session, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "title is required")
	}
	if in.CreatorID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "missing creator identity")
	}

	sess := &Session{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		CreatorID:   in.CreatorID,
		Status:      StatusActive,
		CreatedAt:   s.clock.Now(),
	}
	if in.ExpiresInMinutes > 0 {
		exp := s.clock.Now().Add(time.Duration(in.ExpiresInMinutes) * time.Minute)
		sess.ExpiresAt = &exp
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "failed to create session", err)
	}
	return sess, nil
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.KindSessionNotFound, "session not found")
		}
		return nil, apperr.Wrap(apperr.KindStore, "failed to load session", err)
	}
	return sess, nil
}

// ListByCreator returns the caller's sessions, newest first.
func (s *Service) ListByCreator(ctx context.Context, creatorID string) ([]*Session, error) {
	res, err := s.store.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "failed to list sessions", err)
	}
	return res, nil
}

// Close transitions an owned session to closed.
func (s *Service) Close(ctx context.Context, id, callerID string) (*Session, error) {
	return s.transition(ctx, id, callerID, StatusClosed)
}

// Reopen transitions an owned session back to active. It does not clear or
// extend an already-passed expiry; a reopened-but-expired session remains
// non-accepting.
func (s *Service) Reopen(ctx context.Context, id, callerID string) (*Session, error) {
	return s.transition(ctx, id, callerID, StatusActive)
}

func (s *Service) transition(ctx context.Context, id, callerID string, status Status) (*Session, error) {
	sess, err := s.owned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "failed to update session", err)
	}
	sess.Status = status
	return sess, nil
}

// Delete removes an owned session and, by cascade, all its check-ins.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.owned(ctx, id, callerID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.New(apperr.KindSessionNotFound, "session not found")
		}
		return apperr.Wrap(apperr.KindStore, "failed to delete session", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, id, callerID string) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "missing caller identity")
	}
	if sess.CreatorID != callerID {
		return nil, apperr.New(apperr.KindForbidden, "only the session owner may do this")
	}
	return sess, nil
}
