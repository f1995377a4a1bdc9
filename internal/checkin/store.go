package checkin

import (
	"context"
	"errors"
)

// Store-level uniqueness signals. The unique constraints in the store are the
// actual correctness guarantee under concurrency; the engine's pre-checks only
// provide fast, friendly errors in the non-racing case.
var (
	ErrDuplicateStudent = errors.New("student already checked in for session")
	ErrDuplicateOrigin  = errors.New("origin already checked in for session")
)

// Store persists check-in records with atomic constraint-checked inserts.
type Store interface {
	// Insert writes a record. A concurrent duplicate must fail with
	// ErrDuplicateStudent or ErrDuplicateOrigin, never overwrite.
	Insert(ctx context.Context, c *Checkin) error
	// GetByStudent returns the record for (session, student), or nil when none.
	GetByStudent(ctx context.Context, sessionID, studentID string) (*Checkin, error)
	// GetByOrigin returns the record for (session, origin), or nil when none.
	GetByOrigin(ctx context.Context, sessionID, origin string) (*Checkin, error)
	// ListBySession returns all records for a session, newest first.
	ListBySession(ctx context.Context, sessionID string) ([]*Checkin, error)
	// CountBySession returns the number of records for a session.
	CountBySession(ctx context.Context, sessionID string) (int, error)
}
