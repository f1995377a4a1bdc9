package session

import "time"

// Status is the persisted lifecycle state. Expiry is never materialized into
// it; an expired session keeps whatever status it last had.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Session is a teacher-defined, time-boxed attendance-collection window.
type Session struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatorID   string     `json:"creator_id"`
	Status      Status     `json:"status"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AcceptingAt reports whether the session admits check-ins at t: status must
// be active and any expiry must not have passed.
func (s *Session) AcceptingAt(t time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	if s.ExpiresAt != nil && t.After(*s.ExpiresAt) {
		return false
	}
	return true
}

// Expired reports whether the expiry timestamp, if any, has passed at t.
func (s *Session) Expired(t time.Time) bool {
	return s.ExpiresAt != nil && t.After(*s.ExpiresAt)
}
