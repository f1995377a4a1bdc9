// Package analytics produces the simple aggregate counts shown on the
// teacher dashboard. Nothing here is load-bearing for admission correctness.
package analytics

import (
	"context"

	"rollcall/internal/apperr"
	"rollcall/internal/checkin"
	"rollcall/internal/session"
)

// Totals are the headline counters for one creator.
type Totals struct {
	Sessions  int `json:"total_sessions"`
	Attendees int `json:"total_attendees"`
}

// DayCount is one day of check-in volume across a creator's sessions.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// SessionCount pairs a session with its attendee count.
type SessionCount struct {
	*session.Session
	AttendeeCount int `json:"attendee_count"`
}

// Store answers the aggregate queries.
type Store interface {
	Totals(ctx context.Context, creatorID string) (Totals, error)
	DailyTrend(ctx context.Context, creatorID string, days int) ([]DayCount, error)
}

// Summary is the full analytics payload.
type Summary struct {
	Totals
	Sessions   []SessionCount `json:"sessions"`
	DailyTrend []DayCount     `json:"daily_trend"`
}

// Service composes the aggregate queries with per-session counts.
type Service struct {
	store    Store
	sessions session.Store
	checkins checkin.Store
}

// NewService creates the analytics service.
func NewService(store Store, sessions session.Store, checkins checkin.Store) *Service {
	return &Service{store: store, sessions: sessions, checkins: checkins}
}

// Summarize returns totals, per-session counts and a 14-day trend for the
// creator's sessions.
func (s *Service) Summarize(ctx context.Context, creatorID string) (*Summary, error) {
	totals, err := s.store.Totals(ctx, creatorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "failed to load totals", err)
	}
	trend, err := s.store.DailyTrend(ctx, creatorID, 14)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "failed to load trend", err)
	}
	sessions, err := s.sessions.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "failed to list sessions", err)
	}
	counts := make([]SessionCount, 0, len(sessions))
	for _, sess := range sessions {
		n, err := s.checkins.CountBySession(ctx, sess.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStore, "failed to count attendees", err)
		}
		counts = append(counts, SessionCount{Session: sess, AttendeeCount: n})
	}
	return &Summary{Totals: totals, Sessions: counts, DailyTrend: trend}, nil
}
