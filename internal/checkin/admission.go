package checkin

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"rollcall/internal/apperr"
	"rollcall/internal/clock"
	"rollcall/internal/session"
)

// Engine decides whether a submitted check-in is accepted. Validation runs
// cheapest-first and each failure maps to one taxonomy kind; the final insert
// relies on the store's unique constraints to settle races the pre-checks
// cannot see. Rate limiting is applied upstream, before submissions reach the
// engine.
type Engine struct {
	sessions    session.Store
	checkins    Store
	clock       clock.Clock
	trackOrigin bool
}

// NewEngine creates an admission engine. When trackOrigin is set, a single
// network origin can produce at most one check-in per session.
func NewEngine(sessions session.Store, checkins Store, clk clock.Clock, trackOrigin bool) *Engine {
	if clk == nil {
		clk = clock.Default{}
	}
	return &Engine{sessions: sessions, checkins: checkins, clock: clk, trackOrigin: trackOrigin}
}

// SubmitInput is one check-in attempt. OriginAddr and UserAgent come from the
// transport; OriginAddr is an advisory anti-abuse signal, not a security
// boundary.
type SubmitInput struct {
	SessionID         string
	StudentID         string
	StudentName       string
	OriginAddr        string
	UserAgent         string
	DeviceFingerprint string
}

// Submit runs the admission checks in order and persists the record on
// acceptance. The returned record is already visible to roster reads.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*Checkin, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	studentID := strings.TrimSpace(in.StudentID)
	studentName := strings.TrimSpace(in.StudentName)
	if sessionID == "" || studentID == "" || studentName == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "studentId, studentName and sessionId are required")
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperr.New(apperr.KindSessionNotFound, "invalid session id, this session does not exist")
		}
		return nil, apperr.Wrap(apperr.KindStore, "failed to load session", err)
	}

	now := e.clock.Now()
	if !sess.AcceptingAt(now) {
		if sess.Expired(now) {
			return nil, apperr.New(apperr.KindSessionClosed, "session expired, please scan a new code")
		}
		return nil, apperr.New(apperr.KindSessionClosed, "session is closed")
	}

	prior, err := e.checkins.GetByStudent(ctx, sessionID, studentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "failed to check prior attendance", err)
	}
	if prior != nil {
		return nil, apperr.New(apperr.KindDuplicateStudent, "attendance already marked for this student id")
	}

	if e.trackOrigin && in.OriginAddr != "" {
		prior, err := e.checkins.GetByOrigin(ctx, sessionID, in.OriginAddr)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStore, "failed to check prior attendance", err)
		}
		if prior != nil {
			return nil, apperr.New(apperr.KindDuplicateOrigin, "you have already marked your attendance")
		}
	}

	// Origin is recorded for audit even when not enforced; the uniqueness
	// constraint only exists in deployments that track it.
	rec := &Checkin{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		StudentID:         studentID,
		StudentName:       studentName,
		OriginAddr:        in.OriginAddr,
		UserAgent:         in.UserAgent,
		DeviceFingerprint: in.DeviceFingerprint,
		MarkedAt:          now,
	}

	if err := e.checkins.Insert(ctx, rec); err != nil {
		// A race slipped past the pre-checks; the constraint is authoritative.
		switch {
		case errors.Is(err, ErrDuplicateStudent):
			return nil, apperr.New(apperr.KindDuplicateStudent, "attendance already marked for this student id")
		case errors.Is(err, ErrDuplicateOrigin):
			return nil, apperr.New(apperr.KindDuplicateOrigin, "you have already marked your attendance")
		}
		return nil, apperr.Wrap(apperr.KindStore, "failed to record attendance", err)
	}
	return rec, nil
}
