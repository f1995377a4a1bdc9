package roster_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/checkin"
	"rollcall/internal/memstore"
	"rollcall/internal/roster"
	"rollcall/internal/session"
)

const tick = 20 * time.Millisecond

type NotifierTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memstore.Store
	notifier *roster.Notifier
	now      time.Time
}

func (s *NotifierTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New(true)
	s.notifier = roster.NewNotifier(s.store, s.store, tick)
	s.now = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Create(s.ctx, &session.Session{
		ID:        "sess-1",
		Title:     "CS101",
		CreatorID: "teacher-1",
		Status:    session.StatusActive,
		CreatedAt: s.now,
	}))
}

func TestNotifierTestSuite(t *testing.T) {
	suite.Run(t, new(NotifierTestSuite))
}

func (s *NotifierTestSuite) addCheckin(id, studentID string, at time.Time) {
	s.Require().NoError(s.store.Insert(s.ctx, &checkin.Checkin{
		ID:          id,
		SessionID:   "sess-1",
		StudentID:   studentID,
		StudentName: "Student " + studentID,
		MarkedAt:    at,
	}))
}

func (s *NotifierTestSuite) recv(ch <-chan roster.Event) (roster.Event, bool) {
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for roster event")
		return roster.Event{}, false
	}
}

func (s *NotifierTestSuite) TestInitSnapshotImmediate() {
	s.addCheckin("c1", "S1", s.now)
	s.addCheckin("c2", "S2", s.now.Add(time.Minute))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	events := s.notifier.Subscribe(ctx, "sess-1")

	ev, ok := s.recv(events)
	s.Require().True(ok)
	s.Equal(roster.EventInit, ev.Type)
	s.Require().Len(ev.Attendees, 2)
	// newest first
	s.Equal("c2", ev.Attendees[0].ID)
	s.Equal("c1", ev.Attendees[1].ID)
}

func (s *NotifierTestSuite) TestUpdateIncludesLaterCheckin() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	events := s.notifier.Subscribe(ctx, "sess-1")

	ev, ok := s.recv(events)
	s.Require().True(ok)
	s.Equal(roster.EventInit, ev.Type)
	s.Empty(ev.Attendees)

	s.addCheckin("c1", "S1", s.now)

	// convergence: some subsequent tick must carry the new record
	deadline := time.After(time.Second)
	for {
		select {
		case ev, ok := <-events:
			s.Require().True(ok)
			s.Equal(roster.EventUpdate, ev.Type)
			if len(ev.Attendees) == 1 {
				s.Equal("c1", ev.Attendees[0].ID)
				return
			}
		case <-deadline:
			s.FailNow("update with new checkin never arrived")
		}
	}
}

func (s *NotifierTestSuite) TestCancelClosesChannel() {
	ctx, cancel := context.WithCancel(s.ctx)
	events := s.notifier.Subscribe(ctx, "sess-1")

	_, ok := s.recv(events)
	s.Require().True(ok)

	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			s.FailNow("channel not closed after cancel")
		}
	}
}

func (s *NotifierTestSuite) TestMissingSessionEndsStream() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	events := s.notifier.Subscribe(ctx, "no-such-session")

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			s.Require().False(ok, "expected end-of-stream, got an event")
			return
		case <-deadline:
			s.FailNow("channel not closed for missing session")
		}
	}
}

func (s *NotifierTestSuite) TestDeletedSessionEndsStream() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	events := s.notifier.Subscribe(ctx, "sess-1")

	_, ok := s.recv(events)
	s.Require().True(ok)

	s.Require().NoError(s.store.Delete(s.ctx, "sess-1"))

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			s.FailNow("channel not closed after session deletion")
		}
	}
}
