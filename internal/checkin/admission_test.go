package checkin_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/apperr"
	"rollcall/internal/checkin"
	"rollcall/internal/clock"
	"rollcall/internal/memstore"
	"rollcall/internal/session"
)

type AdmissionTestSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memstore.Store
	clock   *clock.Fixed
	engine  *checkin.Engine
	testNow time.Time
}

func (s *AdmissionTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New(true)
	s.testNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	s.clock = &clock.Fixed{T: s.testNow}
	s.engine = checkin.NewEngine(s.store, s.store, s.clock, true)
}

func TestAdmissionTestSuite(t *testing.T) {
	suite.Run(t, new(AdmissionTestSuite))
}

func (s *AdmissionTestSuite) createSession(expiresIn time.Duration) *session.Session {
	sess := &session.Session{
		ID:        "sess-" + time.Now().Format("150405.000000000"),
		Title:     "CS101",
		CreatorID: "teacher-1",
		Status:    session.StatusActive,
		CreatedAt: s.testNow,
	}
	if expiresIn > 0 {
		exp := s.testNow.Add(expiresIn)
		sess.ExpiresAt = &exp
	}
	s.Require().NoError(s.store.Create(s.ctx, sess))
	return sess
}

func (s *AdmissionTestSuite) submit(sessionID, studentID, origin string) (*checkin.Checkin, error) {
	return s.engine.Submit(s.ctx, checkin.SubmitInput{
		SessionID:   sessionID,
		StudentID:   studentID,
		StudentName: "Alice",
		OriginAddr:  origin,
	})
}

func (s *AdmissionTestSuite) TestAcceptThenDuplicateStudent() {
	sess := s.createSession(0)

	rec, err := s.submit(sess.ID, "S1", "10.0.0.1")
	s.Require().NoError(err)
	s.Equal("S1", rec.StudentID)
	s.Equal(sess.ID, rec.SessionID)
	s.Equal(s.testNow, rec.MarkedAt)

	_, err = s.submit(sess.ID, "S1", "10.0.0.2")
	s.Require().Error(err)
	s.Equal(apperr.KindDuplicateStudent, apperr.KindOf(err))

	// exactly one record persisted
	n, err := s.store.CountBySession(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *AdmissionTestSuite) TestInputValidation() {
	sess := s.createSession(0)

	_, err := s.engine.Submit(s.ctx, checkin.SubmitInput{
		SessionID:   sess.ID,
		StudentID:   "   ",
		StudentName: "Alice",
	})
	s.Require().Error(err)
	s.Equal(apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = s.engine.Submit(s.ctx, checkin.SubmitInput{
		SessionID:   sess.ID,
		StudentID:   "S1",
		StudentName: "",
	})
	s.Require().Error(err)
	s.Equal(apperr.KindInvalidInput, apperr.KindOf(err))
}

func (s *AdmissionTestSuite) TestSessionNotFound() {
	_, err := s.submit("no-such-session", "S1", "")
	s.Require().Error(err)
	s.Equal(apperr.KindSessionNotFound, apperr.KindOf(err))
}

func (s *AdmissionTestSuite) TestExpiredSessionRejectsDespiteActiveStatus() {
	sess := s.createSession(time.Minute)

	s.clock.Advance(2 * time.Minute)

	_, err := s.submit(sess.ID, "S1", "")
	s.Require().Error(err)
	s.Equal(apperr.KindSessionClosed, apperr.KindOf(err))
	s.Contains(err.Error(), "expired")

	// stored status is untouched
	got, err := s.store.Get(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(session.StatusActive, got.Status)
}

func (s *AdmissionTestSuite) TestSubmitAtExactExpiryAccepted() {
	sess := s.createSession(time.Minute)

	// now == expiry is still within the window
	s.clock.Advance(time.Minute)

	_, err := s.submit(sess.ID, "S1", "")
	s.Require().NoError(err)
}

func (s *AdmissionTestSuite) TestClosedThenReopenedAccepts() {
	sess := s.createSession(0)
	s.Require().NoError(s.store.UpdateStatus(s.ctx, sess.ID, session.StatusClosed))

	_, err := s.submit(sess.ID, "S2", "")
	s.Require().Error(err)
	s.Equal(apperr.KindSessionClosed, apperr.KindOf(err))

	s.Require().NoError(s.store.UpdateStatus(s.ctx, sess.ID, session.StatusActive))

	_, err = s.submit(sess.ID, "S2", "")
	s.Require().NoError(err)
}

func (s *AdmissionTestSuite) TestDuplicateOrigin() {
	sess := s.createSession(0)

	_, err := s.submit(sess.ID, "S1", "10.0.0.1")
	s.Require().NoError(err)

	_, err = s.submit(sess.ID, "S2", "10.0.0.1")
	s.Require().Error(err)
	s.Equal(apperr.KindDuplicateOrigin, apperr.KindOf(err))
}

func (s *AdmissionTestSuite) TestOriginNotEnforcedWhenTrackingDisabled() {
	untracked := memstore.New(false)
	engine := checkin.NewEngine(untracked, untracked, s.clock, false)
	sess := &session.Session{ID: "sess-1", Title: "CS101", CreatorID: "teacher-1", Status: session.StatusActive, CreatedAt: s.testNow}
	s.Require().NoError(untracked.Create(s.ctx, sess))

	_, err := engine.Submit(s.ctx, checkin.SubmitInput{SessionID: "sess-1", StudentID: "S1", StudentName: "Alice", OriginAddr: "10.0.0.1"})
	s.Require().NoError(err)
	rec, err := engine.Submit(s.ctx, checkin.SubmitInput{SessionID: "sess-1", StudentID: "S2", StudentName: "Bob", OriginAddr: "10.0.0.1"})
	s.Require().NoError(err)
	// origin still recorded for audit
	s.Equal("10.0.0.1", rec.OriginAddr)
}

func (s *AdmissionTestSuite) TestAcceptedRecordVisibleToRosterReads() {
	sess := s.createSession(0)

	rec, err := s.submit(sess.ID, "S1", "")
	s.Require().NoError(err)

	list, err := s.store.ListBySession(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(rec.ID, list[0].ID)
}

func (s *AdmissionTestSuite) TestConcurrentSameStudentExactlyOneAccepted() {
	sess := s.createSession(0)

	const n = 32
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// no origin, so only the student constraint is in play
			_, err := s.engine.Submit(s.ctx, checkin.SubmitInput{
				SessionID:   sess.ID,
				StudentID:   "S1",
				StudentName: "Alice",
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		} else {
			s.Equal(apperr.KindDuplicateStudent, apperr.KindOf(err))
		}
	}
	s.Equal(1, accepted)

	count, err := s.store.CountBySession(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(1, count)
}
