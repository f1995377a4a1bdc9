package memstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rollcall/internal/checkin"
	"rollcall/internal/memstore"
	"rollcall/internal/session"
	"rollcall/internal/user"
)

var testNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func seedSession(t *testing.T, s *memstore.Store, id, creatorID string) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &session.Session{
		ID:        id,
		Title:     "CS101",
		CreatorID: creatorID,
		Status:    session.StatusActive,
		CreatedAt: testNow,
	}))
}

func TestInsertEnforcesStudentUniquenessUnderConcurrency(t *testing.T) {
	s := memstore.New(true)
	ctx := context.Background()
	seedSession(t, s, "sess-1", "teacher-1")

	const n = 64
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Insert(ctx, &checkin.Checkin{
				ID:          "c",
				SessionID:   "sess-1",
				StudentID:   "S1",
				StudentName: "Alice",
				MarkedAt:    testNow,
			})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			require.ErrorIs(t, err, checkin.ErrDuplicateStudent)
		}
	}
	require.Equal(t, 1, accepted)
}

func TestInsertEnforcesOriginUniquenessWhenTracked(t *testing.T) {
	s := memstore.New(true)
	ctx := context.Background()
	seedSession(t, s, "sess-1", "teacher-1")

	require.NoError(t, s.Insert(ctx, &checkin.Checkin{ID: "c1", SessionID: "sess-1", StudentID: "S1", OriginAddr: "10.0.0.1", MarkedAt: testNow}))
	err := s.Insert(ctx, &checkin.Checkin{ID: "c2", SessionID: "sess-1", StudentID: "S2", OriginAddr: "10.0.0.1", MarkedAt: testNow})
	require.ErrorIs(t, err, checkin.ErrDuplicateOrigin)

	// not enforced when tracking is off
	s2 := memstore.New(false)
	seedSession(t, s2, "sess-1", "teacher-1")
	require.NoError(t, s2.Insert(ctx, &checkin.Checkin{ID: "c1", SessionID: "sess-1", StudentID: "S1", OriginAddr: "10.0.0.1", MarkedAt: testNow}))
	require.NoError(t, s2.Insert(ctx, &checkin.Checkin{ID: "c2", SessionID: "sess-1", StudentID: "S2", OriginAddr: "10.0.0.1", MarkedAt: testNow}))
}

func TestListBySessionNewestFirstWithTieBreak(t *testing.T) {
	s := memstore.New(true)
	ctx := context.Background()
	seedSession(t, s, "sess-1", "teacher-1")

	// c1 and c2 share a timestamp; c3 is later
	require.NoError(t, s.Insert(ctx, &checkin.Checkin{ID: "c1", SessionID: "sess-1", StudentID: "S1", MarkedAt: testNow}))
	require.NoError(t, s.Insert(ctx, &checkin.Checkin{ID: "c2", SessionID: "sess-1", StudentID: "S2", MarkedAt: testNow}))
	require.NoError(t, s.Insert(ctx, &checkin.Checkin{ID: "c3", SessionID: "sess-1", StudentID: "S3", MarkedAt: testNow.Add(time.Second)}))

	list, err := s.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "c3", list[0].ID)
	require.Equal(t, "c2", list[1].ID)
	require.Equal(t, "c1", list[2].ID)
}

func TestDeleteCascades(t *testing.T) {
	s := memstore.New(true)
	ctx := context.Background()
	seedSession(t, s, "sess-1", "teacher-1")
	require.NoError(t, s.Insert(ctx, &checkin.Checkin{ID: "c1", SessionID: "sess-1", StudentID: "S1", MarkedAt: testNow}))

	require.NoError(t, s.Delete(ctx, "sess-1"))

	_, err := s.Get(ctx, "sess-1")
	require.ErrorIs(t, err, session.ErrNotFound)

	n, err := s.CountBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Zero(t, n)

	require.ErrorIs(t, s.Delete(ctx, "sess-1"), session.ErrNotFound)
}

func TestUserEmailUniqueness(t *testing.T) {
	s := memstore.UserStore{Store: memstore.New(true)}
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &user.User{ID: "u1", Email: "a@example.com"}))
	require.ErrorIs(t, s.Create(ctx, &user.User{ID: "u2", Email: "A@Example.com"}), user.ErrEmailTaken)

	got, err := s.GetByEmail(ctx, "A@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, "u1", got.ID)
}

func TestAnalyticsTotalsAndTrend(t *testing.T) {
	s := memstore.New(true)
	ctx := context.Background()
	seedSession(t, s, "sess-1", "teacher-1")
	seedSession(t, s, "sess-2", "teacher-1")
	seedSession(t, s, "sess-3", "other")

	require.NoError(t, s.Insert(ctx, &checkin.Checkin{ID: "c1", SessionID: "sess-1", StudentID: "S1", MarkedAt: testNow}))
	require.NoError(t, s.Insert(ctx, &checkin.Checkin{ID: "c2", SessionID: "sess-2", StudentID: "S1", MarkedAt: testNow.Add(24 * time.Hour)}))
	require.NoError(t, s.Insert(ctx, &checkin.Checkin{ID: "c3", SessionID: "sess-3", StudentID: "S1", MarkedAt: testNow}))

	totals, err := s.Totals(ctx, "teacher-1")
	require.NoError(t, err)
	require.Equal(t, 2, totals.Sessions)
	require.Equal(t, 2, totals.Attendees)

	trend, err := s.DailyTrend(ctx, "teacher-1", 14)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	require.Equal(t, "2026-03-10", trend[0].Date)
	require.Equal(t, "2026-03-09", trend[1].Date)
	require.Equal(t, 1, trend[0].Count)
}

func TestMutationsDoNotLeakSharedPointers(t *testing.T) {
	s := memstore.New(true)
	ctx := context.Background()
	seedSession(t, s, "sess-1", "teacher-1")

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	got.Status = session.StatusClosed

	again, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, session.StatusActive, again.Status)
}
