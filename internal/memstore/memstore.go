// Package memstore is the in-memory storage backend, selectable with
// STORE_BACKEND=memory. A single mutex covers sessions and their check-ins so
// inserts are constraint-checked atomically and session deletion cascades
// without readers observing a half-deleted state.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"rollcall/internal/analytics"
	"rollcall/internal/checkin"
	"rollcall/internal/session"
	"rollcall/internal/user"
)

// Store implements the session, check-in, user and analytics stores over
// process memory.
type Store struct {
	mu          sync.Mutex
	trackOrigin bool

	users    map[string]*user.User
	byEmail  map[string]string
	sessions map[string]*session.Session
	checkins map[string][]*checkin.Checkin
}

// New creates an empty store. trackOrigin enables the per-(session, origin)
// uniqueness constraint, mirroring the optional Postgres index.
func New(trackOrigin bool) *Store {
	return &Store{
		trackOrigin: trackOrigin,
		users:       make(map[string]*user.User),
		byEmail:     make(map[string]string),
		sessions:    make(map[string]*session.Session),
		checkins:    make(map[string][]*checkin.Checkin),
	}
}

// --- session.Store ---

func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) ListByCreator(ctx context.Context, creatorID string) ([]*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*session.Session
	for _, sess := range s.sessions {
		if sess.CreatorID == creatorID {
			cp := *sess
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status session.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	sess.Status = status
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.checkins, id)
	return nil
}

// --- checkin.Store ---

func (s *Store) Insert(ctx context.Context, c *checkin.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.checkins[c.SessionID] {
		if existing.StudentID == c.StudentID {
			return checkin.ErrDuplicateStudent
		}
		if s.trackOrigin && c.OriginAddr != "" && existing.OriginAddr == c.OriginAddr {
			return checkin.ErrDuplicateOrigin
		}
	}
	cp := *c
	s.checkins[c.SessionID] = append(s.checkins[c.SessionID], &cp)
	return nil
}

func (s *Store) GetByStudent(ctx context.Context, sessionID, studentID string) (*checkin.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.checkins[sessionID] {
		if c.StudentID == studentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetByOrigin(ctx context.Context, sessionID, origin string) (*checkin.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.checkins[sessionID] {
		if origin != "" && c.OriginAddr == origin {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]*checkin.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.checkins[sessionID]
	res := make([]*checkin.Checkin, 0, len(recs))
	for _, c := range recs {
		cp := *c
		res = append(res, &cp)
	}
	// Newest first; records are appended in insertion order, so a stable
	// reverse walk breaks timestamp ties correctly.
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].MarkedAt.After(res[j].MarkedAt)
	})
	return res, nil
}

func (s *Store) CountBySession(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checkins[sessionID]), nil
}

// --- user.Store ---

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return user.ErrEmailTaken
	}
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[email] = u.ID
	return nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// --- analytics.Store ---

func (s *Store) Totals(ctx context.Context, creatorID string) (analytics.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t analytics.Totals
	for id, sess := range s.sessions {
		if sess.CreatorID == creatorID {
			t.Sessions++
			t.Attendees += len(s.checkins[id])
		}
	}
	return t, nil
}

func (s *Store) DailyTrend(ctx context.Context, creatorID string, days int) ([]analytics.DayCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if days <= 0 {
		days = 14
	}
	byDay := make(map[string]int)
	for id, sess := range s.sessions {
		if sess.CreatorID != creatorID {
			continue
		}
		for _, c := range s.checkins[id] {
			byDay[c.MarkedAt.Format("2006-01-02")]++
		}
	}
	res := make([]analytics.DayCount, 0, len(byDay))
	for day, count := range byDay {
		res = append(res, analytics.DayCount{Date: day, Count: count})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date > res[j].Date })
	if len(res) > days {
		res = res[:days]
	}
	return res, nil
}

// UserStore adapts the method names to the user.Store interface.
type UserStore struct {
	*Store
}

func (s UserStore) Create(ctx context.Context, u *user.User) error {
	return s.CreateUser(ctx, u)
}

var (
	_ session.Store   = (*Store)(nil)
	_ checkin.Store   = (*Store)(nil)
	_ analytics.Store = (*Store)(nil)
	_ user.Store      = UserStore{}
)
