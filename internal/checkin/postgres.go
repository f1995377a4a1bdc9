package checkin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Index names from the schema; which one fired tells us which invariant a
// racing insert violated.
const (
	constraintSessionStudent = "checkins_session_student"
	constraintSessionOrigin  = "checkins_session_origin"
)

// PostgresStore persists check-ins in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, c *Checkin) error {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO checkins (id, session_id, student_id, student_name, origin_addr, user_agent, device_fingerprint, marked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING marked_at
	`, c.ID, c.SessionID, c.StudentID, c.StudentName, c.OriginAddr, c.UserAgent, nullable(c.DeviceFingerprint), c.MarkedAt)
	if err := row.Scan(&c.MarkedAt); err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert checkin: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByStudent(ctx context.Context, sessionID, studentID string) (*Checkin, error) {
	return s.getOne(ctx, `
		SELECT id, session_id, student_id, student_name, origin_addr, user_agent, COALESCE(device_fingerprint, ''), marked_at
		FROM checkins WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
}

func (s *PostgresStore) GetByOrigin(ctx context.Context, sessionID, origin string) (*Checkin, error) {
	return s.getOne(ctx, `
		SELECT id, session_id, student_id, student_name, origin_addr, user_agent, COALESCE(device_fingerprint, ''), marked_at
		FROM checkins WHERE session_id = $1 AND origin_addr = $2
	`, sessionID, origin)
}

func (s *PostgresStore) getOne(ctx context.Context, query string, args ...any) (*Checkin, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var c Checkin
	if err := row.Scan(&c.ID, &c.SessionID, &c.StudentID, &c.StudentName, &c.OriginAddr, &c.UserAgent, &c.DeviceFingerprint, &c.MarkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get checkin: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID string) ([]*Checkin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, student_name, origin_addr, user_agent, COALESCE(device_fingerprint, ''), marked_at
		FROM checkins WHERE session_id = $1 ORDER BY marked_at DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	defer rows.Close()
	var res []*Checkin
	for rows.Next() {
		var c Checkin
		if err := rows.Scan(&c.ID, &c.SessionID, &c.StudentID, &c.StudentName, &c.OriginAddr, &c.UserAgent, &c.DeviceFingerprint, &c.MarkedAt); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		res = append(res, &c)
	}
	return res, rows.Err()
}

func (s *PostgresStore) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkins WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count checkins: %w", err)
	}
	return count, nil
}

// duplicateError maps a Postgres unique violation to the store-level signal
// for whichever constraint fired, or nil when the error is something else.
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintSessionStudent:
		return ErrDuplicateStudent
	case constraintSessionOrigin:
		return ErrDuplicateOrigin
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*PostgresStore)(nil)
