package analytics

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore runs the aggregate queries against Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Totals(ctx context.Context, creatorID string) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE creator_id = $1
	`, creatorID).Scan(&t.Sessions)
	if err != nil {
		return Totals{}, fmt.Errorf("count sessions: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM checkins c
		JOIN sessions s ON c.session_id = s.id
		WHERE s.creator_id = $1
	`, creatorID).Scan(&t.Attendees)
	if err != nil {
		return Totals{}, fmt.Errorf("count attendees: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) DailyTrend(ctx context.Context, creatorID string, days int) ([]DayCount, error) {
	if days <= 0 {
		days = 14
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT TO_CHAR(c.marked_at, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM checkins c
		JOIN sessions s ON c.session_id = s.id
		WHERE s.creator_id = $1
		GROUP BY day
		ORDER BY day DESC
		LIMIT $2
	`, creatorID, days)
	if err != nil {
		return nil, fmt.Errorf("daily trend: %w", err)
	}
	defer rows.Close()
	var res []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
