package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/college-scheduler/internal/persistence"
)

// CreateWeeklySession inserts a new weekly container. A concurrent insert
// for the same (batch, section, year, week) fails with ErrDuplicate.
func (s *Storage) CreateWeeklySession(ctx context.Context, session persistence.WeeklySession) error {
	if session.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO weekly_sessions (id, batch_id, section_id, college_id, week_start, week_end, iso_year, iso_week, active, generated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.BatchID,
		session.SectionID,
		session.CollegeID,
		session.WeekStart.Format(time.RFC3339Nano),
		session.WeekEnd.Format(time.RFC3339Nano),
		session.ISOYear,
		session.ISOWeek,
		boolToInt(session.Active),
		session.GeneratedAt.Format(time.RFC3339),
		session.CreatedAt.Format(time.RFC3339),
		session.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// GetWeeklySession retrieves a weekly container by ID.
func (s *Storage) GetWeeklySession(ctx context.Context, id string) (persistence.WeeklySession, error) {
	if id == "" {
		return persistence.WeeklySession{}, persistence.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, weeklySessionSelect+" WHERE id = ?", id)
	return scanWeeklySession(row)
}

// FindWeeklySession retrieves the container for a batch/section in one ISO week.
func (s *Storage) FindWeeklySession(ctx context.Context, batchID, sectionID string, isoYear, isoWeek int) (persistence.WeeklySession, error) {
	row := s.db.QueryRowContext(ctx,
		weeklySessionSelect+" WHERE batch_id = ? AND section_id = ? AND iso_year = ? AND iso_week = ?",
		batchID, sectionID, isoYear, isoWeek)
	return scanWeeklySession(row)
}

// ListWeeklySessionsForWeek returns every active container for one ISO week.
func (s *Storage) ListWeeklySessionsForWeek(ctx context.Context, isoYear, isoWeek int) ([]persistence.WeeklySession, error) {
	rows, err := s.db.QueryContext(ctx,
		weeklySessionSelect+" WHERE iso_year = ? AND iso_week = ? AND active = 1 ORDER BY batch_id ASC, section_id ASC",
		isoYear, isoWeek)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var sessions []persistence.WeeklySession
	for rows.Next() {
		session, err := scanWeeklySession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return sessions, nil
}

const weeklySessionSelect = `
	SELECT id, batch_id, section_id, college_id, week_start, week_end, iso_year, iso_week, active, generated_at, created_at, updated_at
	FROM weekly_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWeeklySession(row rowScanner) (persistence.WeeklySession, error) {
	var session persistence.WeeklySession
	var weekStart, weekEnd, generatedAt, createdAt, updatedAt string
	var active int

	err := row.Scan(
		&session.ID,
		&session.BatchID,
		&session.SectionID,
		&session.CollegeID,
		&weekStart,
		&weekEnd,
		&session.ISOYear,
		&session.ISOWeek,
		&active,
		&generatedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.WeeklySession{}, persistence.ErrNotFound
		}
		return persistence.WeeklySession{}, mapError(err)
	}

	session.Active = active != 0
	if session.WeekStart, err = time.Parse(time.RFC3339Nano, weekStart); err != nil {
		return persistence.WeeklySession{}, fmt.Errorf("failed to parse week_start: %w", err)
	}
	if session.WeekEnd, err = time.Parse(time.RFC3339Nano, weekEnd); err != nil {
		return persistence.WeeklySession{}, fmt.Errorf("failed to parse week_end: %w", err)
	}
	if session.GeneratedAt, err = time.Parse(time.RFC3339, generatedAt); err != nil {
		return persistence.WeeklySession{}, fmt.Errorf("failed to parse generated_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.WeeklySession{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.WeeklySession{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return session, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
