package sqlite

import (
	"context"
	"fmt"
)

// The slot uniqueness constraints below are the concurrency model: a
// duplicate insert racing another materialization run fails with a UNIQUE
// violation instead of producing a second row for the same slot.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS weekly_sessions (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		section_id TEXT NOT NULL,
		college_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		week_end TEXT NOT NULL,
		iso_year INTEGER NOT NULL,
		iso_week INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		generated_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (batch_id, section_id, iso_year, iso_week)
	)`,
	`CREATE TABLE IF NOT EXISTS session_classes (
		id TEXT PRIMARY KEY,
		weekly_session_id TEXT NOT NULL REFERENCES weekly_sessions(id),
		template_id TEXT,
		subject_id TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		batch_id TEXT NOT NULL,
		section_id TEXT NOT NULL,
		college_id TEXT NOT NULL,
		date_string TEXT NOT NULL,
		weekday_name TEXT NOT NULL,
		day INTEGER NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		room TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		is_extra_class INTEGER NOT NULL DEFAULT 0,
		is_marking_open INTEGER NOT NULL DEFAULT 0,
		is_marking_done INTEGER NOT NULL DEFAULT 0,
		cancel_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (batch_id, section_id, date_string, start_time)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_session_classes_template_slot
		ON session_classes (weekly_session_id, template_id, date_string, start_time)
		WHERE template_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_session_classes_weekly_session
		ON session_classes (weekly_session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_session_classes_template
		ON session_classes (template_id)`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_sessions_week
		ON weekly_sessions (iso_year, iso_week)`,
}

// Migrate applies the schema. Statements are idempotent so repeated calls
// are safe.
func (s *Storage) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
