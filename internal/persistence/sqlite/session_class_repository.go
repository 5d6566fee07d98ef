package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/college-scheduler/internal/persistence"
)

// CreateSessionClass inserts a concrete dated occurrence. Both slot
// uniqueness constraints are enforced here; a collision returns
// ErrDuplicate and leaves the existing row untouched.
func (s *Storage) CreateSessionClass(ctx context.Context, class persistence.SessionClass) error {
	if class.ID == "" || class.WeeklySessionID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now

	query := `
		INSERT INTO session_classes (id, weekly_session_id, template_id, subject_id, subject_name, batch_id, section_id, college_id,
			date_string, weekday_name, day, month, year, start_time, end_time, room, kind, status,
			is_extra_class, is_marking_open, is_marking_done, cancel_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		class.ID,
		class.WeeklySessionID,
		nullableString(class.TemplateID),
		class.SubjectID,
		class.SubjectName,
		class.BatchID,
		class.SectionID,
		class.CollegeID,
		class.DateString,
		class.WeekdayName,
		class.Day,
		class.Month,
		class.Year,
		class.StartTime,
		class.EndTime,
		class.Room,
		class.Kind,
		class.Status,
		boolToInt(class.IsExtraClass),
		boolToInt(class.IsMarkingOpen),
		boolToInt(class.IsMarkingDone),
		nullableString(class.CancelReason),
		class.CreatedAt.Format(time.RFC3339),
		class.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// GetSessionClass retrieves a class occurrence by ID.
func (s *Storage) GetSessionClass(ctx context.Context, id string) (persistence.SessionClass, error) {
	if id == "" {
		return persistence.SessionClass{}, persistence.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, sessionClassSelect+" WHERE id = ?", id)
	return scanSessionClass(row)
}

// UpdateSessionClass rewrites the mutable attributes of an existing row.
// Identity and lineage columns (ids, template, slot) are not changed here;
// slot moves are modelled as a new row by the change manager.
func (s *Storage) UpdateSessionClass(ctx context.Context, class persistence.SessionClass) error {
	if class.ID == "" {
		return persistence.ErrConstraintViolation
	}

	class.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE session_classes
		SET status = ?, room = ?, kind = ?, is_extra_class = ?, is_marking_open = ?, is_marking_done = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		class.Status,
		class.Room,
		class.Kind,
		boolToInt(class.IsExtraClass),
		boolToInt(class.IsMarkingOpen),
		boolToInt(class.IsMarkingDone),
		nullableString(class.CancelReason),
		class.UpdatedAt.Format(time.RFC3339),
		class.ID,
	)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteSessionClass removes a class occurrence by ID.
func (s *Storage) DeleteSessionClass(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM session_classes WHERE id = ?", id)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListSessionClasses lists occurrences matching the filter, ordered by date
// then start time.
func (s *Storage) ListSessionClasses(ctx context.Context, filter persistence.SessionClassFilter) ([]persistence.SessionClass, error) {
	query, args := buildSessionClassQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var classes []persistence.SessionClass
	for rows.Next() {
		class, err := scanSessionClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return classes, nil
}

// FindSessionClassBySlot retrieves the occurrence holding one concrete slot.
func (s *Storage) FindSessionClassBySlot(ctx context.Context, batchID, sectionID, dateString, startTime string) (persistence.SessionClass, error) {
	row := s.db.QueryRowContext(ctx,
		sessionClassSelect+" WHERE batch_id = ? AND section_id = ? AND date_string = ? AND start_time = ?",
		batchID, sectionID, dateString, startTime)
	return scanSessionClass(row)
}

const sessionClassSelect = `
	SELECT id, weekly_session_id, template_id, subject_id, subject_name, batch_id, section_id, college_id,
		date_string, weekday_name, day, month, year, start_time, end_time, room, kind, status,
		is_extra_class, is_marking_open, is_marking_done, cancel_reason, created_at, updated_at
	FROM session_classes`

func buildSessionClassQuery(filter persistence.SessionClassFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.WeeklySessionID != "" {
		conditions = append(conditions, "weekly_session_id = ?")
		args = append(args, filter.WeeklySessionID)
	}
	if filter.TemplateID != "" {
		conditions = append(conditions, "template_id = ?")
		args = append(args, filter.TemplateID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, "section_id = ?")
		args = append(args, filter.SectionID)
	}
	if filter.DateString != "" {
		conditions = append(conditions, "date_string = ?")
		args = append(args, filter.DateString)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := sessionClassSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date_string ASC, start_time ASC, id ASC"
	return query, args
}

func scanSessionClass(row rowScanner) (persistence.SessionClass, error) {
	var class persistence.SessionClass
	var templateID, cancelReason sql.NullString
	var isExtra, markingOpen, markingDone int
	var createdAt, updatedAt string

	err := row.Scan(
		&class.ID,
		&class.WeeklySessionID,
		&templateID,
		&class.SubjectID,
		&class.SubjectName,
		&class.BatchID,
		&class.SectionID,
		&class.CollegeID,
		&class.DateString,
		&class.WeekdayName,
		&class.Day,
		&class.Month,
		&class.Year,
		&class.StartTime,
		&class.EndTime,
		&class.Room,
		&class.Kind,
		&class.Status,
		&isExtra,
		&markingOpen,
		&markingDone,
		&cancelReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.SessionClass{}, persistence.ErrNotFound
		}
		return persistence.SessionClass{}, mapError(err)
	}

	if templateID.Valid {
		class.TemplateID = &templateID.String
	}
	if cancelReason.Valid {
		class.CancelReason = &cancelReason.String
	}
	class.IsExtraClass = isExtra != 0
	class.IsMarkingOpen = markingOpen != 0
	class.IsMarkingDone = markingDone != 0

	if class.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.SessionClass{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if class.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.SessionClass{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return class, nil
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
