package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/college-scheduler/internal/civil"
	"github.com/example/college-scheduler/internal/timetable"
)

// ReminderPlanner is the slice of the reminder scheduler the materializer
// needs after creating a class.
type ReminderPlanner interface {
	ScheduleReminders(ctx context.Context, class SessionClass)
}

// Materializer expands recurring timetable templates into dated session
// classes for a target week. Generation is idempotent: slots that already
// exist are skipped, and duplicate-insert conflicts from concurrent runs are
// treated as "already materialized", never as failures.
type Materializer struct {
	weeks       WeeklySessionStore
	classes     SessionClassStore
	templates   TemplateStore
	subjects    SubjectResolver
	reminders   ReminderPlanner
	cal         *civil.Calendar
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewMaterializer wires dependencies for week materialization.
func NewMaterializer(weeks WeeklySessionStore, classes SessionClassStore, templates TemplateStore, subjects SubjectResolver, reminders ReminderPlanner, cal *civil.Calendar, idGenerator func() string, now func() time.Time, logger *slog.Logger) *Materializer {
	if cal == nil {
		cal = civil.NewCalendar(nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &Materializer{
		weeks:       weeks,
		classes:     classes,
		templates:   templates,
		subjects:    subjects,
		reminders:   reminders,
		cal:         cal,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// GenerateForWeek materializes every active timetable into the civil week
// containing the reference instant. A failure in one timetable is collected
// and the remaining timetables still run; only an unreachable template
// store fails the whole operation.
func (m *Materializer) GenerateForWeek(ctx context.Context, reference time.Time) (GenerateResult, error) {
	if m == nil {
		return GenerateResult{}, fmt.Errorf("Materializer is nil")
	}

	monday, sunday := m.cal.WeekBounds(reference)
	isoYear, isoWeek := m.cal.ISOWeek(monday)
	logger := serviceLogger(ctx, m.logger, "materializer", "generate_for_week", "iso_year", isoYear, "iso_week", isoWeek)

	result := GenerateResult{ISOYear: isoYear, ISOWeek: isoWeek}

	timetables, err := m.templates.ListActiveTimetables(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: template store: %v", ErrDependencyUnavailable, err)
	}

	for _, tt := range timetables {
		created, err := m.materializeTimetable(ctx, logger, tt, monday, sunday, isoYear, isoWeek)
		if err != nil {
			logger.Error("timetable materialization failed",
				"batch_id", tt.BatchID, "section_id", tt.SectionID, "error", err)
			result.Problems = append(result.Problems, fmt.Errorf("timetable %s/%s: %w", tt.BatchID, tt.SectionID, err))
			continue
		}
		result.SessionsTouched++
		result.ClassesCreated += created
	}

	logger.Info("week materialized",
		"timetables", len(timetables),
		"sessions_touched", result.SessionsTouched,
		"classes_created", result.ClassesCreated,
		"problems", len(result.Problems))

	return result, nil
}

func (m *Materializer) materializeTimetable(ctx context.Context, logger *slog.Logger, tt Timetable, monday, sunday time.Time, isoYear, isoWeek int) (int, error) {
	if tt.BatchID == "" || tt.SectionID == "" {
		return 0, fmt.Errorf("%w: timetable missing batch or section reference", ErrNotFound)
	}

	week, err := m.ensureWeek(ctx, tt.BatchID, tt.SectionID, tt.CollegeID, monday, sunday, isoYear, isoWeek)
	if err != nil {
		return 0, err
	}

	planned, problems := timetable.PlanWeek(tt.Entries, monday, m.cal)
	for _, problem := range problems {
		logger.Warn("skipping invalid template entry",
			"batch_id", tt.BatchID, "section_id", tt.SectionID, "error", problem)
	}

	created := 0
	for _, plan := range planned {
		ok, err := m.materializeEntry(ctx, logger, week, plan)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// materializeEntry creates one dated class from a planned template slot.
// Returns false without error when the slot is already materialized.
func (m *Materializer) materializeEntry(ctx context.Context, logger *slog.Logger, week WeeklySession, plan timetable.PlannedClass) (bool, error) {
	_, err := m.classes.FindSessionClassBySlot(ctx, week.BatchID, week.SectionID, plan.DateString, plan.Entry.StartTime)
	if err == nil {
		return false, nil
	}
	if !isNotFound(err) {
		return false, err
	}

	subjectID, err := m.subjects.FindSubject(ctx, plan.Entry.SubjectName, week.BatchID, week.SectionID)
	if err != nil {
		if isNotFound(err) {
			// Data-integrity gap in the blueprint, not a generation failure.
			logger.Warn("subject not found for template entry",
				"subject", plan.Entry.SubjectName,
				"batch_id", week.BatchID, "section_id", week.SectionID,
				"template_id", plan.Entry.ID)
			return false, nil
		}
		return false, err
	}

	templateID := plan.Entry.ID
	class := SessionClass{
		ID:              m.idGenerator(),
		WeeklySessionID: week.ID,
		TemplateID:      &templateID,
		SubjectID:       subjectID,
		SubjectName:     plan.Entry.SubjectName,
		BatchID:         week.BatchID,
		SectionID:       week.SectionID,
		CollegeID:       week.CollegeID,
		DateString:      plan.DateString,
		WeekdayName:     plan.WeekdayName,
		Day:             plan.Day,
		Month:           plan.Month,
		Year:            plan.Year,
		StartTime:       plan.Entry.StartTime,
		EndTime:         plan.Entry.EndTime,
		Room:            plan.Entry.Room,
		Kind:            ClassKind(plan.Entry.Kind),
		Status:          StatusScheduled,
	}

	if err := m.classes.CreateSessionClass(ctx, class); err != nil {
		if isConflict(err) {
			// Another caller materialized the slot between the existence
			// check and the insert. The slot exists, which is the goal.
			return false, nil
		}
		return false, err
	}

	if m.reminders != nil {
		m.reminders.ScheduleReminders(ctx, class)
	}
	return true, nil
}

// EnsureWeeklySession returns the weekly container for a batch/section in
// the civil week containing date, creating it from the week bounds when it
// does not exist yet. Used by the change manager for lazy cross-week
// generation.
func (m *Materializer) EnsureWeeklySession(ctx context.Context, batchID, sectionID, collegeID string, date time.Time) (WeeklySession, error) {
	if m == nil {
		return WeeklySession{}, fmt.Errorf("Materializer is nil")
	}
	monday, sunday := m.cal.WeekBounds(date)
	isoYear, isoWeek := m.cal.ISOWeek(monday)
	return m.ensureWeek(ctx, batchID, sectionID, collegeID, monday, sunday, isoYear, isoWeek)
}

func (m *Materializer) ensureWeek(ctx context.Context, batchID, sectionID, collegeID string, monday, sunday time.Time, isoYear, isoWeek int) (WeeklySession, error) {
	existing, err := m.weeks.FindWeeklySession(ctx, batchID, sectionID, isoYear, isoWeek)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return WeeklySession{}, err
	}

	week := WeeklySession{
		ID:          m.idGenerator(),
		BatchID:     batchID,
		SectionID:   sectionID,
		CollegeID:   collegeID,
		WeekStart:   monday,
		WeekEnd:     sunday,
		ISOYear:     isoYear,
		ISOWeek:     isoWeek,
		Active:      true,
		GeneratedAt: m.now(),
	}

	if err := m.weeks.CreateWeeklySession(ctx, week); err != nil {
		if isConflict(err) {
			// Lost the race; the winner's row is the canonical one.
			return m.fetchWeek(ctx, batchID, sectionID, isoYear, isoWeek)
		}
		return WeeklySession{}, err
	}
	return week, nil
}

func (m *Materializer) fetchWeek(ctx context.Context, batchID, sectionID string, isoYear, isoWeek int) (WeeklySession, error) {
	week, err := m.weeks.FindWeeklySession(ctx, batchID, sectionID, isoYear, isoWeek)
	if err != nil {
		return WeeklySession{}, mapStoreError(err)
	}
	return week, nil
}

// GetSessionForWeek returns the weekly container and classes for a
// batch/section in the civil week containing date. The week is materialized
// lazily on first read when the batch/section has an active timetable.
func (m *Materializer) GetSessionForWeek(ctx context.Context, batchID, sectionID string, date time.Time) (WeekView, error) {
	if m == nil {
		return WeekView{}, fmt.Errorf("Materializer is nil")
	}

	monday, sunday := m.cal.WeekBounds(date)
	isoYear, isoWeek := m.cal.ISOWeek(monday)
	logger := serviceLogger(ctx, m.logger, "materializer", "get_session_for_week",
		"batch_id", batchID, "section_id", sectionID, "iso_year", isoYear, "iso_week", isoWeek)

	week, err := m.weeks.FindWeeklySession(ctx, batchID, sectionID, isoYear, isoWeek)
	if isNotFound(err) {
		week, err = m.lazyMaterialize(ctx, logger, batchID, sectionID, monday, sunday, isoYear, isoWeek)
	}
	if err != nil {
		return WeekView{}, mapStoreError(err)
	}

	classes, err := m.classes.ListSessionClasses(ctx, SessionClassFilter{WeeklySessionID: week.ID})
	if err != nil {
		return WeekView{}, mapStoreError(err)
	}

	return WeekView{Session: week, Classes: classes}, nil
}

// lazyMaterialize generates a single batch/section's week on the read path.
func (m *Materializer) lazyMaterialize(ctx context.Context, logger *slog.Logger, batchID, sectionID string, monday, sunday time.Time, isoYear, isoWeek int) (WeeklySession, error) {
	timetables, err := m.templates.ListActiveTimetables(ctx)
	if err != nil {
		return WeeklySession{}, fmt.Errorf("%w: template store: %v", ErrDependencyUnavailable, err)
	}

	for _, tt := range timetables {
		if tt.BatchID != batchID || tt.SectionID != sectionID {
			continue
		}
		if _, err := m.materializeTimetable(ctx, logger, tt, monday, sunday, isoYear, isoWeek); err != nil {
			return WeeklySession{}, err
		}
		return m.fetchWeek(ctx, batchID, sectionID, isoYear, isoWeek)
	}

	return WeeklySession{}, ErrNotFound
}
