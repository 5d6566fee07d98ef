package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/college-scheduler/internal/civil"
	"github.com/example/college-scheduler/internal/timetable"
)

// WeekEnsurer lazily creates the weekly container for a target date. The
// materializer satisfies this, giving the change manager cross-week
// generation without owning the expansion logic.
type WeekEnsurer interface {
	EnsureWeeklySession(ctx context.Context, batchID, sectionID, collegeID string, date time.Time) (WeeklySession, error)
}

// ReminderManager is the slice of the reminder scheduler used by change
// operations.
type ReminderManager interface {
	ScheduleReminders(ctx context.Context, class SessionClass)
	CancelReminders(ctx context.Context, classID string)
}

// ChangeManager applies ad-hoc edits (cancel, reschedule, add-extra,
// delete) to materialized session classes, enforcing the state machine:
// scheduled rows may move to cancelled, rescheduled or completed; cancelled
// and rescheduled rows are terminal.
type ChangeManager struct {
	weeks       WeeklySessionStore
	classes     SessionClassStore
	attendance  AttendanceChecker
	subjects    SubjectResolver
	ensurer     WeekEnsurer
	reminders   ReminderManager
	bus         NotificationBus
	cache       DashboardCache
	cal         *civil.Calendar
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewChangeManager wires dependencies for session class mutations.
func NewChangeManager(weeks WeeklySessionStore, classes SessionClassStore, attendance AttendanceChecker, subjects SubjectResolver, ensurer WeekEnsurer, reminders ReminderManager, bus NotificationBus, cache DashboardCache, cal *civil.Calendar, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ChangeManager {
	if cal == nil {
		cal = civil.NewCalendar(nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ChangeManager{
		weeks:       weeks,
		classes:     classes,
		attendance:  attendance,
		subjects:    subjects,
		ensurer:     ensurer,
		reminders:   reminders,
		bus:         bus,
		cache:       cache,
		cal:         cal,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CancelClass moves a scheduled, not-yet-started class to cancelled,
// recording the reason. Classes that already started cannot be cancelled.
func (c *ChangeManager) CancelClass(ctx context.Context, classID, reason string) (SessionClass, error) {
	if c == nil {
		return SessionClass{}, fmt.Errorf("ChangeManager is nil")
	}
	logger := serviceLogger(ctx, c.logger, "change_manager", "cancel_class", "class_id", classID)

	class, err := c.classes.GetSessionClass(ctx, classID)
	if err != nil {
		return SessionClass{}, mapStoreError(err)
	}

	if err := c.requireUpcomingScheduled(class); err != nil {
		return SessionClass{}, err
	}

	class.Status = StatusCancelled
	class.CancelReason = &reason
	if err := c.classes.UpdateSessionClass(ctx, class); err != nil {
		return SessionClass{}, mapStoreError(err)
	}

	c.reminders.CancelReminders(ctx, class.ID)
	c.publish(ctx, logger, NotificationEvent{
		Type:        EventClassCancelled,
		BatchID:     class.BatchID,
		SectionID:   class.SectionID,
		CollegeID:   class.CollegeID,
		ClassID:     class.ID,
		SubjectName: class.SubjectName,
		Title:       "Class cancelled",
		Body:        fmt.Sprintf("The %s class on %s (%s-%s) is cancelled: %s", class.SubjectName, class.DateString, class.StartTime, class.EndTime, reason),
		DateString:  class.DateString,
		StartTime:   class.StartTime,
		EndTime:     class.EndTime,
		DeepLink:    classDeepLink(class),
	})
	c.invalidate(ctx, logger, class.BatchID, class.SectionID)

	logger.Info("class cancelled")
	return class, nil
}

// RescheduleClass moves a scheduled class to a new slot. The original row is
// retained in rescheduled state as an audit trail and a new scheduled row is
// created at the target slot, lazily materializing the target week's
// container when the move crosses weeks.
func (c *ChangeManager) RescheduleClass(ctx context.Context, params RescheduleClassParams) (SessionClass, error) {
	if c == nil {
		return SessionClass{}, fmt.Errorf("ChangeManager is nil")
	}
	logger := serviceLogger(ctx, c.logger, "change_manager", "reschedule_class", "class_id", params.ClassID)

	if vErr := validateSlot(params.NewStart, params.NewEnd); vErr != nil {
		return SessionClass{}, vErr
	}

	class, err := c.classes.GetSessionClass(ctx, params.ClassID)
	if err != nil {
		return SessionClass{}, mapStoreError(err)
	}

	if err := c.requireUpcomingScheduled(class); err != nil {
		return SessionClass{}, err
	}

	week, err := c.ensurer.EnsureWeeklySession(ctx, class.BatchID, class.SectionID, class.CollegeID, params.NewDate)
	if err != nil {
		return SessionClass{}, mapStoreError(err)
	}

	day, month, year := c.cal.Components(params.NewDate)
	room := params.NewRoom
	if room == "" {
		room = class.Room
	}

	replacement := SessionClass{
		ID:              c.idGenerator(),
		WeeklySessionID: week.ID,
		TemplateID:      class.TemplateID,
		SubjectID:       class.SubjectID,
		SubjectName:     class.SubjectName,
		BatchID:         class.BatchID,
		SectionID:       class.SectionID,
		CollegeID:       class.CollegeID,
		DateString:      c.cal.DateString(params.NewDate),
		WeekdayName:     c.cal.WeekdayName(params.NewDate),
		Day:             day,
		Month:           month,
		Year:            year,
		StartTime:       params.NewStart,
		EndTime:         params.NewEnd,
		Room:            room,
		Kind:            class.Kind,
		Status:          StatusScheduled,
		IsExtraClass:    true,
	}

	if err := c.classes.CreateSessionClass(ctx, replacement); err != nil {
		return SessionClass{}, mapStoreError(err)
	}

	reason := fmt.Sprintf("rescheduled to %s %s-%s", replacement.DateString, replacement.StartTime, replacement.EndTime)
	class.Status = StatusRescheduled
	class.CancelReason = &reason
	if err := c.classes.UpdateSessionClass(ctx, class); err != nil {
		// Back out the replacement so the slot does not hold two scheduled
		// rows for the same class.
		if delErr := c.classes.DeleteSessionClass(ctx, replacement.ID); delErr != nil {
			logger.Warn("could not remove replacement after failed reschedule", "replacement_id", replacement.ID, "error", delErr)
		}
		return SessionClass{}, mapStoreError(err)
	}

	c.reminders.CancelReminders(ctx, class.ID)
	c.reminders.ScheduleReminders(ctx, replacement)

	oldStart, _ := c.cal.Absolute(class.Day, class.Month, class.Year, class.StartTime)
	newStart, _ := c.cal.Absolute(day, month, year, params.NewStart)
	kind := timetable.Classify(oldStart, newStart)

	c.publish(ctx, logger, NotificationEvent{
		Type:        EventClassRescheduled,
		BatchID:     class.BatchID,
		SectionID:   class.SectionID,
		CollegeID:   class.CollegeID,
		ClassID:     replacement.ID,
		SubjectName: class.SubjectName,
		Title:       rescheduleTitle(kind),
		Body:        fmt.Sprintf("%s moved from %s %s to %s %s", class.SubjectName, class.DateString, class.StartTime, replacement.DateString, replacement.StartTime),
		DateString:  replacement.DateString,
		StartTime:   replacement.StartTime,
		EndTime:     replacement.EndTime,
		DeepLink:    classDeepLink(replacement),
	})
	c.invalidate(ctx, logger, class.BatchID, class.SectionID)

	logger.Info("class rescheduled", "replacement_id", replacement.ID, "change", string(kind))
	return replacement, nil
}

// AddExtraClass inserts an ad-hoc class with no template lineage, creating
// the target week's container if needed. A batch/section without any
// timetable still gets a standalone container synthesized from the week
// bounds.
func (c *ChangeManager) AddExtraClass(ctx context.Context, params AddExtraClassParams) (SessionClass, error) {
	if c == nil {
		return SessionClass{}, fmt.Errorf("ChangeManager is nil")
	}
	logger := serviceLogger(ctx, c.logger, "change_manager", "add_extra_class",
		"batch_id", params.BatchID, "section_id", params.SectionID)

	if vErr := validateExtraClass(params); vErr != nil {
		return SessionClass{}, vErr
	}

	subjectID, err := c.subjects.FindSubject(ctx, params.SubjectName, params.BatchID, params.SectionID)
	if err != nil {
		return SessionClass{}, mapStoreError(err)
	}

	week, err := c.ensurer.EnsureWeeklySession(ctx, params.BatchID, params.SectionID, params.CollegeID, params.Date)
	if err != nil {
		return SessionClass{}, mapStoreError(err)
	}

	day, month, year := c.cal.Components(params.Date)
	kind := params.Kind
	if kind == "" {
		kind = KindExtra
	}

	class := SessionClass{
		ID:              c.idGenerator(),
		WeeklySessionID: week.ID,
		SubjectID:       subjectID,
		SubjectName:     params.SubjectName,
		BatchID:         params.BatchID,
		SectionID:       params.SectionID,
		CollegeID:       params.CollegeID,
		DateString:      c.cal.DateString(params.Date),
		WeekdayName:     c.cal.WeekdayName(params.Date),
		Day:             day,
		Month:           month,
		Year:            year,
		StartTime:       params.StartTime,
		EndTime:         params.EndTime,
		Room:            params.Room,
		Kind:            kind,
		Status:          StatusScheduled,
		IsExtraClass:    true,
	}

	if err := c.classes.CreateSessionClass(ctx, class); err != nil {
		return SessionClass{}, mapStoreError(err)
	}

	c.reminders.ScheduleReminders(ctx, class)
	c.publish(ctx, logger, NotificationEvent{
		Type:        EventClassAdded,
		BatchID:     class.BatchID,
		SectionID:   class.SectionID,
		CollegeID:   class.CollegeID,
		ClassID:     class.ID,
		SubjectName: params.SubjectName,
		Title:       "Extra class added",
		Body:        fmt.Sprintf("%s on %s (%s-%s)", params.SubjectName, class.DateString, class.StartTime, class.EndTime),
		DateString:  class.DateString,
		StartTime:   class.StartTime,
		EndTime:     class.EndTime,
		DeepLink:    classDeepLink(class),
	})
	c.invalidate(ctx, logger, class.BatchID, class.SectionID)

	logger.Info("extra class added", "class_id", class.ID)
	return class, nil
}

// DeleteSessionClass hard-deletes a future class that no attendance record
// references. Attendance-linked classes must be cancelled instead so the
// audit trail survives.
func (c *ChangeManager) DeleteSessionClass(ctx context.Context, classID string) error {
	if c == nil {
		return fmt.Errorf("ChangeManager is nil")
	}
	logger := serviceLogger(ctx, c.logger, "change_manager", "delete_session_class", "class_id", classID)

	class, err := c.classes.GetSessionClass(ctx, classID)
	if err != nil {
		return mapStoreError(err)
	}

	if c.hasStarted(class) {
		return fmt.Errorf("%w: class already started", ErrInvalidTransition)
	}

	linked, err := c.attendance.HasAttendanceFor(ctx, class.ID)
	if err != nil {
		return err
	}
	if linked {
		return fmt.Errorf("%w: attendance exists for this class, cancel it instead", ErrInvalidTransition)
	}

	if err := c.classes.DeleteSessionClass(ctx, class.ID); err != nil {
		return mapStoreError(err)
	}

	c.reminders.CancelReminders(ctx, class.ID)
	c.publish(ctx, logger, NotificationEvent{
		Type:        EventClassRemoved,
		BatchID:     class.BatchID,
		SectionID:   class.SectionID,
		CollegeID:   class.CollegeID,
		ClassID:     class.ID,
		SubjectName: class.SubjectName,
		Title:       "Class removed",
		Body:        fmt.Sprintf("The %s class on %s (%s-%s) was removed", class.SubjectName, class.DateString, class.StartTime, class.EndTime),
		DateString:  class.DateString,
		StartTime:   class.StartTime,
		EndTime:     class.EndTime,
	})
	c.invalidate(ctx, logger, class.BatchID, class.SectionID)

	logger.Info("class deleted")
	return nil
}

// PropagateTemplateChange removes the future, still-scheduled classes
// derived from an edited or deleted template entry. They are regenerated
// from the updated blueprint on the next materialization pass. Rows with
// attendance marking open are left untouched to protect in-progress data.
func (c *ChangeManager) PropagateTemplateChange(ctx context.Context, templateID string) (int, error) {
	if c == nil {
		return 0, fmt.Errorf("ChangeManager is nil")
	}
	logger := serviceLogger(ctx, c.logger, "change_manager", "propagate_template_change", "template_id", templateID)

	classes, err := c.classes.ListSessionClasses(ctx, SessionClassFilter{TemplateID: templateID})
	if err != nil {
		return 0, mapStoreError(err)
	}

	type roster struct{ batchID, sectionID string }
	touched := make(map[roster]struct{})

	deleted := 0
	for _, class := range classes {
		if class.Status != StatusScheduled || class.IsMarkingOpen || c.hasStarted(class) {
			continue
		}
		if err := c.classes.DeleteSessionClass(ctx, class.ID); err != nil {
			if isNotFound(err) {
				continue
			}
			return deleted, mapStoreError(err)
		}
		c.reminders.CancelReminders(ctx, class.ID)
		touched[roster{class.BatchID, class.SectionID}] = struct{}{}
		deleted++
	}

	for r := range touched {
		c.invalidate(ctx, logger, r.batchID, r.sectionID)
	}

	logger.Info("template change propagated", "classes_deleted", deleted)
	return deleted, nil
}

// requireUpcomingScheduled enforces the shared transition guard: the row
// must still be scheduled and its reconstructed start must be in the future.
func (c *ChangeManager) requireUpcomingScheduled(class SessionClass) error {
	if class.Status != StatusScheduled {
		return fmt.Errorf("%w: class is %s", ErrInvalidTransition, class.Status)
	}
	if c.hasStarted(class) {
		return fmt.Errorf("%w: class already started", ErrInvalidTransition)
	}
	return nil
}

// hasStarted reconstructs the absolute start instant from the stored numeric
// components and the fixed civil offset. This is the only comparison path;
// textual comparisons against local time drift across hosts.
func (c *ChangeManager) hasStarted(class SessionClass) bool {
	start, err := c.cal.Absolute(class.Day, class.Month, class.Year, class.StartTime)
	if err != nil {
		// A row with an unparseable slot cannot be placed in time; treat it
		// as started so it is never mutated into a future class.
		return true
	}
	return !start.After(c.now())
}

// publish emits a fan-out event best-effort. Delivery problems are logged
// and swallowed; the mutation already committed.
func (c *ChangeManager) publish(ctx context.Context, logger *slog.Logger, event NotificationEvent) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, event); err != nil {
		logger.Warn("notification publish failed", "event_type", string(event.Type), "error", err)
	}
}

// invalidate drops the batch/section's cached dashboard views best-effort
// after a committed mutation.
func (c *ChangeManager) invalidate(ctx context.Context, logger *slog.Logger, batchID, sectionID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateRoster(ctx, batchID, sectionID); err != nil {
		logger.Warn("cache invalidation failed", "batch_id", batchID, "section_id", sectionID, "error", err)
	}
}

func validateSlot(start, end string) error {
	vErr := &ValidationError{}
	startHour, startMinute, err := civil.ParseClock(start)
	if err != nil {
		vErr.add("start_time", "must be of the form HH:MM")
	}
	endHour, endMinute, err := civil.ParseClock(end)
	if err != nil {
		vErr.add("end_time", "must be of the form HH:MM")
	}
	if !vErr.HasErrors() && endHour*60+endMinute <= startHour*60+startMinute {
		vErr.add("time", "end must be after start")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func validateExtraClass(params AddExtraClassParams) error {
	vErr := &ValidationError{}
	if params.BatchID == "" {
		vErr.add("batch_id", "batch is required")
	}
	if params.SectionID == "" {
		vErr.add("section_id", "section is required")
	}
	if params.SubjectName == "" {
		vErr.add("subject", "subject is required")
	}
	if params.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return validateSlot(params.StartTime, params.EndTime)
}

func rescheduleTitle(kind timetable.ChangeKind) string {
	switch kind {
	case timetable.ChangePostponed:
		return "Class postponed"
	case timetable.ChangePreponed:
		return "Class preponed"
	default:
		return "Class rescheduled"
	}
}
