package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/college-scheduler/internal/civil"
)

// ReminderKey builds the deterministic trigger key for one (offset, class)
// pair. The same key is derived at schedule and cancel time, so a second
// schedule overwrites and a cancel always addresses the right trigger.
func ReminderKey(offsetMinutes int, classID string) string {
	return fmt.Sprintf("reminder:%d:%s", offsetMinutes, classID)
}

// ReminderPayload travels with a delayed trigger and is all the fire handler
// needs to re-load state.
type ReminderPayload struct {
	ClassID       string
	OffsetMinutes int
}

// ReminderScheduler places, removes and fires the delayed class reminders
// tied to a session class's lifecycle.
type ReminderScheduler struct {
	queue      DelayedScheduler
	classes    SessionClassStore
	weeks      WeeklySessionStore
	recipients RecipientDirectory
	bus        NotificationBus
	cal        *civil.Calendar
	offsets    []int
	now        func() time.Time
	logger     *slog.Logger
}

// DefaultReminderOffsets are the lead times, in minutes, used when none are
// configured.
var DefaultReminderOffsets = []int{10, 15, 30}

// NewReminderScheduler wires dependencies for reminder handling. offsets is
// the fixed set of lead-time minutes; nil selects DefaultReminderOffsets.
func NewReminderScheduler(queue DelayedScheduler, classes SessionClassStore, weeks WeeklySessionStore, recipients RecipientDirectory, bus NotificationBus, cal *civil.Calendar, offsets []int, now func() time.Time, logger *slog.Logger) *ReminderScheduler {
	if cal == nil {
		cal = civil.NewCalendar(nil)
	}
	if len(offsets) == 0 {
		offsets = DefaultReminderOffsets
	}
	if now == nil {
		now = time.Now
	}
	return &ReminderScheduler{
		queue:      queue,
		classes:    classes,
		weeks:      weeks,
		recipients: recipients,
		bus:        bus,
		cal:        cal,
		offsets:    offsets,
		now:        now,
		logger:     defaultLogger(logger),
	}
}

// Offsets returns the configured lead times in minutes.
func (r *ReminderScheduler) Offsets() []int {
	out := make([]int, len(r.offsets))
	copy(out, r.offsets)
	return out
}

// ScheduleReminders places one delayed trigger per configured offset whose
// fire time is still in the future. Re-scheduling the same class overwrites
// the existing triggers rather than duplicating them.
func (r *ReminderScheduler) ScheduleReminders(ctx context.Context, class SessionClass) {
	if r == nil || r.queue == nil {
		return
	}
	logger := serviceLogger(ctx, r.logger, "reminder_scheduler", "schedule", "class_id", class.ID)

	start, err := r.cal.Absolute(class.Day, class.Month, class.Year, class.StartTime)
	if err != nil {
		logger.Warn("cannot derive reminder fire times", "error", err)
		return
	}

	now := r.now()
	for _, offset := range r.offsets {
		fireAt := start.Add(-time.Duration(offset) * time.Minute)
		if !fireAt.After(now) {
			continue
		}
		r.queue.Schedule(ReminderKey(offset, class.ID), fireAt, ReminderPayload{
			ClassID:       class.ID,
			OffsetMinutes: offset,
		})
	}
}

// CancelReminders removes every offset's trigger for a class. Removing
// triggers that never existed or already fired is a no-op.
func (r *ReminderScheduler) CancelReminders(ctx context.Context, classID string) {
	if r == nil || r.queue == nil {
		return
	}
	for _, offset := range r.offsets {
		r.queue.Cancel(ReminderKey(offset, classID))
	}
}

// HandleTrigger is the delayed-queue handler for reminder fires. It
// re-validates the class before dispatching so a cancellation racing the
// fire resolves toward not notifying.
func (r *ReminderScheduler) HandleTrigger(ctx context.Context, key string, payload any) error {
	reminder, ok := payload.(ReminderPayload)
	if !ok {
		return fmt.Errorf("unexpected reminder payload %T for key %s", payload, key)
	}
	logger := serviceLogger(ctx, r.logger, "reminder_scheduler", "fire",
		"class_id", reminder.ClassID, "offset_minutes", reminder.OffsetMinutes)

	class, err := r.classes.GetSessionClass(ctx, reminder.ClassID)
	if err != nil {
		if isNotFound(err) {
			// Deleted after the trigger was placed; nothing to announce.
			return nil
		}
		return err
	}
	if class.Status != StatusScheduled {
		logger.Info("skipping reminder for non-scheduled class", "status", string(class.Status))
		return nil
	}

	recipients, err := r.recipients.FindOptedInUsers(ctx, class.BatchID, class.SectionID, reminder.OffsetMinutes)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient.PushToken != "" {
			tokens = append(tokens, recipient.PushToken)
		}
	}

	event := NotificationEvent{
		Type:        EventClassReminder,
		BatchID:     class.BatchID,
		SectionID:   class.SectionID,
		CollegeID:   class.CollegeID,
		ClassID:     class.ID,
		SubjectName: class.SubjectName,
		Title:       "Upcoming class",
		Body:        fmt.Sprintf("%s starts in %d minutes (%s-%s)", class.SubjectName, reminder.OffsetMinutes, class.StartTime, class.EndTime),
		DateString:  class.DateString,
		StartTime:   class.StartTime,
		EndTime:     class.EndTime,
		Tokens:      tokens,
		DeepLink:    classDeepLink(class),
	}
	if err := r.bus.Publish(ctx, event); err != nil {
		return err
	}

	logger.Info("reminder dispatched", "recipients", len(recipients))
	return nil
}

// DailyBriefing publishes one summary event per active weekly session that
// has classes scheduled on the given civil date.
func (r *ReminderScheduler) DailyBriefing(ctx context.Context, date time.Time) error {
	if r == nil {
		return fmt.Errorf("ReminderScheduler is nil")
	}
	logger := serviceLogger(ctx, r.logger, "reminder_scheduler", "daily_briefing")

	isoYear, isoWeek := r.cal.ISOWeek(date)
	dateString := r.cal.DateString(date)

	weeks, err := r.weeks.ListWeeklySessionsForWeek(ctx, isoYear, isoWeek)
	if err != nil {
		return mapStoreError(err)
	}

	briefed := 0
	for _, week := range weeks {
		classes, err := r.classes.ListSessionClasses(ctx, SessionClassFilter{
			WeeklySessionID: week.ID,
			DateString:      dateString,
			Status:          StatusScheduled,
		})
		if err != nil {
			return mapStoreError(err)
		}
		if len(classes) == 0 {
			continue
		}

		slots := make([]string, 0, len(classes))
		for _, class := range classes {
			slots = append(slots, fmt.Sprintf("%s %s-%s", class.SubjectName, class.StartTime, class.EndTime))
		}

		event := NotificationEvent{
			Type:       EventDailyBriefing,
			BatchID:    week.BatchID,
			SectionID:  week.SectionID,
			CollegeID:  week.CollegeID,
			Title:      fmt.Sprintf("%d classes today", len(classes)),
			Body:       strings.Join(slots, ", "),
			DateString: dateString,
		}
		if err := r.bus.Publish(ctx, event); err != nil {
			logger.Warn("daily briefing publish failed",
				"batch_id", week.BatchID, "section_id", week.SectionID, "error", err)
			continue
		}
		briefed++
	}

	logger.Info("daily briefing complete", "date", dateString, "sessions_briefed", briefed)
	return nil
}

func classDeepLink(class SessionClass) string {
	return fmt.Sprintf("app://sessions/%s/classes/%s", class.WeeklySessionID, class.ID)
}
