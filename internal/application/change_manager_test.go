package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/college-scheduler/internal/civil"
	"github.com/example/college-scheduler/internal/testfixtures"
)

type busStub struct {
	mu     sync.Mutex
	events []NotificationEvent
	err    error
}

func (b *busStub) Publish(ctx context.Context, event NotificationEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, event)
	return nil
}

func (b *busStub) published() []NotificationEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]NotificationEvent, len(b.events))
	copy(out, b.events)
	return out
}

func (b *busStub) last(t *testing.T) NotificationEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		t.Fatal("no events published")
	}
	return b.events[len(b.events)-1]
}

type cacheStub struct {
	mu            sync.Mutex
	invalidations []string
	err           error
}

func (c *cacheStub) InvalidateRoster(ctx context.Context, batchID, sectionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	c.invalidations = append(c.invalidations, batchID+"/"+sectionID)
	return nil
}

func (c *cacheStub) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidations)
}

type attendanceStub struct {
	linked bool
	err    error
}

func (a *attendanceStub) HasAttendanceFor(ctx context.Context, sessionClassID string) (bool, error) {
	if a.err != nil {
		return false, a.err
	}
	return a.linked, nil
}

type changeFixture struct {
	weeks      *weekStoreStub
	classes    *classStoreStub
	reminders  *reminderRecorderStub
	bus        *busStub
	cache      *cacheStub
	attendance *attendanceStub
	clock      *testfixtures.Clock
	manager    *ChangeManager
}

func newChangeFixture() *changeFixture {
	weeks := &weekStoreStub{}
	classes := newClassStoreStub()
	reminders := &reminderRecorderStub{}
	bus := &busStub{}
	cache := &cacheStub{}
	attendance := &attendanceStub{}
	clock := testfixtures.NewClock(time.Time{})
	ids := testfixtures.NewIDGenerator("chg")
	subjects := standardSubjects()
	cal := civil.NewCalendar(nil)

	ensurer := NewMaterializer(weeks, classes, &templateStoreStub{}, subjects, nil, cal, ids.NextFunc(), clock.NowFunc(), nil)
	manager := NewChangeManager(weeks, classes, attendance, subjects, ensurer, reminders, bus, cache, cal, ids.NextFunc(), clock.NowFunc(), nil)

	return &changeFixture{
		weeks:      weeks,
		classes:    classes,
		reminders:  reminders,
		bus:        bus,
		cache:      cache,
		attendance: attendance,
		clock:      clock,
		manager:    manager,
	}
}

// scheduledClass is a Monday 2025-06-02 10:00 class, two hours ahead of the
// fixture clock.
func scheduledClass(id string) SessionClass {
	templateID := "tpl-1"
	return SessionClass{
		ID:              id,
		WeeklySessionID: "week-1",
		TemplateID:      &templateID,
		SubjectID:       "subject-dsa",
		SubjectName:     "Data Structures",
		BatchID:         "batch-1",
		SectionID:       "section-a",
		CollegeID:       "college-1",
		DateString:      "2025-06-02",
		WeekdayName:     "Monday",
		Day:             2,
		Month:           6,
		Year:            2025,
		StartTime:       "10:00",
		EndTime:         "11:00",
		Room:            "B-204",
		Kind:            KindLecture,
		Status:          StatusScheduled,
	}
}

func TestChangeManager_CancelClass(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))

	cancelled, err := f.manager.CancelClass(context.Background(), "class-1", "faculty unavailable")
	if err != nil {
		t.Fatalf("CancelClass returned error: %v", err)
	}

	if cancelled.Status != StatusCancelled {
		t.Fatalf("status = %q, want cancelled", cancelled.Status)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "faculty unavailable" {
		t.Fatalf("cancel reason = %v, want the supplied reason", cancelled.CancelReason)
	}

	stored, err := f.classes.GetSessionClass(context.Background(), "class-1")
	if err != nil || stored.Status != StatusCancelled {
		t.Fatalf("stored row = %+v (err %v), want cancelled", stored, err)
	}

	if len(f.reminders.cancelled) != 1 || f.reminders.cancelled[0] != "class-1" {
		t.Fatalf("reminder cancellations = %v, want [class-1]", f.reminders.cancelled)
	}
	event := f.bus.last(t)
	if event.Type != EventClassCancelled {
		t.Fatalf("event type = %q, want %q", event.Type, EventClassCancelled)
	}
	if event.SubjectName != "Data Structures" {
		t.Fatalf("event subject = %q, want the class's subject name", event.SubjectName)
	}
	if f.cache.count() != 1 {
		t.Fatalf("cache invalidations = %d, want 1", f.cache.count())
	}
}

func TestChangeManager_CancelClass_RejectsStartedClass(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))

	// One minute past the 10:00 start.
	f.clock.Set(time.Date(2025, time.June, 2, 10, 1, 0, 0, civil.IST()))

	_, err := f.manager.CancelClass(context.Background(), "class-1", "too late")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	stored, _ := f.classes.GetSessionClass(context.Background(), "class-1")
	if stored.Status != StatusScheduled {
		t.Fatalf("status mutated to %q on a rejected cancel", stored.Status)
	}
}

func TestChangeManager_CancelClass_ExactStartIsStarted(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))
	f.clock.Set(time.Date(2025, time.June, 2, 10, 0, 0, 0, civil.IST()))

	if _, err := f.manager.CancelClass(context.Background(), "class-1", "at the bell"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition at exact start, got %v", err)
	}
}

func TestChangeManager_CancelClass_TerminalStatesRejected(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	for _, status := range []ClassStatus{StatusCancelled, StatusRescheduled, StatusCompleted} {
		class := scheduledClass("class-" + string(status))
		class.Status = status
		f.classes.seed(class)

		if _, err := f.manager.CancelClass(context.Background(), class.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("cancel of %s class: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestChangeManager_CancelClass_UnknownClass(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	if _, err := f.manager.CancelClass(context.Background(), "missing", "reason"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChangeManager_RescheduleClass_CrossWeek(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))

	// Tuesday of the following week.
	newDate := time.Date(2025, time.June, 10, 0, 0, 0, 0, civil.IST())
	replacement, err := f.manager.RescheduleClass(context.Background(), RescheduleClassParams{
		ClassID:  "class-1",
		NewDate:  newDate,
		NewStart: "14:00",
		NewEnd:   "15:00",
		NewRoom:  "C-101",
	})
	if err != nil {
		t.Fatalf("RescheduleClass returned error: %v", err)
	}

	if replacement.Status != StatusScheduled || !replacement.IsExtraClass {
		t.Fatalf("replacement = status %q extra %v, want scheduled extra row", replacement.Status, replacement.IsExtraClass)
	}
	if replacement.DateString != "2025-06-10" || replacement.StartTime != "14:00" || replacement.Room != "C-101" {
		t.Fatalf("replacement slot = %s %s in %s, want 2025-06-10 14:00 in C-101", replacement.DateString, replacement.StartTime, replacement.Room)
	}
	if replacement.TemplateID == nil || *replacement.TemplateID != "tpl-1" {
		t.Fatalf("replacement lost template lineage: %v", replacement.TemplateID)
	}
	if replacement.SubjectName != "Data Structures" {
		t.Fatalf("replacement subject name = %q, want it copied from the original", replacement.SubjectName)
	}

	// The target week's container was synthesized on the fly.
	if _, err := f.weeks.FindWeeklySession(context.Background(), "batch-1", "section-a", 2025, 24); err != nil {
		t.Fatalf("target week container missing: %v", err)
	}

	original, _ := f.classes.GetSessionClass(context.Background(), "class-1")
	if original.Status != StatusRescheduled {
		t.Fatalf("original status = %q, want rescheduled", original.Status)
	}
	if original.CancelReason == nil || *original.CancelReason != "rescheduled to 2025-06-10 14:00-15:00" {
		t.Fatalf("original reason = %v, want the target slot", original.CancelReason)
	}

	if len(f.reminders.cancelled) != 1 || f.reminders.cancelled[0] != "class-1" {
		t.Fatalf("reminder cancellations = %v, want [class-1]", f.reminders.cancelled)
	}
	if len(f.reminders.scheduled) != 1 || f.reminders.scheduled[0] != replacement.ID {
		t.Fatalf("reminder schedules = %v, want [%s]", f.reminders.scheduled, replacement.ID)
	}

	event := f.bus.last(t)
	if event.Type != EventClassRescheduled {
		t.Fatalf("event type = %q, want %q", event.Type, EventClassRescheduled)
	}
	if event.Title != "Class postponed" {
		t.Fatalf("event title = %q, want %q", event.Title, "Class postponed")
	}
	if event.SubjectName != "Data Structures" {
		t.Fatalf("event subject = %q, want the class's subject name", event.SubjectName)
	}
}

func TestChangeManager_RescheduleClass_EarlierSlotIsPreponed(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))

	_, err := f.manager.RescheduleClass(context.Background(), RescheduleClassParams{
		ClassID:  "class-1",
		NewDate:  time.Date(2025, time.June, 2, 0, 0, 0, 0, civil.IST()),
		NewStart: "09:00",
		NewEnd:   "09:45",
	})
	if err != nil {
		t.Fatalf("RescheduleClass returned error: %v", err)
	}

	if event := f.bus.last(t); event.Title != "Class preponed" {
		t.Fatalf("event title = %q, want %q", event.Title, "Class preponed")
	}
}

func TestChangeManager_RescheduleClass_ValidatesSlot(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))

	_, err := f.manager.RescheduleClass(context.Background(), RescheduleClassParams{
		ClassID:  "class-1",
		NewDate:  time.Date(2025, time.June, 10, 0, 0, 0, 0, civil.IST()),
		NewStart: "2pm",
		NewEnd:   "15:00",
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["start_time"]; !ok {
		t.Fatalf("field errors = %v, want a start_time entry", vErr.FieldErrors)
	}
}

func TestChangeManager_RescheduleClass_OccupiedSlot(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))

	occupant := scheduledClass("class-2")
	occupant.DateString = "2025-06-03"
	occupant.Day = 3
	occupant.WeekdayName = "Tuesday"
	occupant.StartTime = "14:00"
	occupant.EndTime = "15:00"
	f.classes.seed(occupant)

	_, err := f.manager.RescheduleClass(context.Background(), RescheduleClassParams{
		ClassID:  "class-1",
		NewDate:  time.Date(2025, time.June, 3, 0, 0, 0, 0, civil.IST()),
		NewStart: "14:00",
		NewEnd:   "15:00",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	original, _ := f.classes.GetSessionClass(context.Background(), "class-1")
	if original.Status != StatusScheduled {
		t.Fatalf("original mutated to %q on a failed reschedule", original.Status)
	}
}

func TestChangeManager_RescheduleClass_UpdateFailureRemovesReplacement(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))
	f.classes.updateErr = errors.New("store unavailable")

	_, err := f.manager.RescheduleClass(context.Background(), RescheduleClassParams{
		ClassID:  "class-1",
		NewDate:  time.Date(2025, time.June, 10, 0, 0, 0, 0, civil.IST()),
		NewStart: "14:00",
		NewEnd:   "15:00",
	})
	if err == nil {
		t.Fatal("expected an error when the original row cannot be flipped")
	}

	// The replacement must not survive as a second scheduled row.
	if got := f.classes.count(); got != 1 {
		t.Fatalf("store holds %d classes after the failed reschedule, want 1", got)
	}
	original, getErr := f.classes.GetSessionClass(context.Background(), "class-1")
	if getErr != nil || original.Status != StatusScheduled {
		t.Fatalf("original = %+v (err %v), want still scheduled", original, getErr)
	}
	if len(f.reminders.scheduled) != 0 {
		t.Fatalf("reminder schedules = %v, want none for the backed-out replacement", f.reminders.scheduled)
	}
}

func TestChangeManager_AddExtraClass(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()

	class, err := f.manager.AddExtraClass(context.Background(), AddExtraClassParams{
		BatchID:     "batch-1",
		SectionID:   "section-a",
		CollegeID:   "college-1",
		SubjectName: "Economics",
		Date:        time.Date(2025, time.June, 10, 0, 0, 0, 0, civil.IST()),
		StartTime:   "16:00",
		EndTime:     "17:00",
		Room:        "A-1",
	})
	if err != nil {
		t.Fatalf("AddExtraClass returned error: %v", err)
	}

	if !class.IsExtraClass || class.Status != StatusScheduled {
		t.Fatalf("class = extra %v status %q, want scheduled extra", class.IsExtraClass, class.Status)
	}
	if class.Kind != KindExtra {
		t.Fatalf("kind = %q, want default %q", class.Kind, KindExtra)
	}
	if class.SubjectID != "subject-eco" {
		t.Fatalf("subject id = %q, want subject-eco", class.SubjectID)
	}
	if class.SubjectName != "Economics" {
		t.Fatalf("subject name = %q, want Economics persisted on the row", class.SubjectName)
	}
	if class.TemplateID != nil {
		t.Fatalf("extra class carries template lineage %v", class.TemplateID)
	}
	if class.DateString != "2025-06-10" || class.WeekdayName != "Tuesday" {
		t.Fatalf("date = %s %s, want Tuesday 2025-06-10", class.WeekdayName, class.DateString)
	}

	// A standalone weekly container was synthesized even though the roster
	// has no timetable.
	week, err := f.weeks.FindWeeklySession(context.Background(), "batch-1", "section-a", 2025, 24)
	if err != nil {
		t.Fatalf("weekly container missing: %v", err)
	}
	if class.WeeklySessionID != week.ID {
		t.Fatalf("class attached to %q, want %q", class.WeeklySessionID, week.ID)
	}

	if len(f.reminders.scheduled) != 1 {
		t.Fatalf("reminder schedules = %v, want one entry", f.reminders.scheduled)
	}
	event := f.bus.last(t)
	if event.Type != EventClassAdded || event.SubjectName != "Economics" {
		t.Fatalf("event = %q for %q, want CLASS_ADDED for Economics", event.Type, event.SubjectName)
	}
	if f.cache.count() != 1 {
		t.Fatalf("cache invalidations = %d, want 1", f.cache.count())
	}
}

func TestChangeManager_AddExtraClass_Validation(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()

	_, err := f.manager.AddExtraClass(context.Background(), AddExtraClassParams{})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"batch_id", "section_id", "subject", "date"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("field errors = %v, missing %q", vErr.FieldErrors, field)
		}
	}
}

func TestChangeManager_AddExtraClass_UnknownSubject(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()

	_, err := f.manager.AddExtraClass(context.Background(), AddExtraClassParams{
		BatchID:     "batch-1",
		SectionID:   "section-a",
		SubjectName: "Alchemy",
		Date:        time.Date(2025, time.June, 10, 0, 0, 0, 0, civil.IST()),
		StartTime:   "16:00",
		EndTime:     "17:00",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChangeManager_DeleteSessionClass(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))

	if err := f.manager.DeleteSessionClass(context.Background(), "class-1"); err != nil {
		t.Fatalf("DeleteSessionClass returned error: %v", err)
	}

	if _, err := f.classes.GetSessionClass(context.Background(), "class-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("class still present after delete: %v", err)
	}
	if len(f.reminders.cancelled) != 1 {
		t.Fatalf("reminder cancellations = %v, want one entry", f.reminders.cancelled)
	}
	if event := f.bus.last(t); event.Type != EventClassRemoved {
		t.Fatalf("event type = %q, want %q", event.Type, EventClassRemoved)
	}
}

func TestChangeManager_DeleteSessionClass_AttendanceLinked(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.attendance.linked = true
	f.classes.seed(scheduledClass("class-1"))

	err := f.manager.DeleteSessionClass(context.Background(), "class-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.classes.GetSessionClass(context.Background(), "class-1"); err != nil {
		t.Fatalf("attendance-linked class was deleted: %v", err)
	}
}

func TestChangeManager_DeleteSessionClass_StartedClass(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.classes.seed(scheduledClass("class-1"))
	f.clock.Set(time.Date(2025, time.June, 2, 11, 30, 0, 0, civil.IST()))

	if err := f.manager.DeleteSessionClass(context.Background(), "class-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestChangeManager_PropagateTemplateChange(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()

	future := scheduledClass("class-future")
	f.classes.seed(future)

	markingOpen := scheduledClass("class-marking")
	markingOpen.StartTime = "12:00"
	markingOpen.EndTime = "13:00"
	markingOpen.IsMarkingOpen = true
	f.classes.seed(markingOpen)

	cancelled := scheduledClass("class-cancelled")
	cancelled.StartTime = "15:00"
	cancelled.EndTime = "16:00"
	cancelled.Status = StatusCancelled
	f.classes.seed(cancelled)

	started := scheduledClass("class-started")
	started.StartTime = "07:00"
	started.EndTime = "08:00"
	f.classes.seed(started)

	otherTemplate := scheduledClass("class-other")
	otherTemplateID := "tpl-9"
	otherTemplate.TemplateID = &otherTemplateID
	otherTemplate.StartTime = "17:00"
	otherTemplate.EndTime = "18:00"
	f.classes.seed(otherTemplate)

	deleted, err := f.manager.PropagateTemplateChange(context.Background(), "tpl-1")
	if err != nil {
		t.Fatalf("PropagateTemplateChange returned error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted %d classes, want 1", deleted)
	}

	if _, err := f.classes.GetSessionClass(context.Background(), "class-future"); !errors.Is(err, ErrNotFound) {
		t.Fatal("future scheduled class survived the template change")
	}
	for _, id := range []string{"class-marking", "class-cancelled", "class-started", "class-other"} {
		if _, err := f.classes.GetSessionClass(context.Background(), id); err != nil {
			t.Fatalf("%s was deleted, want kept", id)
		}
	}

	if f.cache.count() != 1 {
		t.Fatalf("cache invalidations = %d, want 1 for the touched roster", f.cache.count())
	}
}

func TestChangeManager_BestEffortHooksNeverFailMutations(t *testing.T) {
	t.Parallel()

	f := newChangeFixture()
	f.bus.err = errors.New("broker down")
	f.cache.err = errors.New("cache down")
	f.classes.seed(scheduledClass("class-1"))

	cancelled, err := f.manager.CancelClass(context.Background(), "class-1", "reason")
	if err != nil {
		t.Fatalf("hook failures surfaced from CancelClass: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("status = %q, want cancelled despite hook failures", cancelled.Status)
	}
}
