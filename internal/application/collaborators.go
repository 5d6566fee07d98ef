package application

import (
	"context"
	"time"
)

// TemplateStore exposes the recurring weekly timetables to materialize from.
type TemplateStore interface {
	ListActiveTimetables(ctx context.Context) ([]Timetable, error)
}

// SubjectResolver resolves a subject name within a batch/section to its id.
// A missing subject is reported as ErrNotFound.
type SubjectResolver interface {
	FindSubject(ctx context.Context, name, batchID, sectionID string) (string, error)
}

// AttendanceChecker reports whether attendance records reference a class.
type AttendanceChecker interface {
	HasAttendanceFor(ctx context.Context, sessionClassID string) (bool, error)
}

// Recipient identifies one notification target.
type Recipient struct {
	UserID    string
	PushToken string
}

// RecipientDirectory lists active users in a batch/section who opted into a
// specific reminder offset.
type RecipientDirectory interface {
	FindOptedInUsers(ctx context.Context, batchID, sectionID string, offsetMinutes int) ([]Recipient, error)
}

// EventType tags the notification events this subsystem produces.
type EventType string

const (
	EventClassAdded       EventType = "CLASS_ADDED"
	EventClassCancelled   EventType = "CLASS_CANCELLED"
	EventClassRescheduled EventType = "CLASS_RESCHEDULED"
	EventClassRemoved     EventType = "CLASS_REMOVED"
	EventClassReminder    EventType = "CLASS_REMINDER"
	EventDailyBriefing    EventType = "DAILY_BRIEFING"
)

// NotificationEvent carries everything the delivery layer needs to render
// and route a notification without further lookups.
type NotificationEvent struct {
	Type        EventType
	BatchID     string
	SectionID   string
	CollegeID   string
	ClassID     string
	SubjectName string
	Title       string
	Body        string
	DateString  string
	StartTime   string
	EndTime     string
	Tokens      []string
	DeepLink    string
}

// NotificationBus is the fan-out collaborator that delivers events. Publish
// failures are logged and swallowed; they never roll back the mutation that
// produced the event.
type NotificationBus interface {
	Publish(ctx context.Context, event NotificationEvent) error
}

// DashboardCache invalidates the cached dashboard views (dashboard-for-date,
// active-class, aggregate-stats) for every student in a batch/section.
// Invoked as a best-effort post-mutation hook.
type DashboardCache interface {
	InvalidateRoster(ctx context.Context, batchID, sectionID string) error
}

// DelayedScheduler places and removes delayed triggers by deterministic key.
// Both operations are idempotent.
type DelayedScheduler interface {
	Schedule(key string, fireAt time.Time, payload any)
	Cancel(key string)
}
