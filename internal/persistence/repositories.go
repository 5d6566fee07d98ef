package persistence

import "context"

// WeeklySessionRepository stores the per-week class containers.
type WeeklySessionRepository interface {
	CreateWeeklySession(ctx context.Context, session WeeklySession) error
	GetWeeklySession(ctx context.Context, id string) (WeeklySession, error)
	FindWeeklySession(ctx context.Context, batchID, sectionID string, isoYear, isoWeek int) (WeeklySession, error)
	ListWeeklySessionsForWeek(ctx context.Context, isoYear, isoWeek int) ([]WeeklySession, error)
}

// SessionClassFilter narrows session class queries. Zero-valued fields are
// ignored.
type SessionClassFilter struct {
	WeeklySessionID string
	TemplateID      string
	BatchID         string
	SectionID       string
	DateString      string
	Status          string
}

// SessionClassRepository stores concrete dated class occurrences. Create
// reports ErrDuplicate when a write collides with either slot uniqueness
// constraint; callers decide whether that is a conflict or an expected
// already-materialized outcome.
type SessionClassRepository interface {
	CreateSessionClass(ctx context.Context, class SessionClass) error
	GetSessionClass(ctx context.Context, id string) (SessionClass, error)
	UpdateSessionClass(ctx context.Context, class SessionClass) error
	DeleteSessionClass(ctx context.Context, id string) error
	ListSessionClasses(ctx context.Context, filter SessionClassFilter) ([]SessionClass, error)
	FindSessionClassBySlot(ctx context.Context, batchID, sectionID, dateString, startTime string) (SessionClass, error)
}
