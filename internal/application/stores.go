package application

import (
	"context"
	"errors"

	"github.com/example/college-scheduler/internal/persistence"
)

// WeeklySessionStore captures the weekly-container persistence interactions
// needed by the services.
type WeeklySessionStore interface {
	CreateWeeklySession(ctx context.Context, session WeeklySession) error
	GetWeeklySession(ctx context.Context, id string) (WeeklySession, error)
	FindWeeklySession(ctx context.Context, batchID, sectionID string, isoYear, isoWeek int) (WeeklySession, error)
	ListWeeklySessionsForWeek(ctx context.Context, isoYear, isoWeek int) ([]WeeklySession, error)
}

// SessionClassFilter narrows class queries. Zero-valued fields are ignored.
type SessionClassFilter struct {
	WeeklySessionID string
	TemplateID      string
	BatchID         string
	SectionID       string
	DateString      string
	Status          ClassStatus
}

// SessionClassStore captures the class-occurrence persistence interactions
// needed by the services. CreateSessionClass reports ErrConflict when the
// write collides with an existing slot.
type SessionClassStore interface {
	CreateSessionClass(ctx context.Context, class SessionClass) error
	GetSessionClass(ctx context.Context, id string) (SessionClass, error)
	UpdateSessionClass(ctx context.Context, class SessionClass) error
	DeleteSessionClass(ctx context.Context, id string) error
	ListSessionClasses(ctx context.Context, filter SessionClassFilter) ([]SessionClass, error)
	FindSessionClassBySlot(ctx context.Context, batchID, sectionID, dateString, startTime string) (SessionClass, error)
}

// mapStoreError folds persistence sentinels into the application taxonomy.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, persistence.ErrDuplicate):
		return ErrConflict
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, persistence.ErrDuplicate)
}
