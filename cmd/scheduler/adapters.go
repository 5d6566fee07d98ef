package main

import (
	"context"

	"github.com/example/college-scheduler/internal/application"
	"github.com/example/college-scheduler/internal/persistence"
)

// weeklySessionAdapter bridges the application's weekly-session store onto
// the persistence repository.
type weeklySessionAdapter struct {
	repo persistence.WeeklySessionRepository
}

func newWeeklySessionAdapter(repo persistence.WeeklySessionRepository) *weeklySessionAdapter {
	return &weeklySessionAdapter{repo: repo}
}

func (a *weeklySessionAdapter) CreateWeeklySession(ctx context.Context, session application.WeeklySession) error {
	return a.repo.CreateWeeklySession(ctx, toPersistenceWeek(session))
}

func (a *weeklySessionAdapter) GetWeeklySession(ctx context.Context, id string) (application.WeeklySession, error) {
	week, err := a.repo.GetWeeklySession(ctx, id)
	if err != nil {
		return application.WeeklySession{}, err
	}
	return toApplicationWeek(week), nil
}

func (a *weeklySessionAdapter) FindWeeklySession(ctx context.Context, batchID, sectionID string, isoYear, isoWeek int) (application.WeeklySession, error) {
	week, err := a.repo.FindWeeklySession(ctx, batchID, sectionID, isoYear, isoWeek)
	if err != nil {
		return application.WeeklySession{}, err
	}
	return toApplicationWeek(week), nil
}

func (a *weeklySessionAdapter) ListWeeklySessionsForWeek(ctx context.Context, isoYear, isoWeek int) ([]application.WeeklySession, error) {
	weeks, err := a.repo.ListWeeklySessionsForWeek(ctx, isoYear, isoWeek)
	if err != nil {
		return nil, err
	}
	out := make([]application.WeeklySession, len(weeks))
	for i, week := range weeks {
		out[i] = toApplicationWeek(week)
	}
	return out, nil
}

// sessionClassAdapter bridges the application's class store onto the
// persistence repository.
type sessionClassAdapter struct {
	repo persistence.SessionClassRepository
}

func newSessionClassAdapter(repo persistence.SessionClassRepository) *sessionClassAdapter {
	return &sessionClassAdapter{repo: repo}
}

func (a *sessionClassAdapter) CreateSessionClass(ctx context.Context, class application.SessionClass) error {
	return a.repo.CreateSessionClass(ctx, toPersistenceClass(class))
}

func (a *sessionClassAdapter) GetSessionClass(ctx context.Context, id string) (application.SessionClass, error) {
	class, err := a.repo.GetSessionClass(ctx, id)
	if err != nil {
		return application.SessionClass{}, err
	}
	return toApplicationClass(class), nil
}

func (a *sessionClassAdapter) UpdateSessionClass(ctx context.Context, class application.SessionClass) error {
	return a.repo.UpdateSessionClass(ctx, toPersistenceClass(class))
}

func (a *sessionClassAdapter) DeleteSessionClass(ctx context.Context, id string) error {
	return a.repo.DeleteSessionClass(ctx, id)
}

func (a *sessionClassAdapter) ListSessionClasses(ctx context.Context, filter application.SessionClassFilter) ([]application.SessionClass, error) {
	classes, err := a.repo.ListSessionClasses(ctx, persistence.SessionClassFilter{
		WeeklySessionID: filter.WeeklySessionID,
		TemplateID:      filter.TemplateID,
		BatchID:         filter.BatchID,
		SectionID:       filter.SectionID,
		DateString:      filter.DateString,
		Status:          string(filter.Status),
	})
	if err != nil {
		return nil, err
	}
	out := make([]application.SessionClass, len(classes))
	for i, class := range classes {
		out[i] = toApplicationClass(class)
	}
	return out, nil
}

func (a *sessionClassAdapter) FindSessionClassBySlot(ctx context.Context, batchID, sectionID, dateString, startTime string) (application.SessionClass, error) {
	class, err := a.repo.FindSessionClassBySlot(ctx, batchID, sectionID, dateString, startTime)
	if err != nil {
		return application.SessionClass{}, err
	}
	return toApplicationClass(class), nil
}

func toPersistenceWeek(week application.WeeklySession) persistence.WeeklySession {
	return persistence.WeeklySession{
		ID:          week.ID,
		BatchID:     week.BatchID,
		SectionID:   week.SectionID,
		CollegeID:   week.CollegeID,
		WeekStart:   week.WeekStart,
		WeekEnd:     week.WeekEnd,
		ISOYear:     week.ISOYear,
		ISOWeek:     week.ISOWeek,
		Active:      week.Active,
		GeneratedAt: week.GeneratedAt,
	}
}

func toApplicationWeek(week persistence.WeeklySession) application.WeeklySession {
	return application.WeeklySession{
		ID:          week.ID,
		BatchID:     week.BatchID,
		SectionID:   week.SectionID,
		CollegeID:   week.CollegeID,
		WeekStart:   week.WeekStart,
		WeekEnd:     week.WeekEnd,
		ISOYear:     week.ISOYear,
		ISOWeek:     week.ISOWeek,
		Active:      week.Active,
		GeneratedAt: week.GeneratedAt,
	}
}

func toPersistenceClass(class application.SessionClass) persistence.SessionClass {
	return persistence.SessionClass{
		ID:              class.ID,
		WeeklySessionID: class.WeeklySessionID,
		TemplateID:      class.TemplateID,
		SubjectID:       class.SubjectID,
		SubjectName:     class.SubjectName,
		BatchID:         class.BatchID,
		SectionID:       class.SectionID,
		CollegeID:       class.CollegeID,
		DateString:      class.DateString,
		WeekdayName:     class.WeekdayName,
		Day:             class.Day,
		Month:           class.Month,
		Year:            class.Year,
		StartTime:       class.StartTime,
		EndTime:         class.EndTime,
		Room:            class.Room,
		Kind:            string(class.Kind),
		Status:          string(class.Status),
		IsExtraClass:    class.IsExtraClass,
		IsMarkingOpen:   class.IsMarkingOpen,
		IsMarkingDone:   class.IsMarkingDone,
		CancelReason:    class.CancelReason,
	}
}

func toApplicationClass(class persistence.SessionClass) application.SessionClass {
	return application.SessionClass{
		ID:              class.ID,
		WeeklySessionID: class.WeeklySessionID,
		TemplateID:      class.TemplateID,
		SubjectID:       class.SubjectID,
		SubjectName:     class.SubjectName,
		BatchID:         class.BatchID,
		SectionID:       class.SectionID,
		CollegeID:       class.CollegeID,
		DateString:      class.DateString,
		WeekdayName:     class.WeekdayName,
		Day:             class.Day,
		Month:           class.Month,
		Year:            class.Year,
		StartTime:       class.StartTime,
		EndTime:         class.EndTime,
		Room:            class.Room,
		Kind:            application.ClassKind(class.Kind),
		Status:          application.ClassStatus(class.Status),
		IsExtraClass:    class.IsExtraClass,
		IsMarkingOpen:   class.IsMarkingOpen,
		IsMarkingDone:   class.IsMarkingDone,
		CancelReason:    class.CancelReason,
	}
}
