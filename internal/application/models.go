package application

import (
	"time"

	"github.com/example/college-scheduler/internal/timetable"
)

// ClassStatus tracks a session class through its state machine. Scheduled
// rows may move to cancelled, rescheduled or completed; cancelled and
// rescheduled are terminal for that row.
type ClassStatus string

const (
	// StatusScheduled marks a class that is still expected to run.
	StatusScheduled ClassStatus = "scheduled"
	// StatusCancelled marks a class called off before its start time.
	StatusCancelled ClassStatus = "cancelled"
	// StatusRescheduled marks the audit row left behind when a class moves
	// to a new slot.
	StatusRescheduled ClassStatus = "rescheduled"
	// StatusCompleted marks a class that ran.
	StatusCompleted ClassStatus = "completed"
)

// ClassKind identifies what kind of class a session holds.
type ClassKind string

const (
	KindLecture   ClassKind = "lecture"
	KindLab       ClassKind = "lab"
	KindTutorial  ClassKind = "tutorial"
	KindPractical ClassKind = "practical"
	KindExtra     ClassKind = "extra"
)

// WeeklySession is the per-(batch, section, ISO week) container of
// materialized classes.
type WeeklySession struct {
	ID          string
	BatchID     string
	SectionID   string
	CollegeID   string
	WeekStart   time.Time
	WeekEnd     time.Time
	ISOYear     int
	ISOWeek     int
	Active      bool
	GeneratedAt time.Time
}

// SessionClass is one concrete, dated class occurrence.
type SessionClass struct {
	ID              string
	WeeklySessionID string
	TemplateID      *string
	SubjectID       string
	SubjectName     string
	BatchID         string
	SectionID       string
	CollegeID       string
	DateString      string
	WeekdayName     string
	Day             int
	Month           int
	Year            int
	StartTime       string
	EndTime         string
	Room            string
	Kind            ClassKind
	Status          ClassStatus
	IsExtraClass    bool
	IsMarkingOpen   bool
	IsMarkingDone   bool
	CancelReason    *string
}

// Timetable is one batch-section's recurring weekly blueprint, as exposed by
// the template store.
type Timetable struct {
	BatchID   string
	SectionID string
	CollegeID string
	Entries   []timetable.Entry
}

// GenerateResult summarises one materialization run.
type GenerateResult struct {
	ISOYear         int
	ISOWeek         int
	SessionsTouched int
	ClassesCreated  int
	// Problems collects per-timetable failures that did not abort the run.
	Problems []error
}

// WeekView pairs a weekly container with its materialized classes.
type WeekView struct {
	Session WeeklySession
	Classes []SessionClass
}

// RescheduleClassParams carries the target slot for a reschedule.
type RescheduleClassParams struct {
	ClassID  string
	NewDate  time.Time
	NewStart string
	NewEnd   string
	NewRoom  string
}

// AddExtraClassParams carries an ad-hoc class request. The subject is given
// by name and resolved against the batch/section's subject catalogue.
type AddExtraClassParams struct {
	BatchID     string
	SectionID   string
	CollegeID   string
	SubjectName string
	Date        time.Time
	StartTime   string
	EndTime     string
	Room        string
	Kind        ClassKind
}
