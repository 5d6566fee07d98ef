package persistence

import "time"

// WeeklySession is the per-(batch, section, ISO week) container of
// materialized classes. Exactly one row exists per combination; the store
// enforces this with a uniqueness constraint.
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
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionClass is one concrete, dated class occurrence. TemplateID is nil
// for ad-hoc extra classes. The numeric date components duplicate the
// canonical date string so past/future checks can reconstruct an absolute
// instant without parsing locale-dependent text.
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
	Kind            string
	Status          string
	IsExtraClass    bool
	IsMarkingOpen   bool
	IsMarkingDone   bool
	CancelReason    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
