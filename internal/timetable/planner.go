package timetable

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/college-scheduler/internal/civil"
)

// Entry describes one recurring weekday/time slot in a batch-section's base
// timetable.
type Entry struct {
	ID          string
	Weekday     time.Weekday
	StartTime   string
	EndTime     string
	SubjectName string
	Room        string
	Kind        string
}

// PlannedClass is a template entry bound to a concrete calendar date within
// one target week.
type PlannedClass struct {
	Entry       Entry
	Date        time.Time
	DateString  string
	WeekdayName string
	Day         int
	Month       int
	Year        int
}

// ErrInvalidEntry indicates a template entry carries malformed slot data.
var ErrInvalidEntry = errors.New("timetable: invalid template entry")

// PlanWeek binds template entries to concrete dates inside the week that
// starts on the provided Monday. Entries are placed by weekday offset from
// the Monday bound (Monday=0 ... Sunday=6). Entries with malformed clock
// values are rejected individually so one bad entry never hides the rest.
func PlanWeek(entries []Entry, monday time.Time, cal *civil.Calendar) ([]PlannedClass, []error) {
	if cal == nil {
		cal = civil.NewCalendar(nil)
	}

	planned := make([]PlannedClass, 0, len(entries))
	var problems []error

	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			problems = append(problems, err)
			continue
		}

		offset := (int(entry.Weekday) + 6) % 7
		date := monday.AddDate(0, 0, offset)
		day, month, year := cal.Components(date)

		planned = append(planned, PlannedClass{
			Entry:       entry,
			Date:        date,
			DateString:  cal.DateString(date),
			WeekdayName: date.Weekday().String(),
			Day:         day,
			Month:       month,
			Year:        year,
		})
	}

	return planned, problems
}

func validateEntry(entry Entry) error {
	startHour, startMinute, err := civil.ParseClock(entry.StartTime)
	if err != nil {
		return fmt.Errorf("%w: entry %s: %v", ErrInvalidEntry, entry.ID, err)
	}
	endHour, endMinute, err := civil.ParseClock(entry.EndTime)
	if err != nil {
		return fmt.Errorf("%w: entry %s: %v", ErrInvalidEntry, entry.ID, err)
	}
	if endHour*60+endMinute <= startHour*60+startMinute {
		return fmt.Errorf("%w: entry %s: end %s not after start %s", ErrInvalidEntry, entry.ID, entry.EndTime, entry.StartTime)
	}
	if entry.SubjectName == "" {
		return fmt.Errorf("%w: entry %s: subject name is empty", ErrInvalidEntry, entry.ID)
	}
	return nil
}
