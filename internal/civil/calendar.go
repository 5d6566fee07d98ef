package civil

import (
	"errors"
	"fmt"
	"time"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

// IST returns the default civil timezone (UTC+05:30).
func IST() *time.Location {
	return ist
}

// Calendar performs date and week arithmetic against one fixed civil
// timezone, regardless of the executing process's local timezone.
type Calendar struct {
	location *time.Location
}

// NewCalendar constructs a Calendar pinned to the provided location.
// If loc is nil, IST (UTC+05:30) is used.
func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = ist
	}
	return &Calendar{location: loc}
}

// Location returns the calendar's civil timezone.
func (c *Calendar) Location() *time.Location {
	if c == nil || c.location == nil {
		return ist
	}
	return c.location
}

// ErrInvalidClock indicates a wall-clock string is not of the form HH:MM.
var ErrInvalidClock = errors.New("civil: invalid wall-clock value")

// Components returns the civil day, month and year for the given instant.
func (c *Calendar) Components(t time.Time) (day, month, year int) {
	local := t.In(c.Location())
	return local.Day(), int(local.Month()), local.Year()
}

// DateString returns the canonical "YYYY-MM-DD" form of the instant's civil date.
func (c *Calendar) DateString(t time.Time) string {
	local := t.In(c.Location())
	return fmt.Sprintf("%04d-%02d-%02d", local.Year(), int(local.Month()), local.Day())
}

// WeekdayName returns the English weekday name of the instant's civil date.
func (c *Calendar) WeekdayName(t time.Time) string {
	return t.In(c.Location()).Weekday().String()
}

// ISOWeek computes the ISO-8601 week-year and week number for the instant's
// civil date. The date is shifted to the Thursday of its week before the
// days-since-year-start division, which places boundary days in the correct
// week-year.
func (c *Calendar) ISOWeek(t time.Time) (isoYear, isoWeek int) {
	local := c.StartOfDay(t)

	// Monday=0 ... Sunday=6.
	offset := (int(local.Weekday()) + 6) % 7
	thursday := local.AddDate(0, 0, 3-offset)

	isoYear = thursday.Year()
	yearStart := time.Date(isoYear, time.January, 1, 0, 0, 0, 0, c.Location())
	isoWeek = int(thursday.Sub(yearStart).Hours()/24)/7 + 1
	return isoYear, isoWeek
}

// StartOfDay returns civil midnight of the instant's date.
func (c *Calendar) StartOfDay(t time.Time) time.Time {
	local := t.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location())
}

// WeekBounds returns the Monday that starts the instant's civil week at
// midnight and the Sunday that ends it at 23:59:59.999.
func (c *Calendar) WeekBounds(t time.Time) (monday, sunday time.Time) {
	start := c.StartOfDay(t)
	offset := (int(start.Weekday()) + 6) % 7
	monday = start.AddDate(0, 0, -offset)
	sunday = monday.AddDate(0, 0, 6).Add(23*time.Hour + 59*time.Minute + 59*time.Second + 999*time.Millisecond)
	return monday, sunday
}

// Absolute reconstructs the absolute instant for stored numeric date
// components combined with a "HH:MM" wall-clock value in the civil timezone.
// This is the only sanctioned way to compare a stored session slot against
// the current time; textual or locale-dependent comparisons drift across
// hosts while the numeric components always encode the correct civil day.
func (c *Calendar) Absolute(day, month, year int, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, c.Location()), nil
}

// Date builds the civil-midnight instant for the given components.
func (c *Calendar) Date(day, month, year int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, c.Location())
}

// ParseClock validates and splits a "HH:MM" wall-clock string.
func ParseClock(clock string) (hour, minute int, err error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	if _, err := fmt.Sscanf(clock, "%2d:%2d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	return hour, minute, nil
}
