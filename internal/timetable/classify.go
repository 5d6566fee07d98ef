package timetable

import "time"

// ChangeKind labels how a reschedule moved a class relative to its original
// slot. The label only affects notification wording; it carries no state.
type ChangeKind string

const (
	// ChangePostponed indicates the class moved to a later instant.
	ChangePostponed ChangeKind = "postponed"
	// ChangePreponed indicates the class moved to an earlier instant.
	ChangePreponed ChangeKind = "preponed"
	// ChangeRescheduled indicates the slot changed without moving in time
	// (for example a room-only change at the same instant).
	ChangeRescheduled ChangeKind = "rescheduled"
)

// Classify compares the old and new absolute start instants of a reschedule.
func Classify(oldStart, newStart time.Time) ChangeKind {
	switch {
	case newStart.After(oldStart):
		return ChangePostponed
	case newStart.Before(oldStart):
		return ChangePreponed
	default:
		return ChangeRescheduled
	}
}
