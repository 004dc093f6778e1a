package timesheet

import (
	"github.com/teranos/punchclock/errors"
)

// ValidateEntry checks the structural invariants of a single entry:
// the end follows the start, breaks are ordered and never overlap, every
// break starts within the entry, only the last break may be open and
// IsOnBreak agrees with it. A completed entry has no open break and all
// its breaks end by the entry's end.
func ValidateEntry(e TimeEntry) error {
	if e.JobID == "" {
		return errors.NewValidationError("time entry %s has no job", e.ID)
	}
	if e.StartTime <= 0 {
		return errors.NewValidationError("time entry %s has invalid start time %d", e.ID, e.StartTime)
	}
	if e.EndTime != nil && *e.EndTime <= e.StartTime {
		return errors.NewValidationError("end time %d must be after start time %d", *e.EndTime, e.StartTime)
	}

	prevEnd := e.StartTime
	for i, b := range e.Breaks {
		if b.StartTime < e.StartTime {
			return errors.NewValidationError("break %d starts before the entry", i)
		}
		if b.StartTime < prevEnd {
			return errors.NewValidationError("break %d overlaps the previous break", i)
		}
		if b.EndTime == nil {
			if i != len(e.Breaks)-1 {
				return errors.NewValidationError("only the last break may be open, break %d is open", i)
			}
			if e.EndTime != nil {
				return errors.NewValidationError("completed entry has an open break")
			}
			continue
		}
		if *b.EndTime < b.StartTime {
			return errors.NewValidationError("break %d ends before it starts", i)
		}
		if e.EndTime != nil && *b.EndTime > *e.EndTime {
			return errors.NewValidationError("break %d ends after the entry", i)
		}
		prevEnd = *b.EndTime
	}

	if e.IsOnBreak != (e.OpenBreak() != nil) {
		return errors.NewValidationError("is_on_break does not match the last break")
	}
	return nil
}
