package timesheet

import (
	"time"
)

// StartOfDay returns 00:00 of t's calendar day in t's location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekStart returns 00:00 of the most recent weekStartDay (0 = Sunday) on or before t
func WeekStart(t time.Time, weekStartDay int) time.Time {
	offset := (int(t.Weekday()) - weekStartDay + 7) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// WeekRange returns the half-open week [start, end) containing t
func WeekRange(t time.Time, weekStartDay int) (time.Time, time.Time) {
	start := WeekStart(t, weekStartDay)
	return start, start.AddDate(0, 0, 7)
}

// civilDays counts calendar days from the epoch for t's date, ignoring DST
func civilDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
