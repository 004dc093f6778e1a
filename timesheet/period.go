package timesheet

import (
	"sort"
	"time"
)

// biweeklyReference is a Sunday that anchors biweekly cycles. Any fixed
// date works as long as it never changes: moving it would shift every
// biweekly job's period boundaries by a week.
var biweeklyReference = time.Date(1970, time.January, 4, 0, 0, 0, 0, time.UTC)

// PeriodBounds returns the half-open pay period [start, end) containing t.
// Bounds are calendar dates in loc, so a period spanning a DST change is
// an hour shorter or longer than its nominal length.
func PeriodBounds(s JobSettings, t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	s = s.Normalize()

	switch s.PayPeriodType {
	case PayPeriodBiweekly:
		start := WeekStart(t, s.PayPeriodStartDay)
		ref := civilDays(biweeklyReference) + s.PayPeriodStartDay
		if floorDiv(civilDays(start)-ref, 7)%2 != 0 {
			start = start.AddDate(0, 0, -7)
		}
		return start, start.AddDate(0, 0, 14)

	case PayPeriodMonthly:
		start := monthAnchor(t.Year(), t.Month(), s.PayPeriodStartDay, loc)
		if t.Before(start) {
			start = monthAnchor(t.Year(), t.Month()-1, s.PayPeriodStartDay, loc)
		}
		return start, monthAnchor(start.Year(), start.Month()+1, s.PayPeriodStartDay, loc)

	default:
		return WeekRange(t, s.PayPeriodStartDay)
	}
}

// monthAnchor is 00:00 on day of the given month, rolled back to the
// month's last day when the month is shorter
func monthAnchor(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	if n := daysIn(first.Year(), first.Month()); day > n {
		day = n
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}

// GeneratePayPeriods partitions the job's completed entries into pay
// periods. Only periods with at least one entry are returned, sorted by
// start. Periods in existing with the same bounds keep their id, paid
// state and creation time; totals and membership are recomputed.
//
// An entry whose PaidInPeriodID names an existing paid period of the job
// stays in that period even when the job's settings no longer produce its
// bounds, so a settings change never counts a paid entry twice.
func GeneratePayPeriods(job Job, entries []TimeEntry, existing []PayPeriod, loc *time.Location, now int64) []PayPeriod {
	if loc == nil {
		loc = time.Local
	}

	calc := NewCalculator(job, entries, loc, now)

	type bucket struct {
		start, end int64
		entries    []TimeEntry
		owner      *PayPeriod
	}
	paid := make(map[string]PayPeriod)
	for _, p := range existing {
		if p.JobID == job.ID && p.IsPaid {
			paid[p.ID] = p
		}
	}

	buckets := make(map[int64]*bucket)
	owned := make(map[string][]TimeEntry)
	for _, e := range entries {
		if e.EndTime == nil || e.JobID != job.ID {
			continue
		}
		if e.PaidInPeriodID != nil {
			if _, ok := paid[*e.PaidInPeriodID]; ok {
				owned[*e.PaidInPeriodID] = append(owned[*e.PaidInPeriodID], e)
				continue
			}
		}
		start, end := PeriodBounds(job.Settings, FromMillis(e.StartTime, loc), loc)
		key := start.UnixMilli()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{start: key, end: end.UnixMilli()}
			buckets[key] = b
		}
		b.entries = append(b.entries, e)
	}

	byBounds := make(map[[2]int64]PayPeriod, len(existing))
	for _, p := range existing {
		if p.JobID == job.ID {
			byBounds[[2]int64{p.StartDate, p.EndDate}] = p
		}
	}

	// Paid periods with matching bounds absorb the bucket
	for _, b := range buckets {
		if p, ok := byBounds[[2]int64{b.start, b.end}]; ok && p.IsPaid {
			b.entries = append(b.entries, owned[p.ID]...)
			delete(owned, p.ID)
		}
	}
	all := make([]*bucket, 0, len(buckets)+len(owned))
	for _, b := range buckets {
		all = append(all, b)
	}
	for id, es := range owned {
		p := paid[id]
		all = append(all, &bucket{start: p.StartDate, end: p.EndDate, entries: es, owner: &p})
	}

	periods := make([]PayPeriod, 0, len(all))
	for _, b := range all {
		sort.Slice(b.entries, func(i, j int) bool { return b.entries[i].StartTime < b.entries[j].StartTime })

		ids := make([]string, len(b.entries))
		for i, e := range b.entries {
			ids[i] = e.ID
		}
		stats := calc.Stats(b.entries)

		p, ok := byBounds[[2]int64{b.start, b.end}]
		if b.owner != nil {
			p, ok = *b.owner, true
		}
		if ok {
			p = p.Clone()
		} else {
			p = PayPeriod{
				ID:        NewID(),
				JobID:     job.ID,
				StartDate: b.start,
				EndDate:   b.end,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}
		p.TotalDuration = stats.Duration
		p.TotalEarnings = stats.Earnings
		p.TimeEntryIDs = ids
		periods = append(periods, p)
	}

	sort.Slice(periods, func(i, j int) bool { return periods[i].StartDate < periods[j].StartDate })
	return periods
}

// SamePeriodContent reports whether two periods have equal totals, membership and paid state
func SamePeriodContent(a, b PayPeriod) bool {
	if a.TotalDuration != b.TotalDuration || a.TotalEarnings != b.TotalEarnings || a.IsPaid != b.IsPaid {
		return false
	}
	if len(a.TimeEntryIDs) != len(b.TimeEntryIDs) {
		return false
	}
	for i := range a.TimeEntryIDs {
		if a.TimeEntryIDs[i] != b.TimeEntryIDs[i] {
			return false
		}
	}
	return true
}
