package timesheet

import (
	"sort"
	"time"
)

const msPerHour = float64(time.Hour / time.Millisecond)

// Stats is the net duration (ms) and earnings of a set of entries
type Stats struct {
	Duration int64   `json:"duration"`
	Earnings float64 `json:"earnings"`
}

// Hours returns Duration in hours
func (s Stats) Hours() float64 {
	return float64(s.Duration) / msPerHour
}

// Calculator computes stats for entries of one job. Weekly overtime is not
// entry-local: each entry's share depends on every completed entry of the
// job in the same week, so Entries must hold all of the job's entries, not
// just the ones being summed.
type Calculator struct {
	Job      Job
	Entries  []TimeEntry
	Location *time.Location
	Now      int64

	weeklyOvertime map[string]float64
}

// ComputeStats sums net duration and earnings over entries, treating
// entries as every entry of the job for weekly attribution.
func ComputeStats(entries []TimeEntry, job Job, now int64, loc *time.Location) Stats {
	c := NewCalculator(job, entries, loc, now)
	return c.Stats(entries)
}

// NewCalculator prepares a calculator over all entries of job
func NewCalculator(job Job, entries []TimeEntry, loc *time.Location, now int64) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	job.Settings = job.Settings.Normalize()
	return &Calculator{Job: job, Entries: entries, Location: loc, Now: now}
}

// Stats sums EntryStats over entries
func (c *Calculator) Stats(entries []TimeEntry) Stats {
	var total Stats
	for i := range entries {
		s := c.EntryStats(entries[i])
		total.Duration += s.Duration
		total.Earnings += s.Earnings
	}
	return total
}

// EntryStats returns the net duration and earnings of one entry. Running
// entries accrue duration up to Now and earn straight time only.
func (c *Calculator) EntryStats(e TimeEntry) Stats {
	work := c.WorkDuration(e)
	hours := float64(work) / msPerHour
	rate := c.Job.HourlyRate
	s := c.Job.Settings

	if e.EndTime == nil {
		return Stats{Duration: work, Earnings: hours * rate}
	}

	var straight, overtime, multiplier float64
	switch {
	case s.DailyOvertime == OvertimeDaily && hours > s.DailyOvertimeThreshold:
		straight = s.DailyOvertimeThreshold
		overtime = hours - s.DailyOvertimeThreshold
		multiplier = s.DailyOvertimeRate
	case s.WeeklyOvertime == OvertimeWeekly:
		overtime = c.weeklyShare(e.ID)
		straight = hours - overtime
		multiplier = s.WeeklyOvertimeRate
	default:
		straight = hours
	}

	return Stats{
		Duration: work,
		Earnings: straight*rate + overtime*rate*multiplier,
	}
}

// WorkDuration is the entry's duration net of breaks, floored at zero.
// Completed entries additionally get preset breaks and rounding applied.
func (c *Calculator) WorkDuration(e TimeEntry) int64 {
	end := c.Now
	if e.EndTime != nil {
		end = *e.EndTime
	}
	entryDuration := end - e.StartTime

	var breakDuration int64
	for _, b := range e.Breaks {
		var bEnd int64
		switch {
		case b.EndTime != nil:
			bEnd = *b.EndTime
		case e.IsOnBreak:
			bEnd = c.Now
		default:
			bEnd = b.StartTime
		}
		breakDuration += bEnd - b.StartTime
	}

	work := entryDuration - breakDuration
	if work < 0 {
		work = 0
	}
	if e.EndTime == nil {
		return work
	}

	if c.Job.Settings.AutomaticBreaks && len(e.Breaks) == 0 {
		work = applyPresetBreaks(work, c.Job.Settings.PresetBreaks)
	}
	if c.Job.Settings.TimeRounding.Enabled {
		work = roundDuration(work, c.Job.Settings.TimeRounding)
	}
	return work
}

func applyPresetBreaks(work int64, presets []PresetBreak) int64 {
	net := work
	for _, p := range presets {
		if work > int64(p.AfterMinutes)*int64(time.Minute/time.Millisecond) {
			net -= int64(p.DurationMinutes) * int64(time.Minute/time.Millisecond)
		}
	}
	if net < 0 {
		return 0
	}
	return net
}

func roundDuration(work int64, r TimeRounding) int64 {
	minute := int64(time.Minute / time.Millisecond)
	interval := int64(r.IntervalMinutes) * minute
	if interval <= 0 {
		return work
	}
	buffer := int64(r.BufferMinutes) * minute
	rem := work % interval
	if rem == 0 {
		return work
	}
	down := work - rem
	up := down + interval

	if r.Direction == RoundDown {
		if interval-rem <= buffer {
			return up
		}
		return down
	}
	if rem <= buffer {
		return down
	}
	return up
}

// weeklyShare returns the overtime hours charged to entry id. Completed
// entries in a week are ordered by start time; each is charged the part of
// the running weekly total that crosses the threshold while it is added, so
// the shares over a week sum to max(0, weeklyTotal - threshold). A share
// depends only on earlier entries, so adding later work never reprices it.
func (c *Calculator) weeklyShare(id string) float64 {
	if c.weeklyOvertime == nil {
		c.weeklyOvertime = c.attributeWeeklyOvertime()
	}
	return c.weeklyOvertime[id]
}

func (c *Calculator) attributeWeeklyOvertime() map[string]float64 {
	s := c.Job.Settings
	weeks := make(map[int64][]TimeEntry)
	for _, e := range c.Entries {
		if e.EndTime == nil || (c.Job.ID != "" && e.JobID != c.Job.ID) {
			continue
		}
		ws := WeekStart(FromMillis(e.StartTime, c.Location), s.WeekStartDay).UnixMilli()
		weeks[ws] = append(weeks[ws], e)
	}

	shares := make(map[string]float64)
	for _, week := range weeks {
		sort.Slice(week, func(i, j int) bool {
			if week[i].StartTime != week[j].StartTime {
				return week[i].StartTime < week[j].StartTime
			}
			return week[i].ID < week[j].ID
		})

		var cumulative, charged float64
		for _, e := range week {
			cumulative += float64(c.WorkDuration(e)) / msPerHour
			over := cumulative - s.WeeklyOvertimeThreshold
			if over < 0 {
				over = 0
			}
			shares[e.ID] = over - charged
			charged = over
		}
	}
	return shares
}
