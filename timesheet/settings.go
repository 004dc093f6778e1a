package timesheet

import (
	"github.com/teranos/punchclock/errors"
)

// PayPeriodType selects the length of a pay period
type PayPeriodType string

const (
	PayPeriodWeekly   PayPeriodType = "weekly"
	PayPeriodBiweekly PayPeriodType = "biweekly"
	PayPeriodMonthly  PayPeriodType = "monthly"
)

// OvertimeMode selects an overtime rule. Daily and weekly are mutually exclusive.
type OvertimeMode string

const (
	OvertimeNone   OvertimeMode = "none"
	OvertimeDaily  OvertimeMode = "daily"
	OvertimeWeekly OvertimeMode = "weekly"
)

// RoundingDirection for TimeRounding
type RoundingDirection string

const (
	RoundUp   RoundingDirection = "up"
	RoundDown RoundingDirection = "down"
)

// DeductionKind says how a deduction amount is interpreted
type DeductionKind string

const (
	DeductionFixed   DeductionKind = "fixed"   // currency units per pay period
	DeductionPercent DeductionKind = "percent" // percent of gross, 0-100
)

// Defaults applied by DefaultJobSettings and Normalize
const (
	DefaultDailyOvertimeThreshold  = 8.0
	DefaultWeeklyOvertimeThreshold = 40.0
	DefaultOvertimeRate            = 1.5
	DefaultRoundingInterval        = 15
)

// TimeRounding rounds the net work of completed entries to an interval.
// BufferMinutes is a grace window: rounding up is skipped when the overshoot
// is within the buffer, rounding down is skipped when the shortfall to the
// next interval is within the buffer.
type TimeRounding struct {
	Enabled         bool              `json:"enabled"`
	Direction       RoundingDirection `json:"direction"`
	IntervalMinutes int               `json:"interval_minutes"`
	BufferMinutes   int               `json:"buffer_minutes"`
}

// PresetBreak is deducted automatically from completed entries that recorded
// no breaks and whose net work exceeds AfterMinutes.
type PresetBreak struct {
	Label           string `json:"label"`
	DurationMinutes int    `json:"duration_minutes"`
	AfterMinutes    int    `json:"after_minutes"`
}

// Deduction is subtracted from gross earnings in a Summary
type Deduction struct {
	Label  string        `json:"label"`
	Kind   DeductionKind `json:"kind"`
	Amount float64       `json:"amount"`
}

// JobSettings configures pay periods, rounding, overtime and deductions for a job
type JobSettings struct {
	PayPeriodType     PayPeriodType `json:"pay_period_type"`
	PayPeriodStartDay int           `json:"pay_period_start_day"`
	TimeRounding      TimeRounding  `json:"time_rounding"`

	DailyOvertime           OvertimeMode `json:"daily_overtime"`
	DailyOvertimeThreshold  float64      `json:"daily_overtime_threshold"`
	DailyOvertimeRate       float64      `json:"daily_overtime_rate"`
	WeeklyOvertime          OvertimeMode `json:"weekly_overtime"`
	WeeklyOvertimeThreshold float64      `json:"weekly_overtime_threshold"`
	WeeklyOvertimeRate      float64      `json:"weekly_overtime_rate"`
	WeekStartDay            int          `json:"week_start_day"`

	AutomaticBreaks  bool          `json:"automatic_breaks"`
	PresetBreaks     []PresetBreak `json:"preset_breaks"`
	EstimatedTaxRate float64       `json:"estimated_tax_rate"`
	Deductions       []Deduction   `json:"deductions"`
}

// DefaultJobSettings returns weekly pay periods starting Sunday, no rounding
// and no overtime
func DefaultJobSettings() JobSettings {
	return JobSettings{
		PayPeriodType:           PayPeriodWeekly,
		PayPeriodStartDay:       0,
		TimeRounding:            TimeRounding{Direction: RoundUp, IntervalMinutes: DefaultRoundingInterval},
		DailyOvertime:           OvertimeNone,
		DailyOvertimeThreshold:  DefaultDailyOvertimeThreshold,
		DailyOvertimeRate:       DefaultOvertimeRate,
		WeeklyOvertime:          OvertimeNone,
		WeeklyOvertimeThreshold: DefaultWeeklyOvertimeThreshold,
		WeeklyOvertimeRate:      DefaultOvertimeRate,
		PresetBreaks:            []PresetBreak{},
		Deductions:              []Deduction{},
	}
}

// Normalize fills unset fields with defaults. It never changes a field the
// caller set to a meaningful value.
func (s JobSettings) Normalize() JobSettings {
	d := DefaultJobSettings()
	if s.PayPeriodType == "" {
		s.PayPeriodType = d.PayPeriodType
	}
	if s.PayPeriodType == PayPeriodMonthly && s.PayPeriodStartDay == 0 {
		s.PayPeriodStartDay = 1
	}
	if s.TimeRounding.Direction == "" {
		s.TimeRounding.Direction = d.TimeRounding.Direction
	}
	if s.TimeRounding.IntervalMinutes == 0 {
		s.TimeRounding.IntervalMinutes = d.TimeRounding.IntervalMinutes
	}
	if s.DailyOvertime == "" {
		s.DailyOvertime = OvertimeNone
	}
	if s.WeeklyOvertime == "" {
		s.WeeklyOvertime = OvertimeNone
	}
	if s.DailyOvertimeThreshold <= 0 {
		s.DailyOvertimeThreshold = d.DailyOvertimeThreshold
	}
	if s.DailyOvertimeRate <= 0 {
		s.DailyOvertimeRate = d.DailyOvertimeRate
	}
	if s.WeeklyOvertimeThreshold <= 0 {
		s.WeeklyOvertimeThreshold = d.WeeklyOvertimeThreshold
	}
	if s.WeeklyOvertimeRate <= 0 {
		s.WeeklyOvertimeRate = d.WeeklyOvertimeRate
	}
	if s.PresetBreaks == nil {
		s.PresetBreaks = []PresetBreak{}
	}
	if s.Deductions == nil {
		s.Deductions = []Deduction{}
	}
	return s
}

// EnableDailyOvertime turns on daily overtime and turns off weekly overtime
func (s *JobSettings) EnableDailyOvertime(thresholdHours, rate float64) {
	s.DailyOvertime = OvertimeDaily
	s.WeeklyOvertime = OvertimeNone
	if thresholdHours > 0 {
		s.DailyOvertimeThreshold = thresholdHours
	}
	if rate > 0 {
		s.DailyOvertimeRate = rate
	}
}

// EnableWeeklyOvertime turns on weekly overtime and turns off daily overtime
func (s *JobSettings) EnableWeeklyOvertime(thresholdHours, rate float64) {
	s.WeeklyOvertime = OvertimeWeekly
	s.DailyOvertime = OvertimeNone
	if thresholdHours > 0 {
		s.WeeklyOvertimeThreshold = thresholdHours
	}
	if rate > 0 {
		s.WeeklyOvertimeRate = rate
	}
}

// DisableOvertime turns off both overtime rules
func (s *JobSettings) DisableOvertime() {
	s.DailyOvertime = OvertimeNone
	s.WeeklyOvertime = OvertimeNone
}

// Validate checks a normalized settings value
func (s JobSettings) Validate() error {
	switch s.PayPeriodType {
	case PayPeriodWeekly, PayPeriodBiweekly:
		if s.PayPeriodStartDay < 0 || s.PayPeriodStartDay > 6 {
			return errors.NewValidationError("pay_period_start_day must be 0-6 for %s periods, got %d", s.PayPeriodType, s.PayPeriodStartDay)
		}
	case PayPeriodMonthly:
		if s.PayPeriodStartDay < 1 || s.PayPeriodStartDay > 28 {
			return errors.NewValidationError("pay_period_start_day must be 1-28 for monthly periods, got %d", s.PayPeriodStartDay)
		}
	default:
		return errors.NewValidationError("unknown pay_period_type %q", s.PayPeriodType)
	}

	if s.TimeRounding.Enabled {
		switch s.TimeRounding.Direction {
		case RoundUp, RoundDown:
		default:
			return errors.NewValidationError("unknown rounding direction %q", s.TimeRounding.Direction)
		}
		switch s.TimeRounding.IntervalMinutes {
		case 15, 30, 60:
		default:
			return errors.NewValidationError("rounding interval must be 15, 30 or 60 minutes, got %d", s.TimeRounding.IntervalMinutes)
		}
	}
	if s.TimeRounding.BufferMinutes < 0 || s.TimeRounding.BufferMinutes > 30 {
		return errors.NewValidationError("rounding buffer must be 0-30 minutes, got %d", s.TimeRounding.BufferMinutes)
	}

	if s.DailyOvertime != OvertimeNone && s.DailyOvertime != OvertimeDaily {
		return errors.NewValidationError("daily_overtime must be none or daily, got %q", s.DailyOvertime)
	}
	if s.WeeklyOvertime != OvertimeNone && s.WeeklyOvertime != OvertimeWeekly {
		return errors.NewValidationError("weekly_overtime must be none or weekly, got %q", s.WeeklyOvertime)
	}
	if s.DailyOvertime == OvertimeDaily && s.WeeklyOvertime == OvertimeWeekly {
		return errors.NewValidationError("daily and weekly overtime cannot both be enabled")
	}
	if s.DailyOvertimeThreshold <= 0 || s.WeeklyOvertimeThreshold <= 0 {
		return errors.NewValidationError("overtime thresholds must be positive")
	}
	if s.DailyOvertimeRate <= 0 || s.WeeklyOvertimeRate <= 0 {
		return errors.NewValidationError("overtime rates must be positive")
	}
	if s.WeekStartDay < 0 || s.WeekStartDay > 6 {
		return errors.NewValidationError("week_start_day must be 0-6, got %d", s.WeekStartDay)
	}

	for _, b := range s.PresetBreaks {
		if b.DurationMinutes <= 0 || b.AfterMinutes < 0 {
			return errors.NewValidationError("preset break %q needs a positive duration and non-negative threshold", b.Label)
		}
	}

	if s.EstimatedTaxRate < 0 || s.EstimatedTaxRate > 1 {
		return errors.NewValidationError("estimated_tax_rate must be between 0 and 1, got %v", s.EstimatedTaxRate)
	}
	for _, d := range s.Deductions {
		switch d.Kind {
		case DeductionFixed:
			if d.Amount < 0 {
				return errors.NewValidationError("deduction %q amount must be non-negative", d.Label)
			}
		case DeductionPercent:
			if d.Amount < 0 || d.Amount > 100 {
				return errors.NewValidationError("deduction %q percent must be 0-100", d.Label)
			}
		default:
			return errors.NewValidationError("deduction %q has unknown kind %q", d.Label, d.Kind)
		}
	}
	return nil
}
