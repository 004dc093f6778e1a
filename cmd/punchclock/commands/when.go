package commands

import (
	"strings"
	"time"

	"github.com/teranos/punchclock/errors"
)

var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// parseWhen reads a --at/--start/--end value in loc. A bare "15:04" means
// that time on now's day. Empty returns nil (use the current time).
func parseWhen(value string, now time.Time, loc *time.Location) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation("15:04", value, loc); err == nil {
		n := now.In(loc)
		ms := time.Date(n.Year(), n.Month(), n.Day(), t.Hour(), t.Minute(), 0, 0, loc).UnixMilli()
		return &ms, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			ms := t.UnixMilli()
			return &ms, nil
		}
	}
	return nil, errors.WithHint(errors.NewValidationError("cannot parse time %q", value),
		`use "15:04", "2006-01-02 15:04" or RFC 3339`)
}
