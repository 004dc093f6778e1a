package timesheet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/punchclock/errors"
)

func TestValidateEntry(t *testing.T) {
	const start = int64(1_760_000_000_000)
	minute := int64(60_000)

	tests := []struct {
		name    string
		entry   TimeEntry
		wantErr bool
	}{
		{"running entry", TimeEntry{JobID: "j", StartTime: start}, false},
		{"completed entry", TimeEntry{JobID: "j", StartTime: start, EndTime: Ptr(start + 60*minute)}, false},
		{"on break", TimeEntry{JobID: "j", StartTime: start, IsOnBreak: true, Breaks: []Break{{StartTime: start + minute}}}, false},
		{"missing job", TimeEntry{StartTime: start}, true},
		{"end before start", TimeEntry{JobID: "j", StartTime: start, EndTime: Ptr(start - 1)}, true},
		{"end equals start", TimeEntry{JobID: "j", StartTime: start, EndTime: Ptr(start)}, true},
		{"break before entry", TimeEntry{JobID: "j", StartTime: start, Breaks: []Break{{StartTime: start - minute, EndTime: Ptr(start)}}}, true},
		{"overlapping breaks", TimeEntry{JobID: "j", StartTime: start, Breaks: []Break{
			{StartTime: start + minute, EndTime: Ptr(start + 10*minute)},
			{StartTime: start + 5*minute, EndTime: Ptr(start + 12*minute)},
		}}, true},
		{"break ends before it starts", TimeEntry{JobID: "j", StartTime: start, Breaks: []Break{{StartTime: start + 5*minute, EndTime: Ptr(start + minute)}}}, true},
		{"open break not last", TimeEntry{JobID: "j", StartTime: start, Breaks: []Break{
			{StartTime: start + minute},
			{StartTime: start + 5*minute, EndTime: Ptr(start + 6*minute)},
		}}, true},
		{"flag without open break", TimeEntry{JobID: "j", StartTime: start, IsOnBreak: true}, true},
		{"open break without flag", TimeEntry{JobID: "j", StartTime: start, Breaks: []Break{{StartTime: start + minute}}}, true},
		{"completed with open break", TimeEntry{JobID: "j", StartTime: start, EndTime: Ptr(start + 60*minute), IsOnBreak: true, Breaks: []Break{{StartTime: start + minute}}}, true},
		{"break past entry end", TimeEntry{JobID: "j", StartTime: start, EndTime: Ptr(start + 10*minute), Breaks: []Break{{StartTime: start + minute, EndTime: Ptr(start + 20*minute)}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntry(tt.entry)
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimeEntry_Clone(t *testing.T) {
	e := TimeEntry{ID: "e", EndTime: Ptr(int64(5)), Breaks: []Break{{StartTime: 1, EndTime: Ptr(int64(2))}}}
	c := e.Clone()
	*c.EndTime = 9
	*c.Breaks[0].EndTime = 9

	assert.Equal(t, int64(5), *e.EndTime)
	assert.Equal(t, int64(2), *e.Breaks[0].EndTime)
}
