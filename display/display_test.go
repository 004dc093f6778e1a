package display

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0h00m"},
		{int64(3*time.Hour + 30*time.Minute) / int64(time.Millisecond), "3h30m"},
		{int64(26*time.Hour+5*time.Minute) / int64(time.Millisecond), "26h05m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.ms))
	}
}

func TestTimestamp(t *testing.T) {
	ms := time.Date(2026, time.October, 12, 9, 5, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, "2026-10-12 09:05", Timestamp(&ms, time.UTC))
	assert.Equal(t, "running", Timestamp(nil, time.UTC))
	assert.Equal(t, "2026-10-12", Date(ms, time.UTC))
	assert.Equal(t, "70.00", Money(70))
}

func TestShouldOutputJSON(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	root.PersistentFlags().Bool("json", false, "")
	child := &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)

	assert.False(t, ShouldOutputJSON(child))
	require.NoError(t, root.PersistentFlags().Set("json", "true"))
	assert.True(t, ShouldOutputJSON(child))
	assert.False(t, ShouldOutputJSON(nil))
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, OutputJSON(&buf, map[string]int{"count": 2}))
	assert.JSONEq(t, `{"count":2}`, buf.String())
}
