// Package display renders CLI output: pterm tables for people, indented
// JSON for scripts.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/punchclock/errors"
)

// ShouldOutputJSON reports whether --json was set on the command or the root
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("json")
		return v
	}
	v, _ := cmd.Root().PersistentFlags().GetBool("json")
	return v
}

// OutputJSON writes v as indented JSON
func OutputJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Table writes a table with a header row
func Table(w io.Writer, header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// Duration formats milliseconds as hours and minutes, e.g. "3h30m"
func Duration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh%02dm", h, m)
}

// Money formats an amount with two decimals
func Money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Timestamp formats epoch milliseconds in loc; nil renders as "running"
func Timestamp(ms *int64, loc *time.Location) string {
	if ms == nil {
		return "running"
	}
	return time.UnixMilli(*ms).In(loc).Format("2006-01-02 15:04")
}

// Date formats epoch milliseconds as a calendar day in loc
func Date(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format("2006-01-02")
}
