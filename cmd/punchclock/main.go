package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/cmd/punchclock/commands"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
)

var rootCmd = &cobra.Command{
	Use:   "punchclock",
	Short: "punchclock - offline-first time tracking",
	Long: `punchclock - offline-first time tracking with overtime-aware earnings.

Every change is written locally first and queued; a background sync pushes
the queue to the remote authority and pulls other devices' changes back.

Available commands:
  am      - Show and validate configuration
  job     - Manage jobs (client engagements)
  clock   - Clock in and out, take breaks
  entry   - List, add, edit and delete time entries
  period  - Pay periods, paid/unpaid marking and earnings summary
  sync    - Run a sync cycle or inspect the mutation queue
  daemon  - Run background sync (connectivity probe, timers, change feed)
  serve   - Run the reference remote authority
  token   - Issue and revoke device tokens on the remote authority

Examples:
  punchclock job add "Acme" --rate 45
  punchclock clock in Acme
  punchclock clock out Acme
  punchclock period summary Acme
  punchclock sync now`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// am show prints the config itself; keep stderr quiet
		if cmd.Name() == "show" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		cfg, err := am.Load()
		if err != nil {
			return err
		}
		if err := logger.Initialize(cfg.Log.JSON, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output JSON instead of tables")
	rootCmd.PersistentFlags().String("db-path", "", "Local database path (overrides database.path)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.JobCmd)
	rootCmd.AddCommand(commands.ClockCmd)
	rootCmd.AddCommand(commands.EntryCmd)
	rootCmd.AddCommand(commands.PeriodCmd)
	rootCmd.AddCommand(commands.SyncCmd)
	rootCmd.AddCommand(commands.DaemonCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.TokenCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
