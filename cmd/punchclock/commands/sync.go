package commands

import (
	"context"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/punchclock/display"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/sync"
)

// SyncCmd runs sync cycles by hand and inspects the queue
var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a sync cycle or inspect the mutation queue",
	Long: `Push queued local changes to the remote authority and pull the
other devices' changes.

The daemon does this automatically; these commands are for running a cycle
on demand and for checking what is still waiting to be pushed.

Examples:
  punchclock sync now
  punchclock sync now --pull
  punchclock sync status`,
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Push the queue, then pull (ignores trigger gating)",
	Args:  cobra.NoArgs,
	RunE:  runSyncNow,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending mutations and remote reachability",
	Args:  cobra.NoArgs,
	RunE:  runSyncStatus,
}

func init() {
	syncNowCmd.Flags().Bool("push", false, "Only push the queue")
	syncNowCmd.Flags().Bool("pull", false, "Only pull from the remote")
	SyncCmd.AddCommand(syncNowCmd, syncStatusCmd)
}

func runSyncNow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireRemote(); err != nil {
		return err
	}

	pushOnly, _ := cmd.Flags().GetBool("push")
	pullOnly, _ := cmd.Flags().GetBool("pull")
	if pushOnly && pullOnly {
		return errors.NewValidationError("--push and --pull are mutually exclusive")
	}

	ctx := cmd.Context()
	userID := a.cfg.Sync.UserID
	var pushed sync.PushResult
	var pulled sync.PullResult
	switch {
	case pushOnly:
		pushed, err = a.engine.ProcessQueue(ctx, userID)
	case pullOnly:
		pulled, err = a.engine.Refresh(ctx, userID)
	default:
		pushed, pulled, err = a.engine.FullSync(ctx, userID)
	}
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), map[string]any{"push": pushed, "pull": pulled})
	}
	pterm.Success.Printfln("Pushed %d changes in %d batches, pulled %d records (%d skipped with local edits pending)",
		pushed.Pushed, pushed.Batches, pulled.Total(), pulled.Skipped)
	return nil
}

// syncStatus is the JSON shape of sync status
type syncStatus struct {
	UserID        string          `json:"user_id"`
	Remote        string          `json:"remote,omitempty"`
	ServerVersion string          `json:"server_version,omitempty"`
	Reachable     bool            `json:"reachable"`
	RemoteError   string          `json:"remote_error,omitempty"`
	Pending       []mutation.Item `json:"pending"`
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.queue.Pending(cmd.Context())
	if err != nil {
		return err
	}
	st := syncStatus{UserID: a.cfg.Sync.UserID, Pending: pending}
	if a.client != nil {
		st.Remote = a.client.BaseURL()
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		st.ServerVersion, err = a.client.CheckCompatibility(ctx)
		cancel()
		st.Reachable = err == nil
		if err != nil {
			st.RemoteError = err.Error()
		}
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), st)
	}

	switch {
	case st.Remote == "":
		pterm.Warning.Println("No remote configured; changes stay on this device")
	case st.Reachable:
		pterm.Success.Printfln("Remote %s reachable (api %s)", st.Remote, st.ServerVersion)
	default:
		pterm.Warning.Printfln("Remote %s unreachable: %s", st.Remote, st.RemoteError)
	}
	if st.UserID == "" {
		pterm.Warning.Println("sync.user_id is not set; background sync is disabled")
	}
	if len(pending) == 0 {
		pterm.Info.Println("Queue is empty")
		return nil
	}

	rows := make([][]string, 0, len(pending))
	for _, it := range pending {
		rows = append(rows, []string{string(it.EntityType), it.EntityID, string(it.Operation),
			time.UnixMilli(it.EnqueuedAt).In(a.loc).Format("2006-01-02 15:04:05"),
			strconv.Itoa(it.Attempts), it.LastError})
	}
	return display.Table(cmd.OutOrStdout(), []string{"Entity", "ID", "Op", "Queued", "Attempts", "Last error"}, rows)
}
