package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/sync"
)

// DaemonCmd runs background sync
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run background sync",
	Long: `Run background sync until interrupted.

The daemon probes the remote for connectivity, runs a sync cycle on
reconnect, on start, on two periodic timers and, with sync.realtime, when
another device of the same user pushes. Each trigger is gated so cycles do
not pile up; at most one cycle runs at a time.

Changes to sync.user_id in the active config file are picked up without a
restart.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireRemote(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := a.logger.Named("daemon")
	cfg := a.cfg.Sync
	network := sync.NewNetwork()
	scheduler := sync.NewScheduler(a.engine, network, sync.SchedulerConfig{
		UserID:             cfg.UserID,
		ActiveInterval:     am.Interval(cfg.ActiveIntervalSeconds, time.Minute),
		BackgroundInterval: am.Interval(cfg.BackgroundIntervalSeconds, 15*time.Minute),
	}, log.Named("scheduler"))
	prober := sync.NewProber(a.client, network, sync.ProberConfig{
		Interval: am.Interval(cfg.ProbeIntervalSeconds, 15*time.Second),
		OnChange: func(ctx context.Context, info sync.NetworkInfo) {
			scheduler.OnNetworkChange(ctx, info)
		},
	}, log.Named("prober"))

	prober.Start(ctx)
	defer prober.Stop()
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.Realtime {
		listener := sync.NewChangeListener(a.client.Changes(), scheduler, 0, log.Named("changes"))
		listener.Start(ctx)
		defer listener.Stop()
	}

	if paths := am.ActiveConfigPaths(); len(paths) > 0 {
		watched := paths[len(paths)-1]
		watcher, err := am.NewConfigWatcher(watched)
		if err != nil {
			log.Warnw("Config reload disabled", logger.FieldPath, watched, logger.FieldError, err)
		} else {
			watcher.OnReload(func(c *am.Config) error {
				if c.Sync.UserID != scheduler.UserID() {
					log.Infow("Sync user changed", logger.FieldUserID, c.Sync.UserID)
				}
				scheduler.SetUserID(c.Sync.UserID)
				a.tracker.SetUserID(c.Sync.UserID)
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	// coming up counts as the app entering the foreground
	outcome, err := scheduler.OnForeground(ctx)
	log.Infow("Initial sync", "outcome", outcome, logger.FieldError, err)

	pterm.Info.Printfln("Syncing with %s as %s (Ctrl+C to stop)", a.client.BaseURL(), scheduler.UserID())
	<-ctx.Done()
	pterm.Info.Println("Stopping background sync")

	st := scheduler.Status()
	log.Infow("Daemon stopped", "last_sync", st.LastSync, "last_error", st.LastError)
	return nil
}
