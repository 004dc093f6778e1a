package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/db"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/server"
)

// ServeCmd runs the reference remote authority
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference remote authority",
	Long: `Run the remote authority devices sync against.

The server keeps every user's jobs, time entries and pay periods in its own
SQLite database (server.database_path), separate from the local tracking
database. Devices authenticate with tokens from 'punchclock token issue'.

Set server.jwt_secret so issued tokens survive restarts.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var servePort int

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cfg.Server.JWTSecret == "" {
		pterm.Warning.Println("server.jwt_secret is not set; tokens will stop working when the server restarts")
	}

	log := logger.Logger.Named("serve")
	database, err := db.OpenWithMigrations(cfg.Server.DatabasePath, db.SchemaRemote, log)
	if err != nil {
		return errors.Wrap(err, "failed to open server database")
	}
	defer database.Close()

	srv, err := server.New(database, cfg.Server, log)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe(cfg.Server.Port)
	}()
	pterm.Info.Printfln("Serving on :%d (database %s)", cfg.Server.Port, cfg.Server.DatabasePath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		stopErr := srv.Stop(context.Background())
		if err != nil {
			return err
		}
		return stopErr
	case <-sigChan:
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop(context.Background())
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}
