// Package commands implements the punchclock CLI.
package commands

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/db"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/remote"
	"github.com/teranos/punchclock/store"
	"github.com/teranos/punchclock/sync"
	"github.com/teranos/punchclock/timesheet"
	"github.com/teranos/punchclock/tracker"
)

// app is one device: local database, tracker and, when a remote is
// configured, the sync engine
type app struct {
	cfg     *am.Config
	db      *sql.DB
	queue   *mutation.Queue
	repo    store.Repository
	tracker *tracker.Tracker
	loc     *time.Location
	logger  *zap.SugaredLogger

	client *remote.Client // nil when sync.remote_url is empty
	engine *sync.Engine
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(err, "run `punchclock am show` to inspect the merged configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	path := cfg.Database.Path
	if flag, _ := cmd.Flags().GetString("db-path"); flag != "" {
		path = flag
	} else if env, err := am.GetDatabasePath(); err == nil && env != "" {
		path = env
	}

	log := logger.Logger
	conn, err := db.OpenWithMigrations(path, db.SchemaLocal, log.Named("db"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	repo := store.NewSQLStore(conn)
	queue := mutation.NewQueue(mutation.NewSQLBackend(conn), log.Named("queue"))
	a := &app{
		cfg:   cfg,
		db:    conn,
		queue: queue,
		repo:  repo,
		tracker: tracker.New(repo, queue, tracker.Config{
			UserID:   cfg.Sync.UserID,
			Location: loc,
			Logger:   log.Named("tracker"),
		}),
		loc:    loc,
		logger: log,
	}

	if cfg.Sync.RemoteURL != "" {
		a.client, err = remote.New(remote.Config{
			URL:     cfg.Sync.RemoteURL,
			Token:   cfg.Sync.Token,
			Timeout: am.Interval(cfg.Sync.RequestTimeoutSeconds, 20*time.Second),
		}, log.Named("remote"))
		if err != nil {
			conn.Close()
			return nil, err
		}
		a.engine = sync.NewEngine(repo, queue, a.client, a.tracker.Locker(), log.Named("sync"))
	}
	return a, nil
}

// requireRemote fails with a configuration hint when sync is not set up
func (a *app) requireRemote() error {
	if a.engine == nil {
		return errors.WithHint(errors.New("no remote configured"),
			"set sync.remote_url, sync.token and sync.user_id in ~/.punchclock/am.toml")
	}
	return nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// resolveJob accepts a job id or a case-insensitive title
func (a *app) resolveJob(ctx context.Context, ref string) (*timesheet.Job, error) {
	if job, err := a.tracker.GetJob(ctx, ref); err == nil {
		return job, nil
	} else if !errors.IsNotFoundError(err) {
		return nil, err
	}

	jobs, err := a.tracker.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	var match *timesheet.Job
	for i := range jobs {
		if strings.EqualFold(jobs[i].Title, ref) {
			if match != nil {
				return nil, errors.WithHint(errors.NewConflictError("more than one job is titled %q", ref),
					"use the job id from `punchclock job ls`")
			}
			match = &jobs[i]
		}
	}
	if match == nil {
		return nil, errors.NewNotFoundError("job %q", ref)
	}
	return match, nil
}
