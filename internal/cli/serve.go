package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/billable/internal/billing"
	"github.com/soyeahso/billable/internal/config"
	"github.com/soyeahso/billable/internal/gateway"
	"github.com/soyeahso/billable/internal/logging"
	"github.com/soyeahso/billable/internal/mailwatch"
	"github.com/soyeahso/billable/internal/notify"
	"github.com/soyeahso/billable/internal/practice"
	"github.com/soyeahso/billable/internal/store"
	"github.com/soyeahso/billable/internal/summary"
	"github.com/soyeahso/billable/internal/tracker"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tracking daemon and API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Honor the configured log level and file once config is loaded;
			// the --log-level flag wins.
			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			if cfg.Logging.File != "" {
				log, err = logging.NewWithFile(cfg.Logging.File, level)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
			} else {
				log = logging.New(nil, level)
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Session store (SQLite or in-memory)
			var sessions tracker.SessionStore
			if cfg.Store.Driver == "memory" {
				sessions = tracker.NewMemorySessionStore()
				log.Info().Msg("using in-memory session store")
			} else {
				dbPath := cfg.Store.Path
				if dbPath == "" {
					dbPath = filepath.Join(paths.Data, "billable.db")
				}
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				sessions = store.NewSQLiteSessionStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite session store")
			}

			trk := tracker.New(sessions, log, tracker.Options{
				IdleTimeout:  time.Duration(cfg.Tracker.IdleSeconds) * time.Second,
				AbandonAfter: time.Duration(cfg.Tracker.AbandonAfterHours) * time.Hour,
			})

			// Billing workflow: summary generation + practice-management posting
			generator := summary.New(cfg.Summary)
			registry := practice.New(cfg.Practice)
			orch := billing.New(registry, generator, log, cfg.Billing)
			trk.SetFinalizer(orch)
			log.Info().
				Str("summary", generator.Name()).
				Str("practice", registry.Name()).
				Msg("billing workflow wired")

			srv := gateway.New(cfg, trk, log)

			// Notification sinks: log always, IRC and the WebSocket feed
			// when available
			dispatcher := notify.NewDispatcher(log, 0)
			dispatcher.Register(notify.NewLogSink(log))
			dispatcher.Register(srv.Feed())
			if cfg.Notify.IRC != nil {
				ircSink := notify.NewIRCSink(*cfg.Notify.IRC, log)
				dispatcher.RegisterStartable(ctx, ircSink)
				defer ircSink.Stop()
			}
			trk.SetPublisher(dispatcher)

			// Abandonment sweep
			sweeper := tracker.NewSweeper(trk, time.Duration(cfg.Tracker.SweepMinutes)*time.Minute, log)
			sweeper.Start()
			defer sweeper.Stop()

			// Draft watching keeps sessions alive while the user works in
			// their mail client
			if source := draftSource(ctx, cfg); source != nil {
				interval := time.Duration(cfg.Mail.PollSeconds) * time.Second
				watcher := mailwatch.NewWatcher(source, trk, interval, log)
				watcher.Start()
				defer watcher.Stop()
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// draftSource picks the configured mail backend, or nil if none.
func draftSource(ctx context.Context, cfg config.Config) mailwatch.DraftSource {
	if cfg.Mail.IMAP != nil {
		return mailwatch.NewIMAPSource(*cfg.Mail.IMAP, log)
	}
	if cfg.Mail.Gmail != nil {
		src, err := mailwatch.NewGmailSource(ctx, *cfg.Mail.Gmail, log)
		if err != nil {
			log.Warn().Err(err).Msg("gmail draft source unavailable")
			return nil
		}
		return src
	}
	return nil
}
