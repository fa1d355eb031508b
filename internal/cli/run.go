package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/studybot/internal/bot"
	"github.com/roach88/studybot/internal/engine"
	"github.com/roach88/studybot/internal/metrics"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/scheduler"
	"github.com/roach88/studybot/internal/transport"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Roster      string
	Sessions    string
	Workers     int
	MetricsAddr string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot on the console",
		Long: `Run the bot with stdin and stdout as the chat transport.

Each input line is "<identity> <input>": input starting with "/" is a
command, "!" a button press, anything else free text. Replies are printed
prefixed with the identity; keyboards are printed as [label|data].

The bot stops at end of input or on SIGINT/SIGTERM.

Example:
  studybot run --roster ./studybot.db
  printf 'pat /start\npat !reg_participant\n' | studybot run --roster ""
  studybot run --sessions redis --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Roster, "roster", "", "SQLite roster path (empty string for in-memory)")
	cmd.Flags().StringVar(&opts.Sessions, "sessions", "", "session backend (memory|redis)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "inbound worker goroutines")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "listen address of the /metrics endpoint")

	return cmd
}

// overrides maps the flags the user set onto config environment names.
func (o *RunOptions) overrides(cmd *cobra.Command) map[string]string {
	m := map[string]string{}
	flags := cmd.Flags()
	if flags.Changed("roster") {
		m["ROSTER_PATH"] = o.Roster
	}
	if flags.Changed("sessions") {
		m["SESSIONS_BACKEND"] = o.Sessions
	}
	if flags.Changed("workers") {
		m["WORKERS"] = strconv.Itoa(o.Workers)
	}
	if flags.Changed("metrics-addr") {
		m["METRICS_ADDR"] = o.MetricsAddr
	}
	return m
}

func runBot(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(opts.overrides(cmd))
	if err != nil {
		return err
	}
	logger := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRoster, err := openRoster(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRoster()

	sessions, closeSessions, err := openSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	dir := roster.NewDirectory(repo, cfg.Location())
	b := bot.New(dir,
		bot.WithMaxFocusMinutes(cfg.Focus.MaxMinutes),
		bot.WithLogger(logger),
	)
	table, err := b.Table()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build transition table", err)
	}

	sched := scheduler.New(scheduler.WithLogger(logger), scheduler.WithObserver(m))
	defer sched.Stop()

	eng := engine.New(table, sessions,
		engine.WithJobs(sched),
		engine.WithTransport(transport.NewConsole(cmd.OutOrStdout())),
		engine.WithLogger(logger),
		engine.WithObserver(m),
	)
	runner := engine.NewRunner(eng, cfg.Workers)

	at := scheduler.TimeOfDay{Hour: cfg.Maintenance.Hour, Minute: cfg.Maintenance.Minute}
	if _, err := b.ScheduleMaintenance(sched, at); err != nil {
		return WrapExitError(ExitFailure, "failed to schedule maintenance", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := sched.Start(gctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start scheduler", err)
	}

	g.Go(func() error {
		// End of input stops the runner, which ends the whole group.
		defer stop()
		return runner.Run(gctx)
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// The reader is not part of the group: a blocked read on stdin must not
	// hold up shutdown.
	go func() {
		defer runner.Stop()
		err := transport.Scan(gctx, cmd.InOrStdin(), func(u transport.Update) {
			ev, err := engine.FromUpdate(u)
			if err != nil {
				logger.Warn("dropping update", "identity", u.Identity, "error", err)
				return
			}
			if !runner.Submit(ev) {
				logger.Warn("runner stopped, dropping update", "identity", u.Identity)
			}
		}, func(line string, err error) {
			logger.Warn("unreadable input line", "line", line, "error", err)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("input failed", "error", err)
		}
	}()

	logger.Info("bot started",
		"workers", runner.Workers(),
		"timezone", cfg.Timezone,
		"sessions", cfg.Sessions.Backend,
		"maintenance", at.String(),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "bot stopped", err)
	}
	logger.Info("bot stopped", "handled", runner.Handled())
	return nil
}
