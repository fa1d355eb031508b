package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/studybot/internal/roster"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Roster string
	At     string // YYYY-MM-DD; empty means today
}

// SweepResult reports one sweep.
type SweepResult struct {
	Date    string `json:"date"`
	Removed int    `json:"removed"`
}

func (r SweepResult) String() string {
	return fmt.Sprintf("Removed %d expired task(s) before %s\n", r.Removed, r.Date)
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired tasks",
		Long: `Run the daily maintenance once: remove every task whose deadline date
is before today in the configured time zone. Tasks due today are kept.

Example:
  studybot sweep --roster ./studybot.db
  studybot sweep --at 2024-03-20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Roster, "roster", "", "SQLite roster path")
	cmd.Flags().StringVar(&opts.At, "at", "", "sweep as of this date (YYYY-MM-DD)")

	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	overrides := map[string]string{}
	if cmd.Flags().Changed("roster") {
		overrides["ROSTER_PATH"] = opts.Roster
	}
	cfg, err := opts.loadConfig(overrides)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())

	now := time.Now().In(cfg.Location())
	if opts.At != "" {
		now, err = time.ParseInLocation("2006-01-02", opts.At, cfg.Location())
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --at %q: want YYYY-MM-DD", opts.At))
		}
	}

	repo, closeRoster, err := openRoster(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRoster()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	removed, err := roster.NewDirectory(repo, cfg.Location()).SweepExpired(ctx, now)
	if err != nil {
		return WrapExitError(ExitFailure, "sweep failed", err)
	}
	logger.Info("sweep finished", "removed", removed)

	return opts.formatter(cmd).Success(SweepResult{
		Date:    now.Format("2006-01-02"),
		Removed: removed,
	})
}
