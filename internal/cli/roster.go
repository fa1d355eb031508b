package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/studybot/internal/roster"
)

// RosterOptions holds flags for the roster command.
type RosterOptions struct {
	*RootOptions
	Roster  string
	Subject string
}

// RosterListing is the roster as printed.
type RosterListing struct {
	Users []roster.User `json:"users"`
	Tasks []TaskLine    `json:"tasks"`
}

// TaskLine is a task with its deadline as a calendar date.
type TaskLine struct {
	Subject  string `json:"subject"`
	Title    string `json:"title"`
	Deadline string `json:"deadline"`
}

func (l RosterListing) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Users (%d):\n", len(l.Users))
	for _, u := range l.Users {
		fmt.Fprintf(&b, "  %-16s %-10s", u.Identity, u.Role)
		if u.Name != "" {
			fmt.Fprintf(&b, " %s", u.Name)
		}
		if u.Subject != "" {
			fmt.Fprintf(&b, " [%s]", u.Subject)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Tasks (%d):\n", len(l.Tasks))
	for _, t := range l.Tasks {
		fmt.Fprintf(&b, "  %s  %s: %s\n", t.Deadline, t.Subject, t.Title)
	}
	return b.String()
}

// NewRosterCommand creates the roster command.
func NewRosterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RosterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "List registered users and tasks",
		Long: `Print the users and tasks stored in the roster.

Example:
  studybot roster --roster ./studybot.db
  studybot roster --subject physics --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoster(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Roster, "roster", "", "SQLite roster path")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "only list tasks for this subject")

	return cmd
}

func runRoster(opts *RosterOptions, cmd *cobra.Command) error {
	overrides := map[string]string{}
	if cmd.Flags().Changed("roster") {
		overrides["ROSTER_PATH"] = opts.Roster
	}
	cfg, err := opts.loadConfig(overrides)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())

	repo, closeRoster, err := openRoster(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRoster()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	dir := roster.NewDirectory(repo, cfg.Location())

	users, err := dir.Users(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list users", err)
	}
	var tasks []roster.Task
	if opts.Subject != "" {
		tasks, err = dir.TasksFor(ctx, opts.Subject)
	} else {
		tasks, err = dir.Tasks(ctx)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list tasks", err)
	}

	listing := RosterListing{Users: users, Tasks: make([]TaskLine, len(tasks))}
	if listing.Users == nil {
		listing.Users = []roster.User{}
	}
	for i, t := range tasks {
		listing.Tasks[i] = TaskLine{
			Subject:  t.Subject,
			Title:    t.Title,
			Deadline: t.Deadline.In(cfg.Location()).Format("2006-01-02"),
		}
	}
	return opts.formatter(cmd).Success(listing)
}
