// Package cli implements the studybot command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/studybot/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to a .cue or .yaml config file

	// lookup reads environment overrides; nil means os.LookupEnv.
	lookup config.LookupFunc
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the studybot CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "studybot",
		Short: "Study bot for supervisors and participants",
		Long: `A chat bot that lets supervisors set dated tasks for their subject
and lets participants browse those tasks and run timed focus sessions.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (.cue, .yaml or .yml)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewRosterCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads the config file and environment. overrides maps
// environment variable names (without prefix) to flag values; they win
// over both and go through the same schema validation.
func (o *RootOptions) loadConfig(overrides map[string]string) (*config.Config, error) {
	env := o.lookup
	if env == nil {
		env = os.LookupEnv
	}
	lookup := func(key string) (string, bool) {
		if v, ok := overrides[key[len(config.EnvPrefix):]]; ok {
			return v, true
		}
		return env(key)
	}
	cfg, err := config.Load(o.Config, lookup)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
