package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/studybot/internal/config"
)

// effectiveConfig prints as YAML in text mode.
type effectiveConfig struct {
	*config.Config
}

func (c effectiveConfig) String() string {
	data, err := c.YAML()
	if err != nil {
		return "error: " + err.Error() + "\n"
	}
	return string(data)
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the --config file and
STUDYBOT_* environment overrides are applied and validated.

Example:
  studybot config
  STUDYBOT_WORKERS=8 studybot config --config ./studybot.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig(nil)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(effectiveConfig{cfg})
		},
	}
}
