package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/santelocale/healthlog/internal/prefs"
)

// SettingsOptions holds flags for the settings command.
type SettingsOptions struct {
	*RootOptions
	Name string
	Unit string
}

// NewSettingsCommand creates the settings command.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the user name and glucose unit",
		Long: `Show the current settings, or change them with --name and --unit.

Example:
  santelocale settings --name "Marie" --unit mmol/L`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				if cmd.Flags().Changed("name") {
					if err := a.prefs.SetUserName(opts.Name); err != nil {
						return WrapExitError(ExitFailure, "failed to save name", err)
					}
				}
				if cmd.Flags().Changed("unit") {
					if err := a.prefs.SetGlucoseUnit(opts.Unit); err != nil {
						return WrapExitError(ExitCommandError, "failed to save unit", err)
					}
				}
				s, err := a.settings()
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read settings", err)
				}
				return opts.formatter(cmd).Result(s, renderSettings(s))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name used in exports")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "glucose unit (mg/dL|mmol/L)")

	return cmd
}

func renderSettings(s prefs.Settings) string {
	name := s.UserName
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("Nom:   %s\nUnité: %s\n", name, s.GlucoseUnit)
}
