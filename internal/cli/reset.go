package cli

import (
	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the encrypted database, its key and the settings",
		Long: `Delete the database files, the wrapped key record and the user settings.
Every logged entry is lost; the food guide is reloaded on next use.

This is the only way out of an unrecoverable storage error. Run
"santelocale export" first if it still works.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Yes {
				return NewExitError(ExitCommandError, "refusing to reset without --yes")
			}
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				if err := a.provider.Reset(cmd.Context()); err != nil {
					return WrapExitError(ExitFailure, "failed to reset storage", err)
				}
				if err := a.prefs.ClearSettings(); err != nil {
					return WrapExitError(ExitFailure, "failed to clear settings", err)
				}
				return opts.formatter(cmd).Result(map[string]any{"reset": true, "path": a.provider.Path()}, "Stockage réinitialisé.\n")
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm permanent data loss")

	return cmd
}
