package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/santelocale/healthlog/internal/export"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	As     string
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the history as CSV or JSON",
		Long: `Export every log entry, newest first, as a report to share with a
care team. Run this before "santelocale reset" to keep a copy.

Example:
  santelocale export --as csv --output journal.csv
  santelocale export --as json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := export.Format(opts.As)
			if format != export.FormatCSV && format != export.FormatJSON {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --as %q: must be 'csv' or 'json'", opts.As))
			}
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				settings, err := a.settings()
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read settings", err)
				}
				logs, err := a.repo.LogsSnapshot(cmd.Context())
				if err != nil {
					return wrapStoreError("failed to read history", err)
				}

				var w io.Writer = cmd.OutOrStdout()
				if opts.Output != "" {
					f, err := os.OpenFile(opts.Output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
					if err != nil {
						return WrapExitError(ExitFailure, "failed to create export file", err)
					}
					defer f.Close()
					w = f
				}

				report := export.Report{
					UserName:    settings.UserName,
					Unit:        settings.GlucoseUnit,
					GeneratedAt: time.Now(),
					Logs:        logs,
				}
				if err := export.Write(w, format, report); err != nil {
					return WrapExitError(ExitFailure, "failed to write export", err)
				}
				if opts.Output != "" {
					opts.formatter(cmd).VerboseLog("exported %d entries to %s", len(logs), opts.Output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "csv", "report format (csv|json)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")

	return cmd
}
