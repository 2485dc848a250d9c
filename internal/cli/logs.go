package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/santelocale/healthlog/internal/health"
)

// GlucoseOptions holds flags for the glucose command.
type GlucoseOptions struct {
	*RootOptions
	Context string
	At      string
}

// NewGlucoseCommand creates the glucose command.
func NewGlucoseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GlucoseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "glucose <value>",
		Short: "Record a glucose reading",
		Long: `Record a glucose reading in the unit chosen in settings.

The value may use a comma or a dot as decimal separator; what you type
is kept for display.

Example:
  santelocale glucose 112 --context "A jeun"
  santelocale glucose 6,4 --at 2024-03-01T08:30:00+01:00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseAt(opts.At)
			if err != nil {
				return err
			}
			m, err := health.NewGlucose(args[0], opts.Context, at)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid glucose value", err)
			}
			return insertAndReport(opts.RootOptions, cmd, m)
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "meal context (e.g. \"A jeun\", \"Après repas\")")
	cmd.Flags().StringVar(&opts.At, "at", "", "reading time, RFC 3339 (default now)")

	return cmd
}

// ActivityOptions holds flags for the activity command.
type ActivityOptions struct {
	*RootOptions
	At string
}

// NewActivityCommand creates the activity command.
func NewActivityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActivityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "activity <label> <minutes>",
		Short: "Record physical activity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[1])
			if err != nil || minutes <= 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid duration %q: want a positive number of minutes", args[1]))
			}
			at, err := parseAt(opts.At)
			if err != nil {
				return err
			}
			return insertAndReport(opts.RootOptions, cmd, health.NewActivity(args[0], minutes, at))
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "activity time, RFC 3339 (default now)")

	return cmd
}

func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, "invalid --at", err)
	}
	return t, nil
}

func insertAndReport(opts *RootOptions, cmd *cobra.Command, m health.Measurement) error {
	return withApp(opts, cmd, func(a *app) error {
		settings, err := a.settings()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read settings", err)
		}
		id, err := a.repo.InsertLog(cmd.Context(), m)
		if err != nil {
			return wrapStoreError("failed to record entry", err)
		}
		m.ID = id
		return opts.formatter(cmd).Result(viewOf(m, settings.GlucoseUnit), "Enregistré "+renderLogLine(m, settings.GlucoseUnit)+"\n")
	})
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Kind  string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded entries, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind health.Kind
			if opts.Kind != "" {
				k, err := health.ParseKind(strings.ToUpper(opts.Kind))
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --kind", err)
				}
				kind = k
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
				logs = filterLogs(logs, kind, opts.Limit)
				return opts.formatter(cmd).Result(viewsOf(logs, settings.GlucoseUnit), renderLogs(logs, settings.GlucoseUnit))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only GLUCOSE or ACTIVITY entries")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show at most n entries (0 = all)")

	return cmd
}

func filterLogs(logs []health.Measurement, kind health.Kind, limit int) []health.Measurement {
	out := logs[:0:0]
	for _, m := range logs {
		if kind != "" && m.Kind != kind {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// NewLastCommand creates the last command.
func NewLastCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show the latest glucose reading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app) error {
				settings, err := a.settings()
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read settings", err)
				}
				m, err := a.repo.LastGlucoseSnapshot(cmd.Context())
				if err != nil {
					return wrapStoreError("failed to read last glucose", err)
				}
				f := rootOpts.formatter(cmd)
				if m == nil {
					return f.Result(nil, "Aucune glycémie enregistrée.\n")
				}
				return f.Result(viewOf(*m, settings.GlucoseUnit), renderLogLine(*m, settings.GlucoseUnit)+"\n")
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one entry (no error if it is already gone)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", args[0]))
			}
			return withApp(rootOpts, cmd, func(a *app) error {
				if err := a.repo.DeleteLog(cmd.Context(), health.Measurement{ID: id}); err != nil {
					return wrapStoreError("failed to delete entry", err)
				}
				return rootOpts.formatter(cmd).Result(map[string]int64{"deleted": id}, fmt.Sprintf("Supprimé #%d\n", id))
			})
		},
	}
}

// ClearOptions holds flags for the clear command.
type ClearOptions struct {
	*RootOptions
	Yes bool
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClearOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every log entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Yes {
				return NewExitError(ExitCommandError, "refusing to delete all entries without --yes")
			}
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				if err := a.repo.ClearAllLogs(cmd.Context()); err != nil {
					return wrapStoreError("failed to clear history", err)
				}
				return opts.formatter(cmd).Result(map[string]bool{"cleared": true}, "Historique effacé.\n")
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm deletion")

	return cmd
}
