package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/santelocale/healthlog/internal/health"
	"github.com/santelocale/healthlog/internal/live"
)

// Streams accepted by the watch command.
const (
	streamLogs  = "logs"
	streamLast  = "last"
	streamFoods = "foods"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [logs|last|foods]",
		Short: "Print a live view that refreshes on every change",
		Long: `Print the current snapshot of a view, then a new one whenever an entry
is recorded or deleted, by this or any other santelocale process using the
same data directory. Changes from other processes are picked up within
about half a second. With --format json each snapshot is one JSON line.

Press Ctrl-C to stop.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{streamLogs, streamLast, streamFoods},
		RunE: func(cmd *cobra.Command, args []string) error {
			stream := streamLogs
			if len(args) == 1 {
				stream = args[0]
			}
			return withApp(rootOpts, cmd, func(a *app) error {
				ctx, stop := signalContext(cmd.Context())
				defer stop()
				return runWatch(ctx, a, rootOpts, cmd.OutOrStdout(), stream)
			})
		},
	}

	return cmd
}

// signalContext is cancelled on SIGINT/SIGTERM or when parent ends.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func runWatch(ctx context.Context, a *app, opts *RootOptions, w io.Writer, stream string) error {
	settings, err := a.settings()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read settings", err)
	}
	unit := settings.GlucoseUnit

	switch stream {
	case streamLogs:
		sub, err := a.repo.AllLogs(ctx)
		if err != nil {
			return wrapStoreError("failed to watch history", err)
		}
		return drain(sub, w, opts.Format, func(logs []health.Measurement) (any, string) {
			return viewsOf(logs, unit), renderLogs(logs, unit)
		})
	case streamLast:
		sub, err := a.repo.LastGlucose(ctx)
		if err != nil {
			return wrapStoreError("failed to watch last glucose", err)
		}
		return drain(sub, w, opts.Format, func(m *health.Measurement) (any, string) {
			if m == nil {
				return nil, "Aucune glycémie enregistrée.\n"
			}
			return viewOf(*m, unit), renderLogLine(*m, unit) + "\n"
		})
	case streamFoods:
		sub, err := a.repo.AllFoods(ctx)
		if err != nil {
			return wrapStoreError("failed to watch food guide", err)
		}
		return drain(sub, w, opts.Format, func(foods []health.FoodReference) (any, string) {
			return foods, renderFoods(foods)
		})
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("unknown stream %q: want logs, last or foods", stream))
}

// drain prints every snapshot until the subscription ends.
func drain[T any](sub *live.Subscription[T], w io.Writer, format string, render func(T) (any, string)) error {
	defer sub.Close()

	enc := json.NewEncoder(w)
	for snapshot := range sub.C() {
		data, text := render(snapshot)
		if format == "json" {
			if err := enc.Encode(data); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "--\n%s", text); err != nil {
			return err
		}
	}
	if err := sub.Err(); err != nil {
		return wrapStoreError("live view stopped", err)
	}
	return nil
}
