package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
	"github.com/ligun0805/presale-bundle/internal/metrics"
)

const pushTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build, sign and submit the bundle, then watch for inclusion",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), settings.Timeout)
		defer cancel()
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, settings, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		sinks := bundlecore.MultiSink{bundlecore.NewLogSink(logger)}
		var promSink *metrics.Sink
		if settings.PushgatewayURL != "" {
			promSink = metrics.NewSink(logger)
			sinks = append(sinks, promSink)
		}

		orch, err := a.orchestrator(sinks)
		if err != nil {
			return err
		}

		out, runErr := orch.Run(ctx)

		if promSink != nil {
			pushCtx, pushCancel := context.WithTimeout(context.Background(), pushTimeout)
			if err := promSink.Push(pushCtx, settings.PushgatewayURL, "presalebundle", out.RunID); err != nil {
				logger.WithError(err).Warn("Failed to push metrics")
			}
			pushCancel()
		}

		printSummary(cmd.ErrOrStderr(), out)
		if runErr != nil {
			return runErr
		}
		return writeJSON(cmd.OutOrStdout(), out)
	},
}
