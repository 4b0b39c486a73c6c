package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Build and sign the bundle and run eth_callBundle without submitting",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), settings.Timeout)
		defer cancel()

		a, err := newApp(ctx, settings, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		orch, err := a.orchestrator(bundlecore.NewLogSink(logger))
		if err != nil {
			return err
		}
		bundle, err := orch.Preview(ctx)
		if err != nil {
			return err
		}

		sim, err := a.relay.SimulateBundle(ctx, bundlecore.RawTxs(bundle.Transactions), bundle.TargetBlock)
		if err != nil {
			return fmt.Errorf("%w: simulate: %w", bundlecore.ErrRelayTransport, err)
		}
		printSimulation(cmd.OutOrStdout(), bundle, sim)
		if !sim.OK {
			return fmt.Errorf("simulation failed: %s", friendlySimErr(sim.Error))
		}
		return nil
	},
}
