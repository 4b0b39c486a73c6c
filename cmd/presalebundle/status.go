package main

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show contract status, nonce and the gas price a bundle would pay",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), settings.Timeout)
		defer cancel()

		a, err := newApp(ctx, settings, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		sender := a.signer.Address()
		st, err := a.contract.Status(ctx, sender)
		if err != nil {
			return fmt.Errorf("%w: contract status: %w", bundlecore.ErrChainRead, err)
		}
		head, err := a.chain.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", bundlecore.ErrChainRead, err)
		}
		nonce, err := a.chain.NonceAt(ctx, sender)
		if err != nil {
			return fmt.Errorf("%w: %w", bundlecore.ErrChainRead, err)
		}
		gasPrice, err := a.chain.GasPrice(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", bundlecore.ErrChainRead, err)
		}
		bundlePrice := bundlecore.PremiumGasPrice(gasPrice, a.core.GasPremium)

		logger.WithFields(logrus.Fields{
			"head":           head,
			"presale_active": st.PresaleActive,
			"caller_owner":   st.CallerIsOwner,
		}).Debug("Status read")

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "=== CONTRACT STATUS ===")
		fmt.Fprintln(w, "Contract       :", a.core.Contract.Hex())
		fmt.Fprintln(w, "Chain ID       :", a.core.ChainID.String())
		fmt.Fprintln(w, "Owner          :", st.Owner.Hex())
		fmt.Fprintln(w, "Caller         :", sender.Hex())
		fmt.Fprintln(w, "Caller is owner:", st.CallerIsOwner)
		fmt.Fprintln(w, "Presale active :", st.PresaleActive)
		fmt.Fprintln(w, "Head block     :", head)
		fmt.Fprintln(w, "Nonce          :", nonce)
		fmt.Fprintf(w, "Gas price      : %s gwei (bundle pays %s gwei)\n", bundlecore.FormatGwei(gasPrice), bundlecore.FormatGwei(bundlePrice))
		fmt.Fprintln(w, "Presale value  :", bundlecore.FormatETH(presaleValue(a.core)), "ETH")
		printFeeStats(ctx, w, a)
		fmt.Fprintln(w, "=======================")
		return nil
	},
}

func presaleValue(cfg bundlecore.Config) *big.Int {
	return new(big.Int).Mul(cfg.UnitPrice, cfg.Quantity)
}

var feePercentiles = []float64{50, 95, 99}

// printFeeStats is informational only; a node without eth_feeHistory just
// gets a note.
func printFeeStats(ctx context.Context, w io.Writer, a *app) {
	snap, err := a.chain.FeeStats(ctx, a.settings.NetcheckBlocks, feePercentiles)
	if err != nil {
		fmt.Fprintln(w, "[net] feeHistory error:", err)
		return
	}
	if snap.NextBaseFee != nil {
		fmt.Fprintf(w, "[net] next baseFee: %s gwei\n", bundlecore.FormatGwei(snap.NextBaseFee))
	}
	fmt.Fprintf(w, "[net] reward stats last %d blocks:\n", snap.Blocks)
	for _, p := range feePercentiles {
		st := snap.Rewards[p]
		fmt.Fprintf(w, "  p%-2.0f min/avg/max: %s / %s / %s gwei\n", p, bundlecore.FormatGwei(st.Min), bundlecore.FormatGwei(st.Avg), bundlecore.FormatGwei(st.Max))
	}
}
