package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
	"github.com/ligun0805/presale-bundle/internal/flashbots"
)

// friendlySimErr normalizes common relay errors for readable CLI.
func friendlySimErr(s string) string {
	ls := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(ls, "unsupported: eth_callbundle"), strings.Contains(ls, "invalid method"), strings.Contains(ls, "method not found"):
		return "simulation not supported by relay"
	case strings.Contains(ls, "insufficient funds for gas"):
		return "insufficient ETH for simulation"
	case strings.Contains(ls, "invalid character '<'"):
		return "non-JSON/HTML response (proxy/cf?)"
	case strings.Contains(ls, "dial tcp"), strings.Contains(ls, "lookup "):
		return "network/DNS error"
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSummary writes the human-readable end-of-run report.
func printSummary(w io.Writer, out *bundlecore.Outcome) {
	fmt.Fprintln(w, "=== BUNDLE RESULT ===")
	fmt.Fprintln(w, "Run ID       :", out.RunID)
	fmt.Fprintln(w, "State        :", out.State)
	if out.BundleID != "" {
		fmt.Fprintln(w, "Bundle hash  :", out.BundleID)
		fmt.Fprintln(w, "Target block :", out.TargetBlock)
	}
	switch {
	case out.State == bundlecore.StateFailed:
		fmt.Fprintln(w, "Error kind   :", out.ErrorKind)
		fmt.Fprintln(w, "Error        :", out.Error)
	case out.Included:
		fmt.Fprintln(w, "Included     : yes, block", out.InclusionBlock)
		for i, h := range out.TxHashes {
			fmt.Fprintf(w, "  tx[%d]      : %s\n", i, h.Hex())
		}
	default:
		fmt.Fprintln(w, "Included     : no")
	}
	if out.Stats != nil && out.Stats.Error != "" {
		fmt.Fprintln(w, "Stats        : unavailable:", out.Stats.Error)
	}
	fmt.Fprintln(w, "=====================")
}

func printSimulation(w io.Writer, bundle bundlecore.Bundle, sim *flashbots.SimResult) {
	fmt.Fprintln(w, "=== SIMULATION ===")
	fmt.Fprintln(w, "Target block :", bundle.TargetBlock)
	for i, tx := range bundle.Transactions {
		fmt.Fprintf(w, "  tx[%d] nonce=%d hash=%s\n", i, tx.Nonce, tx.Hash.Hex())
	}
	if sim.OK {
		fmt.Fprintln(w, "Result       : OK, gas used", sim.TotalGasUsed)
	} else {
		fmt.Fprintln(w, "Result       : FAILED:", friendlySimErr(sim.Error))
	}
	for i, r := range sim.Results {
		status := "ok"
		if r.Error != "" || r.Revert != "" {
			status = "reverted: " + firstNonEmpty(r.Revert, r.Error)
		}
		fmt.Fprintf(w, "  result[%d]  : gas=%d %s\n", i, r.GasUsed, status)
	}
	fmt.Fprintln(w, "==================")
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
