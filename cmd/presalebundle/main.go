// Command presalebundle opens a presale and buys into it in the same block
// by sending both calls as one Flashbots bundle.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
