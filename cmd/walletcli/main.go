// Command walletcli is a local-simulation demonstration of the
// threshold-ECDSA core: it drives an n-of-t key generation and a
// subsequent t-of-n signature end to end over in-process frame passing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "walletcli",
	Short: "Local simulation CLI for the threshold-ECDSA wallet core",
}

func main() {
	rootCmd.AddCommand(keygenCmd, signCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
