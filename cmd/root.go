package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "boxmaker",
	Short: "Polymarket binary-market box maker",
	Long: `A market maker for Polymarket's binary-outcome markets that quotes both
the YES and NO legs so their combined cost stays under 1.0 (a "box"),
capturing the spread while earning maker rebates.

The bot polls the Polymarket Gamma API for new markets, subscribes to their
orderbooks via WebSocket, and posts passive bids sized to stay within
configured position limits.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	// Flags can be added here if needed
}
