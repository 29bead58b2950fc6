package cmd

import (
	"fmt"

	"github.com/quietridge/boxmaker/internal/app"
	"github.com/quietridge/boxmaker/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the box-maker bot",
	Long: `Starts the box-maker bot, which will:
1. Discover new binary-outcome markets from the Gamma API
2. Subscribe to their YES/NO orderbooks via WebSocket
3. Quote both legs so their combined cost stays under breakeven (the "box")
4. Log quotes without submitting them in paper trading mode, or submit them
   live against the CLOB and track their fills

Use --single-market to track only markets whose question contains the given
text, for debugging.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("single-market", "s", "", "Track only markets whose question contains this text (for debugging)")
}

func runBot(cmd *cobra.Command, args []string) error {
	// Load config
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Get flags
	singleMarket, _ := cmd.Flags().GetString("single-market")

	// Create app with options
	opts := &app.Options{
		SingleMarket: singleMarket,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
