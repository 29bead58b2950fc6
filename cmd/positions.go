package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/internal/breakeven"
	"github.com/quietridge/boxmaker/internal/discovery"
	"github.com/quietridge/boxmaker/internal/rebate"
	"github.com/quietridge/boxmaker/internal/state"
	"github.com/quietridge/boxmaker/pkg/boxtypes"
	"github.com/quietridge/boxmaker/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Display box positions from the persisted state file",
	Long: `Reads the durable state file the running bot writes every save interval
and reports, per market:

- YES and NO quantities and average costs
- Box cost (yes_avg + no_avg) and profit margin (1 - box_cost)
- Skew status: YES_HEAVY, NO_HEAVY, or BALANCED
- Total USDC spent

Question text is best-effort: this command makes one unauthenticated fetch
of the Gamma API market list to label condition ids, and falls back to the
bare condition id when a market can't be matched (e.g. it has since closed).

Examples:
  # Show all tracked box positions (default table format)
  go run . positions

  # Show only markets currently flagged as skewed
  go run . positions --skewed-only

  # Export to JSON
  go run . positions --format json > positions.json

  # Export to CSV
  go run . positions --format csv > positions.csv

  # Sort by total USDC spent (largest first)
  go run . positions --sort-by-spend`,
	RunE: runPositions,
}

var (
	skewedOnly   bool
	outputFormat string
	sortBySpend  bool
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)

	positionsCmd.Flags().BoolVar(&skewedOnly, "skewed-only", false, "Show only markets flagged YES_HEAVY or NO_HEAVY")
	positionsCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json, csv")
	positionsCmd.Flags().BoolVar(&sortBySpend, "sort-by-spend", false, "Sort positions by total USDC spent (highest first)")
}

// EnrichedPosition extends a persisted MarketPosition with question text and
// derived skew/profit metrics for display.
type EnrichedPosition struct {
	Position boxtypes.MarketPosition

	MarketQuestion string

	SkewRatio    float64
	SkewStatus   string // "YES_HEAVY", "NO_HEAVY", "BALANCED"
	BoxCost      float64
	ProfitMargin float64
	TotalSpent   float64
}

// PositionSummary holds aggregate statistics across every tracked market.
type PositionSummary struct {
	TotalMarkets   int
	YesHeavyCount  int
	NoHeavyCount   int
	BalancedCount  int
	TotalSpentUSDC float64
}

func runPositions(cmd *cobra.Command, args []string) (err error) {
	if err := validateFormatFlag(); err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	stateManager := state.New(state.Config{
		StateFile:         cfg.StateFile,
		EnablePersistence: true,
		Logger:            logger,
	})
	if !stateManager.Load() {
		fmt.Println("No state file found (or it failed to parse) - nothing to display")
		return nil
	}

	snapshot := stateManager.Snapshot()
	if len(snapshot.Positions) == 0 {
		fmt.Println("No positions found")
		return nil
	}

	questions := fetchQuestions(context.Background(), cfg, logger, snapshot.Positions)

	enriched := enrichPositions(snapshot.Positions, questions, cfg.SkewThreshold)
	enriched = applySkewFilter(enriched)
	sortPositions(enriched)

	rebateSummary := rebate.DailyStats{
		Date:            time.Now().UTC().Format("2006-01-02"),
		MakerVolume:     snapshot.TotalMakerVolume,
		EstimatedRebate: snapshot.TotalRebatesEstimate,
		FillCount:       len(snapshot.Fills),
	}

	if err := displayPositions(enriched, snapshot, rebateSummary); err != nil {
		return fmt.Errorf("display positions: %w", err)
	}

	return nil
}

func validateFormatFlag() error {
	validFormats := map[string]bool{"table": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid format: %s (valid: table, json, csv)", outputFormat)
	}
	return nil
}

// fetchQuestions makes one best-effort Gamma API page fetch to label
// condition ids with their market question. A failure here is not fatal -
// the report falls back to bare condition ids.
func fetchQuestions(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	positions map[string]*boxtypes.MarketPosition,
) map[string]string {
	questions := make(map[string]string, len(positions))

	client := discovery.NewClient(cfg.PolymarketGammaURL, logger)
	limit := cfg.DiscoveryMarketLimit
	if limit <= 0 {
		limit = 500
	}

	resp, err := client.ListMarkets(ctx, "", limit)
	if err != nil {
		logger.Warn("market-question-lookup-failed, falling back to condition ids", zap.Error(err))
		return questions
	}

	for i := range resp.Data {
		m := &resp.Data[i]
		if _, tracked := positions[m.ConditionID]; tracked {
			questions[m.ConditionID] = m.Question
		}
	}
	return questions
}

func enrichPositions(
	positions map[string]*boxtypes.MarketPosition,
	questions map[string]string,
	skewThreshold float64,
) []EnrichedPosition {
	if skewThreshold <= 0 {
		skewThreshold = 1.2
	}

	enriched := make([]EnrichedPosition, 0, len(positions))
	for conditionID, pos := range positions {
		question := questions[conditionID]
		if question == "" {
			question = conditionID
		}

		ratio := pos.SkewRatio()
		status := "BALANCED"
		switch {
		case ratio > skewThreshold:
			status = "YES_HEAVY"
		case ratio < 1/skewThreshold:
			status = "NO_HEAVY"
		}

		enriched = append(enriched, EnrichedPosition{
			Position:       *pos,
			MarketQuestion: question,
			SkewRatio:      ratio,
			SkewStatus:     status,
			BoxCost:        pos.BoxCost(),
			ProfitMargin:   breakeven.ProfitMargin(pos.YesPosition.AvgCost(), pos.NoPosition.AvgCost()),
			TotalSpent:     pos.TotalUSDCSpent(),
		})
	}
	return enriched
}

func applySkewFilter(positions []EnrichedPosition) []EnrichedPosition {
	if !skewedOnly {
		return positions
	}

	filtered := make([]EnrichedPosition, 0, len(positions))
	for _, pos := range positions {
		if pos.SkewStatus != "BALANCED" {
			filtered = append(filtered, pos)
		}
	}
	return filtered
}

func sortPositions(positions []EnrichedPosition) {
	if sortBySpend {
		sort.Slice(positions, func(i, j int) bool {
			return positions[i].TotalSpent > positions[j].TotalSpent
		})
		return
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].MarketQuestion < positions[j].MarketQuestion
	})
}

func displayPositions(positions []EnrichedPosition, snapshot boxtypes.BotState, rebateSummary rebate.DailyStats) error {
	switch outputFormat {
	case "table":
		displayTableFormat(positions, snapshot, rebateSummary)
		return nil
	case "json":
		return displayJSONFormat(positions, rebateSummary)
	case "csv":
		return displayCSVFormat(positions)
	default:
		return fmt.Errorf("unknown format: %s", outputFormat)
	}
}

func displayTableFormat(positions []EnrichedPosition, snapshot boxtypes.BotState, rebateSummary rebate.DailyStats) {
	summary := calculateSummary(positions)

	fmt.Printf("Box Positions (%d markets)\n", summary.TotalMarkets)
	fmt.Println("================================================================================")
	fmt.Println()

	for _, pos := range positions {
		displayPosition(pos)
	}

	fmt.Println("SUMMARY")
	fmt.Println("--------------------------------------------------------------------------------")
	fmt.Printf("Markets: %d (%d yes-heavy, %d no-heavy, %d balanced)\n",
		summary.TotalMarkets, summary.YesHeavyCount, summary.NoHeavyCount, summary.BalancedCount)
	fmt.Printf("Total USDC Spent: $%.2f\n", summary.TotalSpentUSDC)
	fmt.Printf("Last Updated: %s\n", snapshot.LastUpdated.Format("2006-01-02 15:04:05 MST"))
	fmt.Println()
	fmt.Printf("Maker Volume: $%.2f | Estimated Rebates: $%.2f | Fills Recorded: %d\n",
		rebateSummary.MakerVolume, rebateSummary.EstimatedRebate, rebateSummary.FillCount)
}

func displayPosition(pos EnrichedPosition) {
	p := pos.Position

	fmt.Printf("[%s] %s\n", pos.SkewStatus, pos.MarketQuestion)
	fmt.Printf("   YES: %.2f shares @ $%.4f avg\n", p.YesPosition.Quantity, p.YesPosition.AvgCost())
	fmt.Printf("   NO:  %.2f shares @ $%.4f avg\n", p.NoPosition.Quantity, p.NoPosition.AvgCost())
	fmt.Printf("   Box Cost: $%.4f | Profit Margin: %.4f | Skew: %.3f\n", pos.BoxCost, pos.ProfitMargin, pos.SkewRatio)
	fmt.Printf("   Total Spent: $%.2f\n", pos.TotalSpent)
	fmt.Println()
}

func calculateSummary(positions []EnrichedPosition) (summary PositionSummary) {
	summary.TotalMarkets = len(positions)

	for _, pos := range positions {
		switch pos.SkewStatus {
		case "YES_HEAVY":
			summary.YesHeavyCount++
		case "NO_HEAVY":
			summary.NoHeavyCount++
		default:
			summary.BalancedCount++
		}
		summary.TotalSpentUSDC += pos.TotalSpent
	}

	return summary
}

func displayJSONFormat(positions []EnrichedPosition, rebateSummary rebate.DailyStats) error {
	type jsonPosition struct {
		ConditionID    string  `json:"condition_id"`
		MarketQuestion string  `json:"market_question"`
		SkewStatus     string  `json:"skew_status"`
		SkewRatio      float64 `json:"skew_ratio"`
		YesQuantity    float64 `json:"yes_quantity"`
		YesAvgCost     float64 `json:"yes_avg_cost"`
		NoQuantity     float64 `json:"no_quantity"`
		NoAvgCost      float64 `json:"no_avg_cost"`
		BoxCost        float64 `json:"box_cost"`
		ProfitMargin   float64 `json:"profit_margin"`
		TotalSpent     float64 `json:"total_spent"`
	}

	type jsonOutput struct {
		Positions     []jsonPosition    `json:"positions"`
		Summary       PositionSummary   `json:"summary"`
		RebateSummary rebate.DailyStats `json:"rebate_summary"`
	}

	output := jsonOutput{
		Positions:     make([]jsonPosition, len(positions)),
		Summary:       calculateSummary(positions),
		RebateSummary: rebateSummary,
	}

	for i, pos := range positions {
		p := pos.Position
		output.Positions[i] = jsonPosition{
			ConditionID:    p.ConditionID,
			MarketQuestion: pos.MarketQuestion,
			SkewStatus:     pos.SkewStatus,
			SkewRatio:      pos.SkewRatio,
			YesQuantity:    p.YesPosition.Quantity,
			YesAvgCost:     p.YesPosition.AvgCost(),
			NoQuantity:     p.NoPosition.Quantity,
			NoAvgCost:      p.NoPosition.AvgCost(),
			BoxCost:        pos.BoxCost,
			ProfitMargin:   pos.ProfitMargin,
			TotalSpent:     pos.TotalSpent,
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func displayCSVFormat(positions []EnrichedPosition) error {
	writer := csv.NewWriter(os.Stdout)
	defer writer.Flush()

	err := writer.Write([]string{
		"ConditionID",
		"Question",
		"SkewStatus",
		"SkewRatio",
		"YesQuantity",
		"YesAvgCost",
		"NoQuantity",
		"NoAvgCost",
		"BoxCost",
		"ProfitMargin",
		"TotalSpent",
	})
	if err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, pos := range positions {
		p := pos.Position
		err = writer.Write([]string{
			p.ConditionID,
			pos.MarketQuestion,
			pos.SkewStatus,
			fmt.Sprintf("%.4f", pos.SkewRatio),
			fmt.Sprintf("%.2f", p.YesPosition.Quantity),
			fmt.Sprintf("%.4f", p.YesPosition.AvgCost()),
			fmt.Sprintf("%.2f", p.NoPosition.Quantity),
			fmt.Sprintf("%.4f", p.NoPosition.AvgCost()),
			fmt.Sprintf("%.4f", pos.BoxCost),
			fmt.Sprintf("%.4f", pos.ProfitMargin),
			fmt.Sprintf("%.2f", pos.TotalSpent),
		})
		if err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}

	return nil
}
