package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

func marketPosition(conditionID string, yesQty, yesCost, noQty, noCost float64) boxtypes.MarketPosition {
	return boxtypes.MarketPosition{
		ConditionID: conditionID,
		YesPosition: boxtypes.Position{Outcome: boxtypes.OutcomeYes, Quantity: yesQty, TotalCost: yesCost},
		NoPosition:  boxtypes.Position{Outcome: boxtypes.OutcomeNo, Quantity: noQty, TotalCost: noCost},
	}
}

func TestEnrichPositionsSkewClassification(t *testing.T) {
	positions := map[string]*boxtypes.MarketPosition{
		"yes-heavy": ptr(marketPosition("yes-heavy", 100, 40, 10, 4)),
		"no-heavy":  ptr(marketPosition("no-heavy", 10, 4, 100, 40)),
		"balanced":  ptr(marketPosition("balanced", 50, 20, 50, 20)),
	}
	questions := map[string]string{
		"yes-heavy": "Will it rain tomorrow?",
	}

	enriched := enrichPositions(positions, questions, 1.2)
	byID := make(map[string]EnrichedPosition, len(enriched))
	for _, e := range enriched {
		byID[e.Position.ConditionID] = e
	}

	require.Len(t, enriched, 3)
	assert.Equal(t, "YES_HEAVY", byID["yes-heavy"].SkewStatus)
	assert.Equal(t, "Will it rain tomorrow?", byID["yes-heavy"].MarketQuestion)
	assert.Equal(t, "NO_HEAVY", byID["no-heavy"].SkewStatus)
	assert.Equal(t, "BALANCED", byID["balanced"].SkewStatus)
	assert.Equal(t, "balanced", byID["balanced"].MarketQuestion, "falls back to condition id when no question is known")
}

func TestEnrichPositionsDefaultsSkewThreshold(t *testing.T) {
	positions := map[string]*boxtypes.MarketPosition{
		"m": ptr(marketPosition("m", 100, 40, 10, 4)),
	}

	enriched := enrichPositions(positions, nil, 0)
	require.Len(t, enriched, 1)
	assert.Equal(t, "YES_HEAVY", enriched[0].SkewStatus, "non-positive threshold should fall back to 1.2")
}

func TestApplySkewFilter(t *testing.T) {
	positions := []EnrichedPosition{
		{SkewStatus: "YES_HEAVY"},
		{SkewStatus: "BALANCED"},
		{SkewStatus: "NO_HEAVY"},
	}

	t.Run("no-filter-keeps-all", func(t *testing.T) {
		skewedOnly = false
		filtered := applySkewFilter(positions)
		assert.Len(t, filtered, 3)
	})

	t.Run("skewed-only-drops-balanced", func(t *testing.T) {
		skewedOnly = true
		filtered := applySkewFilter(positions)
		require.Len(t, filtered, 2)
		for _, p := range filtered {
			assert.NotEqual(t, "BALANCED", p.SkewStatus)
		}
	})

	skewedOnly = false
}

func TestSortPositionsBySpend(t *testing.T) {
	positions := []EnrichedPosition{
		{MarketQuestion: "b", TotalSpent: 10},
		{MarketQuestion: "a", TotalSpent: 50},
		{MarketQuestion: "c", TotalSpent: 30},
	}

	t.Run("alphabetical-by-default", func(t *testing.T) {
		sortBySpend = false
		sortPositions(positions)
		assert.Equal(t, "a", positions[0].MarketQuestion)
		assert.Equal(t, "b", positions[1].MarketQuestion)
		assert.Equal(t, "c", positions[2].MarketQuestion)
	})

	t.Run("by-spend-descending", func(t *testing.T) {
		sortBySpend = true
		sortPositions(positions)
		assert.Equal(t, 50.0, positions[0].TotalSpent)
		assert.Equal(t, 30.0, positions[1].TotalSpent)
		assert.Equal(t, 10.0, positions[2].TotalSpent)
	})

	sortBySpend = false
}

func TestCalculateSummary(t *testing.T) {
	positions := []EnrichedPosition{
		{SkewStatus: "YES_HEAVY", TotalSpent: 10},
		{SkewStatus: "NO_HEAVY", TotalSpent: 20},
		{SkewStatus: "BALANCED", TotalSpent: 5},
		{SkewStatus: "BALANCED", TotalSpent: 5},
	}

	summary := calculateSummary(positions)
	assert.Equal(t, 4, summary.TotalMarkets)
	assert.Equal(t, 1, summary.YesHeavyCount)
	assert.Equal(t, 1, summary.NoHeavyCount)
	assert.Equal(t, 2, summary.BalancedCount)
	assert.Equal(t, 40.0, summary.TotalSpentUSDC)
}

func TestValidateFormatFlag(t *testing.T) {
	t.Run("table-is-valid", func(t *testing.T) {
		outputFormat = "table"
		assert.NoError(t, validateFormatFlag())
	})

	t.Run("json-is-valid", func(t *testing.T) {
		outputFormat = "json"
		assert.NoError(t, validateFormatFlag())
	})

	t.Run("csv-is-valid", func(t *testing.T) {
		outputFormat = "csv"
		assert.NoError(t, validateFormatFlag())
	})

	t.Run("unknown-format-is-rejected", func(t *testing.T) {
		outputFormat = "xml"
		err := validateFormatFlag()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
	})

	outputFormat = "table"
}

func ptr(mp boxtypes.MarketPosition) *boxtypes.MarketPosition {
	return &mp
}
