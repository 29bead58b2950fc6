package discovery

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/types"
)

func newTestService(t *testing.T, minPrice, maxPrice float64, targets []string) *Service {
	t.Helper()
	return New(&Config{
		Client:       NewClient("https://gamma-api.polymarket.com", zap.NewNop()),
		PollInterval: time.Minute,
		MarketLimit:  100,
		MinPrice:     minPrice,
		MaxPrice:     maxPrice,
		TargetAssets: targets,
		Logger:       zap.NewNop(),
	})
}

func eligibleMarket(conditionID string, yesPrice, noPrice float64) types.Market {
	return types.Market{
		ID:          conditionID,
		ConditionID: conditionID,
		Question:    "Will BTC exceed 100k?",
		Active:      true,
		Closed:      false,
		Tokens: []types.Token{
			{TokenID: "yes-" + conditionID, Outcome: "Yes", Price: yesPrice, TickSize: 0.01},
			{TokenID: "no-" + conditionID, Outcome: "No", Price: noPrice, TickSize: 0.01},
		},
	}
}

func TestApplyEligibility_AcceptsWellFormedBinaryMarket(t *testing.T) {
	s := newTestService(t, 0.2, 0.8, nil)
	out := s.applyEligibility([]types.Market{eligibleMarket("c1", 0.4, 0.55)})

	if len(out) != 1 {
		t.Fatalf("expected 1 eligible market, got %d", len(out))
	}
	if out[0].ConditionID != "c1" {
		t.Errorf("expected condition id c1, got %s", out[0].ConditionID)
	}
}

func TestApplyEligibility_RejectsInactiveOrClosed(t *testing.T) {
	s := newTestService(t, 0.2, 0.8, nil)

	inactive := eligibleMarket("c1", 0.4, 0.55)
	inactive.Active = false

	closed := eligibleMarket("c2", 0.4, 0.55)
	closed.Closed = true

	out := s.applyEligibility([]types.Market{inactive, closed})
	if len(out) != 0 {
		t.Fatalf("expected 0 eligible markets, got %d", len(out))
	}
}

func TestApplyEligibility_RejectsInsufficientTokens(t *testing.T) {
	s := newTestService(t, 0.2, 0.8, nil)

	m := eligibleMarket("c1", 0.4, 0.55)
	m.Tokens = m.Tokens[:1]

	out := s.applyEligibility([]types.Market{m})
	if len(out) != 0 {
		t.Fatalf("expected 0 eligible markets, got %d", len(out))
	}
}

func TestApplyEligibility_RejectsMissingOutcomeLabel(t *testing.T) {
	s := newTestService(t, 0.2, 0.8, nil)

	m := eligibleMarket("c1", 0.4, 0.55)
	m.Tokens[1].Outcome = "Maybe"

	out := s.applyEligibility([]types.Market{m})
	if len(out) != 0 {
		t.Fatalf("expected 0 eligible markets, got %d", len(out))
	}
}

func TestApplyEligibility_RejectsOutsidePriceBand(t *testing.T) {
	s := newTestService(t, 0.2, 0.8, nil)

	out := s.applyEligibility([]types.Market{eligibleMarket("c1", 0.05, 0.95)})
	if len(out) != 0 {
		t.Fatalf("expected 0 eligible markets outside price band, got %d", len(out))
	}
}

func TestApplyEligibility_FiltersByTargetAssets(t *testing.T) {
	s := newTestService(t, 0.2, 0.8, []string{"ETH"})

	out := s.applyEligibility([]types.Market{eligibleMarket("c1", 0.4, 0.55)})
	if len(out) != 0 {
		t.Fatalf("expected market mentioning BTC to be filtered when targeting ETH, got %d", len(out))
	}
}

func TestApplyEligibility_SkipsAlreadyTrackedMarkets(t *testing.T) {
	s := newTestService(t, 0.2, 0.8, nil)
	m := eligibleMarket("c1", 0.4, 0.55)

	first := s.applyEligibility([]types.Market{m})
	for _, info := range first {
		s.addMarket(info)
	}

	second := s.applyEligibility([]types.Market{m})
	if len(second) != 0 {
		t.Fatalf("expected already-tracked market to be skipped, got %d", len(second))
	}
}

func TestAddMarket_BuildsTokenIndex(t *testing.T) {
	s := newTestService(t, 0.2, 0.8, nil)
	infos := s.applyEligibility([]types.Market{eligibleMarket("c1", 0.4, 0.55)})
	s.addMarket(infos[0])

	conditionID, ok := s.ConditionIDForToken("yes-c1")
	if !ok || conditionID != "c1" {
		t.Fatalf("expected yes token to resolve to c1, got %s, %v", conditionID, ok)
	}
	conditionID, ok = s.ConditionIDForToken("no-c1")
	if !ok || conditionID != "c1" {
		t.Fatalf("expected no token to resolve to c1, got %s, %v", conditionID, ok)
	}
}

func TestRemoveMarket_ClearsTokenIndex(t *testing.T) {
	s := newTestService(t, 0.2, 0.8, nil)
	infos := s.applyEligibility([]types.Market{eligibleMarket("c1", 0.4, 0.55)})
	s.addMarket(infos[0])

	s.RemoveMarket("c1")

	if _, ok := s.ConditionIDForToken("yes-c1"); ok {
		t.Fatal("expected token index entry to be removed")
	}
	if len(s.Markets()) != 0 {
		t.Fatalf("expected 0 tracked markets after removal, got %d", len(s.Markets()))
	}
}
