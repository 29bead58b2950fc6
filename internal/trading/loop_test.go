package trading

import (
	"context"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/internal/breakeven"
	"github.com/quietridge/boxmaker/internal/discovery"
	"github.com/quietridge/boxmaker/internal/inventory"
	"github.com/quietridge/boxmaker/internal/orderbook"
	"github.com/quietridge/boxmaker/internal/quote"
	"github.com/quietridge/boxmaker/pkg/boxtypes"
	"github.com/quietridge/boxmaker/pkg/types"
)

func newTestLoop(t *testing.T, books *orderbook.Manager, disc *discovery.Service) *Loop {
	t.Helper()

	inv := inventory.New(1.2, zap.NewNop())
	be := breakeven.New(0.99, 0.005, zap.NewNop())
	qg := quote.New(quote.Config{TickSize: 0.01, BaseSize: 10, MinPrice: 0.01, MaxPrice: 0.99}, zap.NewNop())

	return New(Config{
		QuoteRefresh:    time.Second,
		MaxPositionUSDC: 1000,
		BatchSize:       5,
		PaperTrading:    true,
	}, Deps{
		Discovery: disc,
		Books:     books,
		Inventory: inv,
		Breakeven: be,
		QuoteGen:  qg,
		Logger:    zap.NewNop(),
	})
}

func emptyDiscovery() *discovery.Service {
	return discovery.New(&discovery.Config{
		PollInterval: time.Minute,
		MarketLimit:  100,
		MinPrice:     0.01,
		MaxPrice:     0.99,
		Logger:       zap.NewNop(),
	})
}

// seededBooks builds a single orderbook.Manager seeded with one bid level
// per token, by pushing "book" messages through its real message channel and
// polling until every snapshot appears.
func seededBooks(t *testing.T, bids map[string]float64) *orderbook.Manager {
	t.Helper()

	msgChan := make(chan *types.OrderbookMessage, len(bids)+1)
	mgr := orderbook.New(&orderbook.Config{Logger: zap.NewNop(), MessageChannel: msgChan})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("start orderbook manager: %v", err)
	}

	for tokenID, price := range bids {
		msgChan <- &types.OrderbookMessage{
			EventType: "book",
			AssetID:   tokenID,
			Bids: []types.PriceLevel{
				{Price: strconv.FormatFloat(price, 'f', -1, 64), Size: "100"},
			},
		}
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		allPresent := true
		for tokenID := range bids {
			if _, ok := mgr.GetSnapshot(tokenID); !ok {
				allPresent = false
				break
			}
		}
		if allPresent {
			return mgr
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("orderbook snapshots never appeared for %v", bids)
	return nil
}

func TestQuotesForMarketStaysWithinPriceBand(t *testing.T) {
	books := seededBooks(t, map[string]float64{"yes-token": 0.60, "no-token": 0.45})
	l := newTestLoop(t, books, emptyDiscovery())

	market := &boxtypes.MarketInfo{
		ConditionID: "cond-1",
		YesTokenID:  "yes-token",
		NoTokenID:   "no-token",
		MinTickSize: 0.01,
	}

	quotes := l.quotesForMarket(market)
	if len(quotes) == 0 {
		t.Fatalf("expected at least one quote, got none")
	}
	for _, q := range quotes {
		if q.Price <= 0 || q.Price >= 1 {
			t.Errorf("quote price out of band: %v", q.Price)
		}
	}
}

func TestQuotesForMarketSkipsUnknownBooks(t *testing.T) {
	books := seededBooks(t, nil)
	l := newTestLoop(t, books, emptyDiscovery())

	market := &boxtypes.MarketInfo{ConditionID: "cond-2", YesTokenID: "missing-yes", NoTokenID: "missing-no"}
	quotes := l.quotesForMarket(market)
	if quotes != nil {
		t.Errorf("expected no quotes for untracked books, got %v", quotes)
	}
}

func TestSubmitQuotesPaperTradingAssignsOrderIDs(t *testing.T) {
	books := seededBooks(t, nil)
	l := newTestLoop(t, books, emptyDiscovery())

	q := &boxtypes.Quote{TokenID: "yes-token", Outcome: boxtypes.OutcomeYes, Side: boxtypes.SideBuy, Price: 0.5, Size: 10}
	l.submitQuotes([]*boxtypes.Quote{q})

	if q.OrderID == "" {
		t.Fatalf("expected paper trading to assign an order id")
	}

	l.pendingMu.Lock()
	_, tracked := l.pending[q.OrderID]
	l.pendingMu.Unlock()
	if !tracked {
		t.Errorf("expected order id %s to be tracked as pending", q.OrderID)
	}
}

func TestTakePendingRemovesEntry(t *testing.T) {
	l := newTestLoop(t, seededBooks(t, nil), emptyDiscovery())
	l.trackPending("order-1", "cond-1", boxtypes.Quote{TokenID: "tok-1", Outcome: boxtypes.OutcomeYes, Price: 0.5, Size: 10})

	p, ok := l.takePending("order-1")
	if !ok {
		t.Fatalf("expected pending entry to be found")
	}
	if p.ConditionID != "cond-1" {
		t.Errorf("condition id = %q, want cond-1", p.ConditionID)
	}

	if _, ok := l.takePending("order-1"); ok {
		t.Errorf("expected entry to be removed after first take")
	}
}

func TestParseFillParsesStringFields(t *testing.T) {
	msg := &types.UserMessage{
		OrderID:   "order-1",
		Status:    "MATCHED",
		Side:      "buy",
		Price:     "0.42",
		Size:      "10",
		Maker:     true,
		Timestamp: "1700000000000",
	}
	pending := pendingQuote{ConditionID: "cond-1", TokenID: "tok-1", Outcome: boxtypes.OutcomeYes}

	fill, err := parseFill(msg, pending)
	if err != nil {
		t.Fatalf("parseFill: %v", err)
	}
	if fill.Price != 0.42 || fill.Size != 10 {
		t.Errorf("fill = %+v, want price 0.42 size 10", fill)
	}
	if !fill.Maker {
		t.Errorf("expected maker fill")
	}
	if fill.Side != boxtypes.SideBuy {
		t.Errorf("side = %q, want BUY", fill.Side)
	}
}

func TestOutcomeFromLabel(t *testing.T) {
	if outcomeFromLabel("No") != boxtypes.OutcomeNo {
		t.Errorf("expected NO outcome for label 'No'")
	}
	if outcomeFromLabel("Yes") != boxtypes.OutcomeYes {
		t.Errorf("expected YES outcome for label 'Yes'")
	}
}
