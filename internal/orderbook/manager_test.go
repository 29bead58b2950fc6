package orderbook

import (
	"context"
	"testing"
	"time"

	"github.com/quietridge/boxmaker/pkg/types"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, chan *types.OrderbookMessage) {
	t.Helper()
	ch := make(chan *types.OrderbookMessage, 16)
	m := New(&Config{Logger: zap.NewNop(), MessageChannel: ch})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		close(ch)
		m.Close()
	})
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return m, ch
}

func drainUpdate(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case <-m.UpdateChan():
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for book update")
	}
}

func TestBookDeltaRemoveAndInsert(t *testing.T) {
	m, ch := newTestManager(t)

	ch <- &types.OrderbookMessage{
		EventType: "book",
		AssetID:   "tok-1",
		Bids: []types.PriceLevel{
			{Price: "0.42", Size: "5"},
			{Price: "0.41", Size: "3"},
		},
	}
	drainUpdate(t, m)

	ch <- &types.OrderbookMessage{
		EventType: "price_change",
		AssetID:   "tok-1",
		Changes: []types.PriceChange{
			{Side: "BUY", Price: "0.41", Size: "0"},
		},
	}
	drainUpdate(t, m)

	book, ok := m.GetSnapshot("tok-1")
	if !ok {
		t.Fatalf("expected a snapshot for tok-1")
	}
	if len(book.Bids) != 1 || book.Bids[0].Price != 0.42 {
		t.Fatalf("bids = %+v, want [{0.42 5}]", book.Bids)
	}

	ch <- &types.OrderbookMessage{
		EventType: "price_change",
		AssetID:   "tok-1",
		Changes: []types.PriceChange{
			{Side: "BUY", Price: "0.43", Size: "2"},
		},
	}
	drainUpdate(t, m)

	book, _ = m.GetSnapshot("tok-1")
	if len(book.Bids) != 2 || book.Bids[0].Price != 0.43 || book.Bids[1].Price != 0.42 {
		t.Fatalf("bids = %+v, want [{0.43 2} {0.42 5}]", book.Bids)
	}
}

func TestBookSnapshotSortsLevels(t *testing.T) {
	m, ch := newTestManager(t)

	ch <- &types.OrderbookMessage{
		EventType: "book",
		AssetID:   "tok-2",
		Bids: []types.PriceLevel{
			{Price: "0.40", Size: "1"},
			{Price: "0.45", Size: "1"},
		},
		Asks: []types.PriceLevel{
			{Price: "0.55", Size: "1"},
			{Price: "0.50", Size: "1"},
		},
	}
	drainUpdate(t, m)

	book, ok := m.GetSnapshot("tok-2")
	if !ok {
		t.Fatalf("expected snapshot")
	}
	if book.Bids[0].Price != 0.45 || book.Bids[1].Price != 0.40 {
		t.Fatalf("bids not sorted descending: %+v", book.Bids)
	}
	if book.Asks[0].Price != 0.50 || book.Asks[1].Price != 0.55 {
		t.Fatalf("asks not sorted ascending: %+v", book.Asks)
	}
}
