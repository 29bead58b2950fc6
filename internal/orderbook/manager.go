// Package orderbook maintains the full L2 book per token from the feed's
// "book" snapshots and "price_change" deltas, fusing a channel-fed Manager
// shape with a tolerance-based delta-application algorithm for price levels.
package orderbook

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
	"github.com/quietridge/boxmaker/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// priceTolerance is how close two prices must be to be treated as the same
// level when diffing price_change messages.
const priceTolerance = 0.0001

// Manager maintains full L2 books for every subscribed token.
type Manager struct {
	books      map[string]*boxtypes.OrderBook // key: token_id
	mu         sync.RWMutex
	logger     *zap.Logger
	msgChan    <-chan *types.OrderbookMessage
	updateChan chan *boxtypes.OrderBook
	ctx        context.Context
	wg         sync.WaitGroup
}

// Config holds orderbook manager configuration.
type Config struct {
	Logger         *zap.Logger
	MessageChannel <-chan *types.OrderbookMessage
}

// New creates a new orderbook manager.
func New(cfg *Config) *Manager {
	return &Manager{
		books:      make(map[string]*boxtypes.OrderBook),
		logger:     cfg.Logger,
		msgChan:    cfg.MessageChannel,
		updateChan: make(chan *boxtypes.OrderBook, 100000), // buffer for high update rate
	}
}

// Start launches the message-processing goroutine.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx = ctx
	m.logger.Info("orderbook-manager-starting")

	m.wg.Add(1)
	go m.processMessages()

	return nil
}

func (m *Manager) processMessages() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("orderbook-manager-stopping")
			return
		case msg, ok := <-m.msgChan:
			if !ok {
				m.logger.Info("message-channel-closed")
				return
			}
			if err := m.handleMessage(msg); err != nil {
				m.logger.Warn("handle-message-error",
					zap.Error(err),
					zap.String("event-type", msg.EventType),
					zap.String("asset-id", msg.AssetID))
			}
		}
	}
}

func (m *Manager) handleMessage(msg *types.OrderbookMessage) error {
	timer := prometheus.NewTimer(UpdateProcessingDuration)
	defer timer.ObserveDuration()

	UpdatesTotal.WithLabelValues(msg.EventType).Inc()

	switch msg.EventType {
	case "book":
		return m.handleBookMessage(msg)
	case "price_change":
		return m.handlePriceChangeMessage(msg)
	case "trade":
		// Trades don't change book state directly; the trading loop
		// consumes fills from the user channel instead.
		return nil
	case "subscribed":
		m.logger.Info("feed-subscribed", zap.String("asset-id", msg.AssetID))
		return nil
	case "error":
		return fmt.Errorf("feed error: %s", msg.Message)
	default:
		return nil
	}
}

func (m *Manager) handleBookMessage(msg *types.OrderbookMessage) error {
	bids, err := parseLevels(msg.Bids)
	if err != nil {
		return fmt.Errorf("parse bids: %w", err)
	}
	asks, err := parseLevels(msg.Asks)
	if err != nil {
		return fmt.Errorf("parse asks: %w", err)
	}

	sortBids(bids)
	sortAsks(asks)

	book := &boxtypes.OrderBook{
		TokenID:   msg.AssetID,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now(),
	}

	lockStart := time.Now()
	m.mu.Lock()
	LockContentionDuration.Observe(time.Since(lockStart).Seconds())
	m.books[msg.AssetID] = book
	SnapshotsTracked.Set(float64(len(m.books)))
	m.mu.Unlock()

	m.logger.Debug("orderbook-snapshot-updated",
		zap.String("token-id", msg.AssetID),
		zap.Int("bid-levels", len(bids)),
		zap.Int("ask-levels", len(asks)))

	m.publish(book)
	return nil
}

func (m *Manager) handlePriceChangeMessage(msg *types.OrderbookMessage) error {
	m.mu.Lock()
	book, exists := m.books[msg.AssetID]
	if !exists {
		book = &boxtypes.OrderBook{
			TokenID: msg.AssetID,
			Bids:    make([]boxtypes.OrderBookLevel, 0),
			Asks:    make([]boxtypes.OrderBookLevel, 0),
		}
		m.books[msg.AssetID] = book
		SnapshotsTracked.Set(float64(len(m.books)))
	}

	for _, change := range msg.Changes {
		price, err := strconv.ParseFloat(change.Price, 64)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("parse change price: %w", err)
		}
		size, err := strconv.ParseFloat(change.Size, 64)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("parse change size: %w", err)
		}

		switch change.Side {
		case "BUY":
			book.Bids = updateLevel(book.Bids, price, size, false)
		case "SELL":
			book.Asks = updateLevel(book.Asks, price, size, true)
		default:
			m.logger.Warn("unknown-price-change-side", zap.String("side", change.Side))
		}
	}
	book.Timestamp = time.Now()
	bookCopy := copyBook(book)
	m.mu.Unlock()

	m.logger.Debug("orderbook-price-changed",
		zap.String("token-id", msg.AssetID),
		zap.Int("changes", len(msg.Changes)))

	m.publish(bookCopy)
	return nil
}

// updateLevel applies one price/size delta to a sorted level slice: a
// level within priceTolerance of price is removed if size<=0, updated if
// size>0; otherwise a new level is inserted and the slice is re-sorted.
// ascending controls ask (true) vs bid (false) order, matching
// OrderBookManager._update_level.
func updateLevel(levels []boxtypes.OrderBookLevel, price, size float64, ascending bool) []boxtypes.OrderBookLevel {
	idx := -1
	for i, lvl := range levels {
		if abs(lvl.Price-price) < priceTolerance {
			idx = i
			break
		}
	}

	switch {
	case idx >= 0 && size <= 0:
		levels = append(levels[:idx], levels[idx+1:]...)
	case idx >= 0:
		levels[idx].Size = boxtypes.Round4(size)
	case size > 0:
		levels = append(levels, boxtypes.NewLevel(price, size))
		if ascending {
			sortAsks(levels)
		} else {
			sortBids(levels)
		}
	}
	return levels
}

func parseLevels(raw []types.PriceLevel) ([]boxtypes.OrderBookLevel, error) {
	levels := make([]boxtypes.OrderBookLevel, 0, len(raw))
	for _, l := range raw {
		price, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		size, err := strconv.ParseFloat(l.Size, 64)
		if err != nil {
			return nil, fmt.Errorf("parse size: %w", err)
		}
		levels = append(levels, boxtypes.NewLevel(price, size))
	}
	return levels, nil
}

func sortBids(levels []boxtypes.OrderBookLevel) {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
}

func sortAsks(levels []boxtypes.OrderBookLevel) {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func copyBook(b *boxtypes.OrderBook) *boxtypes.OrderBook {
	out := &boxtypes.OrderBook{
		TokenID:   b.TokenID,
		Timestamp: b.Timestamp,
		Bids:      make([]boxtypes.OrderBookLevel, len(b.Bids)),
		Asks:      make([]boxtypes.OrderBookLevel, len(b.Asks)),
	}
	copy(out.Bids, b.Bids)
	copy(out.Asks, b.Asks)
	return out
}

func (m *Manager) publish(book *boxtypes.OrderBook) {
	select {
	case m.updateChan <- book:
	default:
		m.logger.Error("CRITICAL-orderbook-update-channel-full-DROPPING-DATA",
			zap.String("token-id", book.TokenID),
			zap.Int("buffer-size", cap(m.updateChan)))
		UpdatesDroppedTotal.WithLabelValues("channel_full").Inc()
	}
}

// GetSnapshot returns a copy of the book for tokenID.
func (m *Manager) GetSnapshot(tokenID string) (*boxtypes.OrderBook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	book, exists := m.books[tokenID]
	if !exists {
		return nil, false
	}
	return copyBook(book), true
}

// GetAllSnapshots returns a copy of every tracked book.
func (m *Manager) GetAllSnapshots() map[string]*boxtypes.OrderBook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*boxtypes.OrderBook, len(m.books))
	for tokenID, book := range m.books {
		out[tokenID] = copyBook(book)
	}
	return out
}

// UpdateChan returns the channel publishing book updates.
func (m *Manager) UpdateChan() <-chan *boxtypes.OrderBook {
	return m.updateChan
}

// Close waits for the processing goroutine to exit and closes the update channel.
func (m *Manager) Close() error {
	m.logger.Info("closing-orderbook-manager")
	m.wg.Wait()
	close(m.updateChan)
	m.logger.Info("orderbook-manager-closed")
	return nil
}
