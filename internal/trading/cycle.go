package trading

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/internal/breakeven"
	"github.com/quietridge/boxmaker/internal/execution"
	"github.com/quietridge/boxmaker/internal/quote"
	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

// runCycle executes one cancel-all -> quote -> submit pass across every
// tracked market, the recurring unit spec.md §4.6 describes.
func (l *Loop) runCycle() {
	if l.circuitBreaker != nil && !l.circuitBreaker.IsEnabled() {
		l.logger.Warn("cycle-skipped-circuit-breaker-disabled")
		CyclesSkippedTotal.Inc()
		return
	}

	l.cancelOpenOrders()

	l.pendingMu.Lock()
	l.pending = make(map[string]pendingQuote)
	l.pendingMu.Unlock()

	markets := l.discovery.Markets()
	CycleMarketsTotal.Set(float64(len(markets)))

	var orders []*boxtypes.Quote
	for _, m := range markets {
		quotes := l.quotesForMarket(m)
		for i := range quotes {
			orders = append(orders, &quotes[i])
		}
	}

	if len(orders) == 0 {
		l.logger.Debug("cycle-no-quotes-to-submit")
		return
	}

	l.submitQuotes(orders)
}

// cancelOpenOrders cancels every resting order before re-quoting. Skipped
// entirely in paper-trading mode, where nothing was ever sent to the
// exchange.
func (l *Loop) cancelOpenOrders() {
	if l.cfg.PaperTrading || l.execClient == nil {
		return
	}
	if err := l.execClient.CancelAll(l.ctx); err != nil {
		l.logger.Error("cancel-all-failed", zap.Error(err))
	}
}

// quotesForMarket computes the breakeven ceiling and skew adjustment for one
// market, then asks the quote generator for candidate bids on both legs,
// resizing each against the global position cap.
func (l *Loop) quotesForMarket(m *boxtypes.MarketInfo) []boxtypes.Quote {
	yesBook, okYes := l.books.GetSnapshot(m.YesTokenID)
	noBook, okNo := l.books.GetSnapshot(m.NoTokenID)
	if !okYes && !okNo {
		return nil
	}

	pos := l.inventory.GetOrCreate(m.ConditionID, m.YesTokenID, m.NoTokenID)

	yesPos := breakeven.Position{
		TotalSpend: pos.YesPosition.TotalCost,
		TotalQty:   pos.YesPosition.Quantity,
		AvgCost:    pos.YesPosition.AvgCost(),
	}
	noPos := breakeven.Position{
		TotalSpend: pos.NoPosition.TotalCost,
		TotalQty:   pos.NoPosition.Quantity,
		AvgCost:    pos.NoPosition.AvgCost(),
	}

	maxYesBid := l.breakeven.MaxBid(boxtypes.OutcomeYes, yesPos, noPos, l.cfg.BaseQuoteSize)
	maxNoBid := l.breakeven.MaxBid(boxtypes.OutcomeNo, yesPos, noPos, l.cfg.BaseQuoteSize)

	yesTick, noTick := l.inventory.AdjustmentDirection(m.ConditionID)

	candidates := l.quoteGen.GenerateQuotes(
		quote.Side{TokenID: m.YesTokenID, Outcome: boxtypes.OutcomeYes, Book: yesBook, MaxBid: maxYesBid, TickAdjustment: yesTick},
		quote.Side{TokenID: m.NoTokenID, Outcome: boxtypes.OutcomeNo, Book: noBook, MaxBid: maxNoBid, TickAdjustment: noTick},
	)

	globalSpent := l.inventory.GetAllSpent()
	out := make([]boxtypes.Quote, 0, len(candidates))
	for _, q := range candidates {
		resized, ok := quote.AdjustSizeForPositionLimit(q, globalSpent, l.cfg.MaxPositionUSDC)
		if !ok {
			l.logger.Debug("quote-dropped-position-limit",
				zap.String("condition-id", m.ConditionID),
				zap.String("outcome", string(q.Outcome)))
			continue
		}
		out = append(out, resized)
	}
	return out
}

// submitQuotes sends the batch to the exchange (or fakes an order id in
// paper-trading mode), recording each surviving quote in pendingQuotes keyed
// by its order id so the fill-dispatch goroutine can resolve later fills.
func (l *Loop) submitQuotes(quotes []*boxtypes.Quote) {
	conditionByToken := make(map[string]string, len(quotes))
	for _, q := range quotes {
		if cid, ok := l.discovery.ConditionIDForToken(q.TokenID); ok {
			conditionByToken[q.TokenID] = cid
		}
	}

	if l.cfg.PaperTrading || l.execClient == nil {
		for _, q := range quotes {
			orderID := "paper-" + uuid.NewString()
			q.OrderID = orderID
			l.trackPending(orderID, conditionByToken[q.TokenID], *q)
			l.logger.Info("paper-quote-placed",
				zap.String("token-id", q.TokenID),
				zap.String("outcome", string(q.Outcome)),
				zap.Float64("price", q.Price),
				zap.Float64("size", q.Size),
				zap.String("order-id", orderID))
		}
		QuotesSubmittedTotal.WithLabelValues("paper").Add(float64(len(quotes)))
		return
	}

	signed := make([]*execution.SignedOrderJSON, 0, len(quotes))
	byIndex := make([]*boxtypes.Quote, 0, len(quotes))
	for _, q := range quotes {
		order, err := l.execClient.CreateOrder(q.TokenID, q.Price, q.Size, l.tickSizeFor(q.TokenID))
		if err != nil {
			l.logger.Error("order-build-failed", zap.Error(err), zap.String("token-id", q.TokenID))
			continue
		}
		signed = append(signed, order)
		byIndex = append(byIndex, q)
	}

	if len(signed) == 0 {
		return
	}

	if l.cfg.BatchSize <= 1 || len(signed) <= l.cfg.BatchSize {
		l.submitBatch(signed, byIndex, conditionByToken)
		return
	}

	for start := 0; start < len(signed); start += l.cfg.BatchSize {
		end := start + l.cfg.BatchSize
		if end > len(signed) {
			end = len(signed)
		}
		l.submitBatch(signed[start:end], byIndex[start:end], conditionByToken)
	}
}

func (l *Loop) submitBatch(signed []*execution.SignedOrderJSON, quotes []*boxtypes.Quote, conditionByToken map[string]string) {
	ctx, cancel := context.WithTimeout(l.ctx, 15*time.Second)
	defer cancel()

	if len(signed) == 1 {
		resp, err := l.execClient.PostOrder(ctx, signed[0])
		if err != nil {
			l.logger.Error("order-submission-failed", zap.Error(err))
			return
		}
		l.recordSubmission(resp.Success, resp.OrderID, resp.ErrorMsg, quotes[0], conditionByToken)
		return
	}

	resp, err := l.execClient.PostOrders(ctx, signed)
	if err != nil {
		l.logger.Error("batch-submission-failed", zap.Error(err))
		return
	}
	for i, r := range resp {
		if i >= len(quotes) {
			break
		}
		l.recordSubmission(r.Success, r.OrderID, r.ErrorMsg, quotes[i], conditionByToken)
	}
}

func (l *Loop) recordSubmission(success bool, orderID, errMsg string, q *boxtypes.Quote, conditionByToken map[string]string) {
	if !success {
		l.logger.Warn("order-rejected", zap.String("token-id", q.TokenID), zap.String("reason", errMsg))
		QuotesSubmittedTotal.WithLabelValues("rejected").Inc()
		return
	}
	q.OrderID = orderID
	l.trackPending(orderID, conditionByToken[q.TokenID], *q)
	QuotesSubmittedTotal.WithLabelValues("live").Inc()
}

func (l *Loop) trackPending(orderID, conditionID string, q boxtypes.Quote) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	l.pending[orderID] = pendingQuote{
		ConditionID: conditionID,
		TokenID:     q.TokenID,
		Outcome:     q.Outcome,
		Price:       q.Price,
		Size:        q.Size,
	}
}

// tickSizeFor returns the tick size for a token's market, falling back to
// the penny grid when the market is not tracked by discovery (should not
// happen for a quote the loop itself generated).
func (l *Loop) tickSizeFor(tokenID string) float64 {
	conditionID, ok := l.discovery.ConditionIDForToken(tokenID)
	if !ok {
		return 0.01
	}
	for _, m := range l.discovery.Markets() {
		if m.ConditionID == conditionID {
			return m.MinTickSize
		}
	}
	return 0.01
}
