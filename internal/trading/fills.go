package trading

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
	"github.com/quietridge/boxmaker/pkg/types"
)

// runFillDispatch reads matched fills off the user feed and folds each into
// inventory, durable state, the rebate tracker, and the optional ledger,
// dropping anything whose order id it never submitted.
func (l *Loop) runFillDispatch() {
	defer l.wg.Done()

	ch := l.feedSession.FillMessages()
	for {
		select {
		case <-l.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.handleFillMessage(msg)
		}
	}
}

// handleFillMessage applies one matched user-channel message. Non-match
// statuses (e.g. CANCELLED acks) are dropped silently; fills for an order id
// with no pending entry are logged and dropped — the exchange is the source
// of truth for open orders, never this map (spec.md §9 design note).
func (l *Loop) handleFillMessage(msg *types.UserMessage) {
	if !strings.EqualFold(msg.Status, "MATCHED") {
		return
	}

	pending, ok := l.takePending(msg.OrderID)
	if !ok {
		l.logger.Warn("fill-for-unknown-order", zap.String("order-id", msg.OrderID))
		FillsUnmatchedTotal.Inc()
		return
	}

	fill, err := parseFill(msg, pending)
	if err != nil {
		l.logger.Error("fill-parse-failed", zap.Error(err), zap.String("order-id", msg.OrderID))
		return
	}

	l.inventory.RecordFill(pending.ConditionID, fill)
	l.stateManager.RecordFill(fill)

	if l.circuitBreaker != nil {
		l.circuitBreaker.RecordFill(fill.Notional())
	}
	if l.rebateTracker != nil {
		l.rebateTracker.RecordFill(fill.Notional(), fill.Maker, fill.Timestamp)
	}
	if l.ledger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.ledger.RecordFill(ctx, pending.ConditionID, fill); err != nil {
			l.logger.Error("ledger-record-fill-failed", zap.Error(err))
		}
		cancel()
	}

	FillsProcessedTotal.Inc()
	l.logger.Info("fill-processed",
		zap.String("condition-id", pending.ConditionID),
		zap.String("outcome", string(fill.Outcome)),
		zap.Float64("price", fill.Price),
		zap.Float64("size", fill.Size),
		zap.Bool("maker", fill.Maker))
}

// takePending looks up and removes a pending quote by order id. Not found
// when the fill belongs to an order placed before the latest cycle's
// cancel-all (runCycle clears the pending map each cycle), in a prior
// process lifetime, or one this loop never tracked.
func (l *Loop) takePending(orderID string) (pendingQuote, bool) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	p, ok := l.pending[orderID]
	if ok {
		delete(l.pending, orderID)
	}
	return p, ok
}

func parseFill(msg *types.UserMessage, pending pendingQuote) (boxtypes.Fill, error) {
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return boxtypes.Fill{}, err
	}
	size, err := strconv.ParseFloat(msg.Size, 64)
	if err != nil {
		return boxtypes.Fill{}, err
	}

	ts := time.Now()
	if msg.Timestamp != "" {
		if ms, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
			ts = time.UnixMilli(ms)
		}
	}

	outcome := pending.Outcome
	if outcome == "" {
		outcome = outcomeFromLabel(msg.Outcome)
	}

	side := boxtypes.Side(strings.ToUpper(msg.Side))
	if side == "" {
		side = boxtypes.SideBuy
	}

	return boxtypes.Fill{
		OrderID:   msg.OrderID,
		TokenID:   pending.TokenID,
		Outcome:   outcome,
		Side:      side,
		Price:     price,
		Size:      size,
		Timestamp: ts,
		Maker:     msg.Maker,
	}, nil
}

func outcomeFromLabel(label string) boxtypes.Outcome {
	if strings.EqualFold(label, "no") {
		return boxtypes.OutcomeNo
	}
	return boxtypes.OutcomeYes
}
