package app

import (
	"strings"

	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

// handleNewMarkets subscribes the feed session to every newly discovered
// market's YES/NO token pair and seeds its inventory position, applying the
// optional single-market debug filter.
func (a *App) handleNewMarkets() {
	defer a.wg.Done()

	ch := a.discoveryService.NewMarketsChan()
	for {
		select {
		case <-a.ctx.Done():
			return
		case market, ok := <-ch:
			if !ok {
				return
			}
			a.subscribeToMarket(market)
		}
	}
}

func (a *App) subscribeToMarket(market *boxtypes.MarketInfo) {
	if a.opts.SingleMarket != "" && !strings.Contains(market.Question, a.opts.SingleMarket) {
		return
	}

	if market.YesTokenID == "" || market.NoTokenID == "" {
		a.logger.Warn("market-missing-tokens", zap.String("condition-id", market.ConditionID))
		return
	}

	a.inventoryTracker.GetOrCreate(market.ConditionID, market.YesTokenID, market.NoTokenID)

	if err := a.feedSession.Subscribe([]string{market.YesTokenID, market.NoTokenID}); err != nil {
		a.logger.Error("market-subscribe-failed",
			zap.String("condition-id", market.ConditionID), zap.Error(err))
		return
	}

	a.logger.Info("market-subscribed",
		zap.String("condition-id", market.ConditionID),
		zap.String("question", market.Question))
}
