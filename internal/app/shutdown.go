package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown cancels the app context, then stops the HTTP server, trading
// loop, order-book manager, feed session, state manager, ledger and cache,
// in that order, logging but not failing on an individual component's
// teardown error.
func (a *App) Shutdown() error {
	a.healthChecker.SetReady(false)
	a.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-failed", zap.Error(err))
	}

	if err := a.tradingLoop.Close(); err != nil {
		a.logger.Error("trading-loop-close-failed", zap.Error(err))
	}

	if err := a.obManager.Close(); err != nil {
		a.logger.Error("orderbook-manager-close-failed", zap.Error(err))
	}

	if err := a.feedSession.Disconnect(5 * time.Second); err != nil {
		a.logger.Error("feed-session-disconnect-failed", zap.Error(err))
	}

	a.stateManager.Stop()

	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Error("ledger-close-failed", zap.Error(err))
		}
	}

	if a.cache != nil {
		a.cache.Close()
	}

	a.wg.Wait()
	a.logger.Info("shutdown-complete")
	return nil
}
