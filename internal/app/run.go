package app

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/feed"
)

// Run starts every component and blocks until the process receives a
// shutdown signal or its context is otherwise canceled.
func (a *App) Run() error {
	a.logger.Info("starting-box-maker",
		zap.Bool("paper_trading", a.cfg.PaperTrading),
		zap.String("storage_mode", a.cfg.StorageMode))

	a.startComponents()
	a.healthChecker.SetReady(true)
	a.waitForShutdown()

	return nil
}

func (a *App) startComponents() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("http-server-starting", zap.String("port", a.cfg.HTTPPort))
		if err := a.httpServer.Start(); err != nil {
			a.logger.Error("http-server-stopped", zap.Error(err))
		}
	}()

	if !a.cfg.PaperTrading {
		creds := feed.Credentials{
			APIKey:     a.cfg.PolymarketAPIKey,
			APISecret:  a.cfg.PolymarketSecret,
			Passphrase: a.cfg.PolymarketPassphrase,
		}
		if err := a.feedSession.SubscribeUser(creds); err != nil {
			a.logger.Error("feed-user-subscribe-failed", zap.Error(err))
		}
	}

	if err := a.feedSession.Start(); err != nil {
		a.logger.Error("feed-session-start-failed", zap.Error(err))
	}

	a.wg.Add(1)
	go a.runDiscovery()

	a.wg.Add(1)
	go a.handleNewMarkets()

	if err := a.obManager.Start(a.ctx); err != nil {
		a.logger.Error("orderbook-manager-start-failed", zap.Error(err))
	}

	a.stateManager.Start(a.ctx)

	if err := a.tradingLoop.Start(a.ctx); err != nil {
		a.logger.Error("trading-loop-start-failed", zap.Error(err))
	}
}

func (a *App) runDiscovery() {
	defer a.wg.Done()
	if err := a.discoveryService.Run(a.ctx); err != nil && a.ctx.Err() == nil {
		a.logger.Error("discovery-service-stopped", zap.Error(err))
	}
}

func (a *App) waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-canceled")
	}

	if err := a.Shutdown(); err != nil {
		a.logger.Error("shutdown-error", zap.Error(err))
	}
}
