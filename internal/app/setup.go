package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/internal/breakeven"
	"github.com/quietridge/boxmaker/internal/circuitbreaker"
	"github.com/quietridge/boxmaker/internal/discovery"
	"github.com/quietridge/boxmaker/internal/execution"
	"github.com/quietridge/boxmaker/internal/inventory"
	"github.com/quietridge/boxmaker/internal/orderbook"
	"github.com/quietridge/boxmaker/internal/quote"
	"github.com/quietridge/boxmaker/internal/rebate"
	"github.com/quietridge/boxmaker/internal/state"
	"github.com/quietridge/boxmaker/internal/trading"
	"github.com/quietridge/boxmaker/pkg/cache"
	"github.com/quietridge/boxmaker/pkg/config"
	"github.com/quietridge/boxmaker/pkg/feed"
	"github.com/quietridge/boxmaker/pkg/healthprobe"
	"github.com/quietridge/boxmaker/pkg/httpserver"
	"github.com/quietridge/boxmaker/pkg/wallet"
)

// New creates a new application instance, wiring every component from
// configuration. Only the circuit breaker (when enabled) is started here;
// every other component is started by Run.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	discoveryService := setupDiscoveryService(cfg, logger, marketCache)
	feedSession := setupFeedSession(cfg, logger)
	obManager := orderbook.New(&orderbook.Config{
		Logger:         logger,
		MessageChannel: feedSession.MarketMessages(),
	})

	inventoryTracker := inventory.New(cfg.SkewThreshold, logger)
	breakevenCalc := breakeven.New(cfg.BreakevenTarget, cfg.SafetyMargin, logger)
	quoteGen := quote.New(quote.Config{
		TickSize: cfg.TickSize,
		BaseSize: cfg.BaseQuoteSize,
		MinPrice: cfg.MinPrice,
		MaxPrice: cfg.MaxPrice,
	}, logger)

	stateManager := state.New(state.Config{
		StateFile:         cfg.StateFile,
		SaveInterval:      secondsToDuration(cfg.SaveIntervalSeconds),
		EnablePersistence: cfg.EnablePersistence,
		Logger:            logger,
	})

	ledger, err := setupLedger(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup ledger: %w", err)
	}

	rebateTracker := rebate.New(cfg.RebateRateBps, logger)

	httpServer := httpserver.New(&httpserver.Config{
		Port:             cfg.HTTPPort,
		Logger:           logger,
		HealthChecker:    healthChecker,
		StateManager:     stateManager,
		DiscoveryService: discoveryService,
	})

	execClient, err := setupExecutionClient(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup execution client: %w", err)
	}

	breaker, err := setupCircuitBreaker(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup circuit breaker: %w", err)
	}

	tradingLoop := trading.New(trading.Config{
		QuoteRefresh:    secondsToDuration(cfg.QuoteRefreshSecs),
		MarketRefresh:   60 * time.Second,
		BaseQuoteSize:   cfg.BaseQuoteSize,
		MaxPositionUSDC: cfg.MaxPositionUSDC,
		BatchSize:       cfg.BatchSize,
		PaperTrading:    cfg.PaperTrading,
	}, trading.Deps{
		Discovery:      discoveryService,
		Books:          obManager,
		Inventory:      inventoryTracker,
		Breakeven:      breakevenCalc,
		QuoteGen:       quoteGen,
		ExecClient:     execClient,
		FeedSession:    feedSession,
		StateManager:   stateManager,
		RebateTracker:  rebateTracker,
		Ledger:         ledger,
		CircuitBreaker: breaker,
		Logger:         logger,
	})

	return &App{
		cfg:              cfg,
		logger:           logger,
		opts:             opts,
		healthChecker:    healthChecker,
		httpServer:       httpServer,
		cache:            marketCache,
		discoveryService: discoveryService,
		feedSession:      feedSession,
		obManager:        obManager,
		inventoryTracker: inventoryTracker,
		breakevenCalc:    breakevenCalc,
		quoteGen:         quoteGen,
		execClient:       execClient,
		stateManager:     stateManager,
		rebateTracker:    rebateTracker,
		ledger:           ledger,
		circuitBreaker:   breaker,
		tradingLoop:      tradingLoop,
		ctx:              ctx,
		cancel:           cancel,
	}, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupDiscoveryService(cfg *config.Config, logger *zap.Logger, marketCache cache.Cache) *discovery.Service {
	client := discovery.NewClient(cfg.PolymarketGammaURL, logger)
	return discovery.New(&discovery.Config{
		Client:       client,
		Cache:        marketCache,
		PollInterval: cfg.DiscoveryPollInterval,
		MarketLimit:  cfg.DiscoveryMarketLimit,
		MinPrice:     cfg.MinPrice,
		MaxPrice:     cfg.MaxPrice,
		TargetAssets: cfg.TargetAssets,
		Logger:       logger,
	})
}

func setupFeedSession(cfg *config.Config, logger *zap.Logger) *feed.Session {
	return feed.New(feed.Config{
		URL:                 cfg.PolymarketWSURL,
		DialTimeout:         cfg.ConnectionTimeout,
		PingInterval:        cfg.HeartbeatInterval / 2,
		HeartbeatInterval:   cfg.HeartbeatInterval,
		ReconnectBaseDelay:  cfg.ReconnectBaseDelay,
		ReconnectMaxDelay:   cfg.ReconnectMaxDelay,
		ReconnectMultiplier: cfg.ReconnectMultiplier,
		MarketMsgBufferSize: 10000,
		FillMsgBufferSize:   1000,
		Logger:              logger,
	})
}

// setupLedger builds the optional fills side-channel. Console is the
// default; Postgres is used when explicitly configured.
func setupLedger(cfg *config.Config, logger *zap.Logger) (state.Ledger, error) {
	if cfg.StorageMode == "postgres" {
		pgLedger, err := state.NewPostgresLedger(&state.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres ledger: %w", err)
		}
		return pgLedger, nil
	}

	return state.NewConsoleLedger(logger), nil
}

// setupExecutionClient builds the CLOB signing/submission client. Returns
// nil in paper-trading mode, where the trading loop never signs or submits
// a real order (spec.md §4.6's paper-trading behavior).
func setupExecutionClient(cfg *config.Config, logger *zap.Logger) (*execution.Client, error) {
	if cfg.PaperTrading {
		logger.Info("execution-client-disabled-paper-trading")
		return nil, nil
	}

	client, err := execution.New(&execution.Config{
		APIKey:        cfg.PolymarketAPIKey,
		Secret:        cfg.PolymarketSecret,
		Passphrase:    cfg.PolymarketPassphrase,
		PrivateKey:    cfg.PrivateKey,
		Address:       cfg.Address,
		ProxyAddress:  cfg.ProxyAddress,
		SignatureType: cfg.SignatureType,
		ClobHost:      cfg.PolymarketClobURL,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create execution client: %w", err)
	}
	return client, nil
}

// setupCircuitBreaker builds the balance circuit breaker, gated on both
// CIRCUIT_BREAKER_ENABLED and live (non-paper) trading, since there is no
// real wallet balance to monitor in paper mode.
func setupCircuitBreaker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*circuitbreaker.BalanceCircuitBreaker, error) {
	if cfg.PaperTrading || !cfg.CircuitBreakerEnabled {
		return nil, nil
	}

	if cfg.PrivateKey == "" {
		logger.Warn("circuit-breaker-disabled-no-private-key")
		return nil, nil
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		logger.Warn("circuit-breaker-disabled-invalid-key", zap.Error(err))
		return nil, nil
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		logger.Warn("circuit-breaker-disabled-key-cast-failed")
		return nil, nil
	}
	address := crypto.PubkeyToAddress(*publicKeyECDSA)

	rpcURL := os.Getenv("POLYGON_RPC_URL")
	if rpcURL == "" {
		rpcURL = "https://polygon-rpc.com"
	}

	walletClient, err := wallet.NewClient(rpcURL, logger)
	if err != nil {
		logger.Warn("circuit-breaker-disabled-wallet-client-failed", zap.Error(err))
		return nil, nil
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		CheckInterval:   cfg.CircuitBreakerCheckInterval,
		TradeMultiplier: cfg.CircuitBreakerTradeMultiplier,
		MinAbsolute:     cfg.CircuitBreakerMinAbsolute,
		HysteresisRatio: cfg.CircuitBreakerHysteresisRatio,
		WalletClient:    walletClient,
		Address:         address,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create circuit breaker: %w", err)
	}

	breaker.Start(ctx)
	logger.Info("circuit-breaker-enabled",
		zap.Duration("check_interval", cfg.CircuitBreakerCheckInterval),
		zap.Float64("trade_multiplier", cfg.CircuitBreakerTradeMultiplier))

	return breaker, nil
}
