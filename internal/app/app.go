// Package app wires every component into the running box-maker process:
// discovery, the feed session, the order-book manager, inventory, breakeven
// math, quote generation, execution, persistence, rebate accounting, the
// circuit breaker, and the trading loop that ties them together. Grounded
// on the teacher's internal/app package (app.go/setup.go/run.go/shutdown.go).
package app

import (
	"context"
	"sync"

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
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	opts          *Options
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	cache         cache.Cache

	discoveryService *discovery.Service
	feedSession      *feed.Session
	obManager        *orderbook.Manager
	inventoryTracker *inventory.Tracker
	breakevenCalc    *breakeven.Calculator
	quoteGen         *quote.Generator
	execClient       *execution.Client // nil in paper-trading mode
	stateManager     *state.Manager
	rebateTracker    *rebate.Tracker
	ledger           state.Ledger
	circuitBreaker   *circuitbreaker.BalanceCircuitBreaker
	tradingLoop      *trading.Loop

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// SingleMarket restricts tracking to markets whose question contains
	// this substring, for debugging (spec.md's "single-market" flag).
	SingleMarket string
}
