// Package trading drives the periodic cancel-all -> quote -> submit cycle
// that ties every other component together, patterned on a select-driven
// dispatch loop over a ticker and a fill-message channel.
package trading

import (
	"context"
	"sync"
	"time"

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
	"github.com/quietridge/boxmaker/pkg/boxtypes"
	"github.com/quietridge/boxmaker/pkg/feed"
)

// Config holds the periodic-cycle parameters the loop needs (spec.md §6).
type Config struct {
	QuoteRefresh     time.Duration
	MarketRefresh    time.Duration // how often the eligible-market set is re-read (default 60s)
	BaseQuoteSize    float64
	MaxPositionUSDC  float64
	BatchSize        int
	PaperTrading     bool
	ShutdownTimeout  time.Duration
}

// Loop coordinates discovery, order-book state, inventory, breakeven
// ceilings, quote generation, and order submission into the recurring
// cycle spec.md §4.6 describes.
type Loop struct {
	cfg Config

	discovery      *discovery.Service
	books          *orderbook.Manager
	inventory      *inventory.Tracker
	breakeven      *breakeven.Calculator
	quoteGen       *quote.Generator
	execClient     *execution.Client
	feedSession    *feed.Session
	stateManager   *state.Manager
	rebateTracker  *rebate.Tracker
	ledger         state.Ledger
	circuitBreaker *circuitbreaker.BalanceCircuitBreaker
	logger         *zap.Logger

	pendingMu sync.Mutex
	pending   map[string]pendingQuote // keyed by order id

	lastMarketRefresh time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// pendingQuote is what a submitted-but-unconfirmed quote needs for fill
// dispatch to resolve a later fill back to its market and outcome.
type pendingQuote struct {
	ConditionID string
	TokenID     string
	Outcome     boxtypes.Outcome
	Price       float64
	Size        float64
}

// Deps bundles every collaborator the loop needs, assembled by internal/app.
type Deps struct {
	Discovery      *discovery.Service
	Books          *orderbook.Manager
	Inventory      *inventory.Tracker
	Breakeven      *breakeven.Calculator
	QuoteGen       *quote.Generator
	ExecClient     *execution.Client // nil when PaperTrading
	FeedSession    *feed.Session
	StateManager   *state.Manager
	RebateTracker  *rebate.Tracker
	Ledger         state.Ledger // optional
	CircuitBreaker *circuitbreaker.BalanceCircuitBreaker // optional
	Logger         *zap.Logger
}

// New builds a Loop. MarketRefresh defaults to 60s when zero.
func New(cfg Config, deps Deps) *Loop {
	if cfg.MarketRefresh == 0 {
		cfg.MarketRefresh = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loop{
		cfg:            cfg,
		discovery:      deps.Discovery,
		books:          deps.Books,
		inventory:      deps.Inventory,
		breakeven:      deps.Breakeven,
		quoteGen:       deps.QuoteGen,
		execClient:     deps.ExecClient,
		feedSession:    deps.FeedSession,
		stateManager:   deps.StateManager,
		rebateTracker:  deps.RebateTracker,
		ledger:         deps.Ledger,
		circuitBreaker: deps.CircuitBreaker,
		logger:         logger,
		pending:        make(map[string]pendingQuote),
	}
}

// Start launches the cycle loop and the fill-dispatch loop. Non-blocking.
func (l *Loop) Start(ctx context.Context) error {
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.logger.Info("trading-loop-starting",
		zap.Duration("quote-refresh", l.cfg.QuoteRefresh),
		zap.Duration("market-refresh", l.cfg.MarketRefresh),
		zap.Bool("paper-trading", l.cfg.PaperTrading))

	l.wg.Add(2)
	go l.runCycles()
	go l.runFillDispatch()

	return nil
}

func (l *Loop) runCycles() {
	defer l.wg.Done()

	// Run the first cycle immediately rather than waiting a full tick.
	l.refreshMarketsIfDue()
	l.runCycle()

	ticker := time.NewTicker(l.cfg.QuoteRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			cycleStart := time.Now()
			l.refreshMarketsIfDue()
			l.runCycle()
			CycleDurationSeconds.Observe(time.Since(cycleStart).Seconds())
		}
	}
}

// refreshMarketsIfDue re-seeds inventory for any market discovery has
// surfaced since the last refresh. Markets that vanish from discovery's set
// are retained, never pruned (spec.md §9 open question (a) — intentional).
func (l *Loop) refreshMarketsIfDue() {
	if time.Since(l.lastMarketRefresh) < l.cfg.MarketRefresh {
		return
	}
	l.lastMarketRefresh = time.Now()

	for _, m := range l.discovery.Markets() {
		l.inventory.GetOrCreate(m.ConditionID, m.YesTokenID, m.NoTokenID)
	}
}

// Close stops the loop, cancels open orders (live mode only) and logs a
// rebate summary. It does not flush state; the state manager's Stop does
// that as a later shutdown step.
func (l *Loop) Close() error {
	l.logger.Info("trading-loop-stopping")

	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()

	if !l.cfg.PaperTrading && l.execClient != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), l.cfg.ShutdownTimeout)
		defer cancel()
		if err := l.execClient.CancelAll(shutdownCtx); err != nil {
			l.logger.Error("shutdown-cancel-all-failed", zap.Error(err))
		}
	}

	if l.rebateTracker != nil {
		l.logger.Info("rebate-summary", zap.String("summary", l.rebateTracker.Summary()))
	}

	l.logger.Info("trading-loop-stopped")
	return nil
}
