package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
	"github.com/quietridge/boxmaker/pkg/cache"
	"github.com/quietridge/boxmaker/pkg/types"
	"go.uber.org/zap"
)

// Service discovers eligible binary markets by polling the Gamma API and
// maintains the token_id -> condition_id index fill messages are resolved
// against.
type Service struct {
	client       *Client
	cache        cache.Cache
	pollInterval time.Duration
	marketLimit  int
	minPrice     float64
	maxPrice     float64
	targetAssets map[string]struct{}
	logger       *zap.Logger

	mu           sync.RWMutex
	markets      map[string]*boxtypes.MarketInfo // condition_id -> info
	tokenIndex   map[string]string               // token_id -> condition_id
	newMarketsCh chan *boxtypes.MarketInfo
}

// Config holds discovery service configuration.
type Config struct {
	Client       *Client
	Cache        cache.Cache
	PollInterval time.Duration
	MarketLimit  int
	MinPrice     float64
	MaxPrice     float64
	TargetAssets []string
	Logger       *zap.Logger
}

// New creates a new discovery service.
func New(cfg *Config) *Service {
	targets := make(map[string]struct{}, len(cfg.TargetAssets))
	for _, a := range cfg.TargetAssets {
		targets[strings.ToUpper(a)] = struct{}{}
	}

	return &Service{
		client:       cfg.Client,
		cache:        cfg.Cache,
		pollInterval: cfg.PollInterval,
		marketLimit:  cfg.MarketLimit,
		minPrice:     cfg.MinPrice,
		maxPrice:     cfg.MaxPrice,
		targetAssets: targets,
		logger:       cfg.Logger,
		markets:      make(map[string]*boxtypes.MarketInfo),
		tokenIndex:   make(map[string]string),
		newMarketsCh: make(chan *boxtypes.MarketInfo, 100),
	}
}

// Run starts the discovery polling loop.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("discovery-service-starting",
		zap.Duration("poll-interval", s.pollInterval),
		zap.Int("market-limit", s.marketLimit))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	if err := s.poll(ctx); err != nil {
		s.logger.Error("initial-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery-service-stopping")
			close(s.newMarketsCh)
			return ctx.Err()
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				s.logger.Error("poll-failed", zap.Error(err))
			}
		}
	}
}

// poll fetches one page of markets and applies the eligibility filter.
func (s *Service) poll(ctx context.Context) error {
	start := time.Now()
	defer func() { PollDurationSeconds.Observe(time.Since(start).Seconds()) }()

	resp, err := s.client.ListMarkets(ctx, "", s.marketLimit)
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("list markets: %w", err)
	}

	MarketsDiscoveredTotal.Add(float64(len(resp.Data)))

	discovered := s.applyEligibility(resp.Data)
	for _, m := range discovered {
		s.addMarket(m)
	}

	s.logger.Debug("poll-complete",
		zap.Int("total-markets", len(resp.Data)),
		zap.Int("eligible-new", len(discovered)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// applyEligibility implements the discovery filter: active markets, closed
// excluded, at least two tokens, both Yes/No outcome labels present, and
// within the configured quoting price band. Not-yet-known markets only.
func (s *Service) applyEligibility(raw []types.Market) []*boxtypes.MarketInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*boxtypes.MarketInfo

	for i := range raw {
		m := &raw[i]

		if !m.Active || m.Closed {
			continue
		}
		if len(m.Tokens) < 2 {
			MarketsFilteredByEligibilityTotal.WithLabelValues("token_count").Inc()
			continue
		}

		yes := m.GetTokenByOutcome("Yes")
		no := m.GetTokenByOutcome("No")
		if yes == nil || no == nil {
			MarketsFilteredByEligibilityTotal.WithLabelValues("outcome_labels").Inc()
			continue
		}

		conditionID := m.ConditionID
		if conditionID == "" {
			conditionID = m.ID
		}

		if _, exists := s.markets[conditionID]; exists {
			continue
		}

		info := &boxtypes.MarketInfo{
			ConditionID: conditionID,
			Question:    m.Question,
			YesTokenID:  yes.TokenID,
			NoTokenID:   no.TokenID,
			MinTickSize: defaultTickSize(yes.TickSize),
			Active:      m.Active,
			YesPrice:    yes.Price,
			NoPrice:     no.Price,
		}

		if !info.InPriceRange(s.minPrice, s.maxPrice) {
			MarketsFilteredByEligibilityTotal.WithLabelValues("price_range").Inc()
			continue
		}

		if len(s.targetAssets) > 0 && !s.matchesTargetAssets(m.Question) {
			MarketsFilteredByEligibilityTotal.WithLabelValues("target_asset").Inc()
			continue
		}

		out = append(out, info)
	}

	return out
}

// matchesTargetAssets reports whether the market question mentions one of
// the configured uppercase asset symbols; used by the target-assets filter.
func (s *Service) matchesTargetAssets(question string) bool {
	upper := strings.ToUpper(question)
	for asset := range s.targetAssets {
		if strings.Contains(upper, asset) {
			return true
		}
	}
	return false
}

func defaultTickSize(tick float64) float64 {
	if tick <= 0 {
		return 0.01
	}
	return tick
}

// addMarket registers a newly-eligible market, updates the token index and
// cache, and publishes it on the new-markets channel (non-blocking).
func (s *Service) addMarket(m *boxtypes.MarketInfo) {
	s.markets[m.ConditionID] = m
	s.tokenIndex[m.YesTokenID] = m.ConditionID
	s.tokenIndex[m.NoTokenID] = m.ConditionID

	if s.cache != nil {
		s.cache.Set(m.ConditionID, m, 24*time.Hour)
	}

	select {
	case s.newMarketsCh <- m:
		NewMarketsTotal.Inc()
		s.logger.Info("new-market-discovered",
			zap.String("condition-id", m.ConditionID),
			zap.String("question", m.Question))
	default:
		s.logger.Warn("new-markets-channel-full", zap.String("condition-id", m.ConditionID))
	}
}

// NewMarketsChan returns the channel for receiving newly eligible markets.
func (s *Service) NewMarketsChan() <-chan *boxtypes.MarketInfo {
	return s.newMarketsCh
}

// ConditionIDForToken resolves a token_id to its condition_id using the
// secondary index built at discovery time, for resolving fills back to
// the market that produced them.
func (s *Service) ConditionIDForToken(tokenID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conditionID, ok := s.tokenIndex[tokenID]
	return conditionID, ok
}

// Markets returns a snapshot of all currently tracked markets.
func (s *Service) Markets() []*boxtypes.MarketInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*boxtypes.MarketInfo, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out
}

// RemoveMarket drops a market that is no longer eligible (closed, expired).
func (s *Service) RemoveMarket(conditionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[conditionID]
	if !ok {
		return
	}
	delete(s.markets, conditionID)
	delete(s.tokenIndex, m.YesTokenID)
	delete(s.tokenIndex, m.NoTokenID)

	if s.cache != nil {
		s.cache.Delete(conditionID)
	}
}
