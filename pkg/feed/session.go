// Package feed owns a single reconnecting WebSocket session to the exchange
// market-data/user feed, grounded on the teacher's pkg/websocket.Manager
// (manager.go, reconnect.go) generalized to the explicit
// DISCONNECTED->CONNECTING->OPEN->(CLOSING|FAILED)->WAITING state machine and
// heartbeat-staleness detection spec'd in spec.md §4.5.
package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/types"
)

// State is a step in the session's connection state machine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateFailed
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	case StateWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Credentials carries the three-part auth tuple the user channel requires.
// The wire format of this payload is not verified against the server by this
// package (spec.md §9 open question (b)) — whatever is supplied here is sent
// verbatim.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// Config holds feed session configuration.
type Config struct {
	URL                  string
	DialTimeout          time.Duration
	PingInterval         time.Duration
	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMultiplier  float64
	MarketMsgBufferSize  int
	FillMsgBufferSize    int
	Logger               *zap.Logger
}

// Session owns one connection to the feed endpoint.
type Session struct {
	url          string
	conn         *websocket.Conn
	logger       *zap.Logger
	reconnectMgr *ReconnectManager
	cfg          Config

	marketMsgChan chan *types.OrderbookMessage
	fillMsgChan   chan *types.UserMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex

	state           atomic.Int32
	subscribed      map[string]bool // market channel token ids
	userAuth        *Credentials
	lastMessageTime atomic.Int64 // unix nano of last successfully parsed frame
	lastPongTime    atomic.Int64
	connectionStart atomic.Int64
}

// New creates a feed session. It does not connect until Start is called.
func New(cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectBaseDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectMultiplier,
		JitterPercent:     0.2,
	}

	s := &Session{
		url:           cfg.URL,
		logger:        cfg.Logger,
		reconnectMgr:  NewReconnectManager(reconnectCfg, cfg.Logger),
		cfg:           cfg,
		marketMsgChan: make(chan *types.OrderbookMessage, cfg.MarketMsgBufferSize),
		fillMsgChan:   make(chan *types.UserMessage, cfg.FillMsgBufferSize),
		ctx:           ctx,
		cancel:        cancel,
		subscribed:    make(map[string]bool),
	}
	s.state.Store(int32(StateDisconnected))
	return s
}

// State returns the session's current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Start performs the initial connection and launches the receive, ping,
// heartbeat, and reconnect activities.
func (s *Session) Start() error {
	s.logger.Info("feed-session-starting", zap.String("url", s.url))
	s.setState(StateConnecting)

	if err := s.connect(s.ctx); err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("initial connection: %w", err)
	}

	s.wg.Add(4)
	go s.readLoop()
	go s.pingLoop()
	go s.heartbeatLoop()
	go s.reconnectLoop()

	return nil
}

// connect dials the feed and replays any remembered subscriptions.
func (s *Session) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.DialTimeout}

	s.logger.Info("feed-connecting", zap.String("url", s.url))

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	pongWait := 2 * s.cfg.PingInterval
	conn.SetPongHandler(func(string) error {
		s.lastPongTime.Store(time.Now().UnixNano())
		if pongWait > 0 {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		}
		return nil
	})
	if pongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	now := time.Now()
	s.lastPongTime.Store(now.UnixNano())
	s.lastMessageTime.Store(now.UnixNano())
	s.connectionStart.Store(now.Unix())
	s.setState(StateOpen)
	ActiveConnections.Set(1)

	s.logger.Info("feed-connected")

	if err := s.replaySubscriptions(); err != nil {
		return fmt.Errorf("replay subscriptions: %w", err)
	}

	return nil
}

// replaySubscriptions resends the market-channel and (if configured) user-
// channel subscribe frames. Called both on first connect and every reconnect.
func (s *Session) replaySubscriptions() error {
	s.mu.RLock()
	tokenIDs := make([]string, 0, len(s.subscribed))
	for id := range s.subscribed {
		tokenIDs = append(tokenIDs, id)
	}
	auth := s.userAuth
	conn := s.conn
	s.mu.RUnlock()

	if len(tokenIDs) > 0 {
		msg := map[string]interface{}{
			"type":       "subscribe",
			"channel":    "market",
			"assets_ids": tokenIDs,
		}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("write market subscribe: %w", err)
		}
		s.logger.Info("resubscribed-market-channel", zap.Int("count", len(tokenIDs)))
	}

	if auth != nil {
		msg := map[string]interface{}{
			"type":    "subscribe",
			"channel": "user",
			"auth": map[string]string{
				"apiKey":     auth.APIKey,
				"secret":     auth.APISecret,
				"passphrase": auth.Passphrase,
			},
		}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("write user subscribe: %w", err)
		}
		s.logger.Info("resubscribed-user-channel")
	}

	return nil
}

// Subscribe adds token ids to the market channel and, if already connected,
// sends the subscribe frame immediately. Subscriptions are remembered so a
// reconnect replays them.
func (s *Session) Subscribe(tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	newIDs := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if !s.subscribed[id] {
			newIDs = append(newIDs, id)
			s.subscribed[id] = true
		}
	}
	total := len(s.subscribed)
	conn := s.conn
	s.mu.Unlock()

	SubscriptionCount.Set(float64(total))

	if len(newIDs) == 0 {
		return nil
	}

	if conn == nil {
		// Not yet connected; Start/reconnect will replay the full set.
		return nil
	}

	msg := map[string]interface{}{
		"type":       "subscribe",
		"channel":    "market",
		"assets_ids": newIDs,
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	s.logger.Info("subscribed-to-tokens", zap.Int("new-count", len(newIDs)), zap.Int("total-count", total))
	return nil
}

// SubscribeUser records user-channel credentials and, if connected, sends the
// auth subscribe frame immediately. All three fields are required.
func (s *Session) SubscribeUser(creds Credentials) error {
	if creds.APIKey == "" || creds.APISecret == "" || creds.Passphrase == "" {
		return fmt.Errorf("user channel requires apiKey, secret, and passphrase")
	}

	s.mu.Lock()
	s.userAuth = &creds
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	msg := map[string]interface{}{
		"type":    "subscribe",
		"channel": "user",
		"auth": map[string]string{
			"apiKey":     creds.APIKey,
			"secret":     creds.APISecret,
			"passphrase": creds.Passphrase,
		},
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write user subscribe: %w", err)
	}
	return nil
}

// discriminator is decoded first to tell market-channel book/price_change/
// trade/subscribed/error frames apart from user-channel order/fill frames —
// the latter always carry an order_id, the former never do (spec §6).
type discriminator struct {
	EventType string `json:"event_type"`
	OrderID   string `json:"order_id"`
}

func (s *Session) readLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			s.logger.Warn("feed-read-error", zap.Error(err))

			if start := s.connectionStart.Load(); start > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(start, 0)).Seconds())
			}

			s.setState(StateFailed)
			ActiveConnections.Set(0)
			return
		}

		s.lastMessageTime.Store(time.Now().UnixNano())

		var raws []json.RawMessage
		if err := json.Unmarshal(message, &raws); err != nil {
			// A single object rather than an array is also valid.
			raws = []json.RawMessage{message}
		}

		for _, raw := range raws {
			start := time.Now()
			s.dispatch(raw)
			MessageLatencySeconds.Observe(time.Since(start).Seconds())
		}
	}
}

func (s *Session) dispatch(raw json.RawMessage) {
	var d discriminator
	if err := json.Unmarshal(raw, &d); err != nil {
		s.logger.Debug("feed-unparseable-message", zap.Error(err))
		return
	}

	if d.OrderID != "" {
		var um types.UserMessage
		if err := json.Unmarshal(raw, &um); err != nil {
			s.logger.Debug("feed-unparseable-user-message", zap.Error(err))
			return
		}
		MessagesReceivedTotal.WithLabelValues("user_" + um.EventType).Inc()
		select {
		case s.fillMsgChan <- &um:
		default:
			s.logger.Warn("fill-channel-full")
			MessagesDroppedTotal.WithLabelValues("fill_channel_full").Inc()
		}
		return
	}

	if d.EventType == "" {
		// No discriminator at all; likely a bare control/heartbeat frame.
		return
	}

	var ob types.OrderbookMessage
	if err := json.Unmarshal(raw, &ob); err != nil {
		s.logger.Debug("feed-unparseable-orderbook-message", zap.Error(err))
		return
	}
	MessagesReceivedTotal.WithLabelValues(ob.EventType).Inc()
	select {
	case s.marketMsgChan <- &ob:
	default:
		s.logger.Warn("market-channel-full", zap.String("event-type", ob.EventType))
		MessagesDroppedTotal.WithLabelValues("market_channel_full").Inc()
	}
}

func (s *Session) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.State() != StateOpen {
				continue
			}

			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()

			if conn == nil {
				continue
			}

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				s.logger.Warn("feed-ping-error", zap.Error(err))
			}
		}
	}
}

// heartbeatLoop is the separate staleness-detection activity required by
// spec.md §4.5: it never closes the connection itself (the transport's pong
// timeout owns that), it only warns.
func (s *Session) heartbeatLoop() {
	defer s.wg.Done()

	threshold := 2 * s.cfg.HeartbeatInterval
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.State() != StateOpen {
				continue
			}
			last := time.Unix(0, s.lastMessageTime.Load())
			if time.Since(last) > threshold {
				s.logger.Warn("feed-heartbeat-stale",
					zap.Duration("since-last-message", time.Since(last)),
					zap.Duration("threshold", threshold))
				HeartbeatStaleTotal.Inc()
			}
		}
	}
}

func (s *Session) reconnectLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if s.State() != StateFailed {
			time.Sleep(time.Second)
			continue
		}

		s.setState(StateWaiting)
		s.logger.Warn("feed-connection-lost-reconnecting")

		err := s.reconnectMgr.Reconnect(s.ctx, func(ctx context.Context) error {
			s.setState(StateConnecting)
			return s.connect(ctx)
		})
		if err != nil {
			if err == context.Canceled {
				return
			}
			s.logger.Error("feed-reconnection-failed", zap.Error(err))
			continue
		}

		s.logger.Info("feed-reconnection-complete-restarting-read-loop")
		s.wg.Add(1)
		go s.readLoop()
	}
}

// MarketMessages returns the channel publishing market-channel (book/
// price_change/trade/subscribed/error) frames.
func (s *Session) MarketMessages() <-chan *types.OrderbookMessage {
	return s.marketMsgChan
}

// FillMessages returns the channel publishing user-channel (order/fill)
// frames for the bot's own orders.
func (s *Session) FillMessages() <-chan *types.UserMessage {
	return s.fillMsgChan
}

// Disconnect terminates the receive, ping, heartbeat, and reconnect
// activities and closes the socket, with a bounded shutdown timeout per
// spec.md §4.5 — if activities don't stop in time, it abandons them rather
// than blocking shutdown forever.
func (s *Session) Disconnect(timeout time.Duration) error {
	s.logger.Info("feed-disconnecting")
	s.setState(StateClosing)
	s.cancel()

	s.mu.RLock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("feed-disconnect-timeout-abandoning-activities")
	}

	s.setState(StateDisconnected)
	ActiveConnections.Set(0)
	s.logger.Info("feed-disconnected")
	return nil
}
