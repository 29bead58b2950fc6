// Package state persists the bot's durable snapshot (positions, recent
// fills, running totals) to a single JSON document with atomic writes,
// grounded on original_source/polymarket/state_manager.py's StateManager.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

// Config holds state-manager configuration.
type Config struct {
	StateFile         string
	SaveInterval      time.Duration
	EnablePersistence bool
	Logger            *zap.Logger
}

// Manager owns the in-memory BotState and its on-disk mirror.
type Manager struct {
	cfg Config

	stateMu sync.RWMutex // guards the in-memory BotState fields
	state   *boxtypes.BotState

	saveMu sync.Mutex // serializes the write path

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a state manager with an empty in-memory state.
func New(cfg Config) *Manager {
	return &Manager{
		cfg: cfg,
		state: &boxtypes.BotState{
			Positions:  make(map[string]*boxtypes.MarketPosition),
			OpenOrders: make(map[string]boxtypes.Quote),
			Fills:      make([]boxtypes.Fill, 0),
		},
	}
}

// Start launches the periodic save activity. No-op when persistence is disabled.
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.EnablePersistence {
		m.cfg.Logger.Info("state-persistence-disabled")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.periodicSave(runCtx)

	m.cfg.Logger.Info("state-manager-started", zap.String("state-file", m.cfg.StateFile))
}

func (m *Manager) periodicSave(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Save(); err != nil {
				m.cfg.Logger.Error("periodic-state-save-failed", zap.Error(err))
			}
		}
	}
}

// Stop cancels the periodic save activity and performs a final synchronous save.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	if err := m.Save(); err != nil {
		m.cfg.Logger.Error("final-state-save-failed", zap.Error(err))
	}
	m.cfg.Logger.Info("state-manager-stopped")
}

// Save atomically writes the current state to disk: temp file in the same
// directory, flush, then rename over the destination. open_orders is always
// written empty — open orders are reconstructed from the exchange, never
// restored from disk.
func (m *Manager) Save() error {
	if !m.cfg.EnablePersistence {
		return nil
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.stateMu.Lock()
	m.state.LastUpdated = time.Now().UTC()
	snapshot := *m.state
	snapshot.OpenOrders = map[string]boxtypes.Quote{}
	m.stateMu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		SaveFailuresTotal.Inc()
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(m.cfg.StateFile)
	tmp, err := os.CreateTemp(dir, "state-*.json.tmp")
	if err != nil {
		SaveFailuresTotal.Inc()
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		SaveFailuresTotal.Inc()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		SaveFailuresTotal.Inc()
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, m.cfg.StateFile); err != nil {
		os.Remove(tmpPath)
		SaveFailuresTotal.Inc()
		return fmt.Errorf("rename temp file: %w", err)
	}

	SavesTotal.Inc()
	PositionsTracked.Set(float64(len(snapshot.Positions)))
	m.cfg.Logger.Debug("state-saved",
		zap.Int("positions", len(snapshot.Positions)),
		zap.Int("fills", len(snapshot.Fills)))
	return nil
}

// Load reads state from disk. Returns false (and starts clean) when the file
// doesn't exist, persistence is disabled, or the file fails to parse — a
// corrupt file is renamed to a ".bak" sibling rather than lost.
func (m *Manager) Load() bool {
	if !m.cfg.EnablePersistence {
		return false
	}

	data, err := os.ReadFile(m.cfg.StateFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.cfg.Logger.Info("no-existing-state-file-starting-fresh")
			return false
		}
		m.cfg.Logger.Error("state-file-read-failed", zap.Error(err))
		return false
	}

	var loaded boxtypes.BotState
	if err := json.Unmarshal(data, &loaded); err != nil {
		m.cfg.Logger.Error("state-file-parse-failed", zap.Error(err))
		backupPath := m.cfg.StateFile + ".bak"
		if renameErr := os.Rename(m.cfg.StateFile, backupPath); renameErr != nil {
			m.cfg.Logger.Error("state-file-backup-failed", zap.Error(renameErr))
		} else {
			m.cfg.Logger.Info("corrupted-state-backed-up", zap.String("path", backupPath))
		}
		return false
	}

	if loaded.Positions == nil {
		loaded.Positions = make(map[string]*boxtypes.MarketPosition)
	}
	if loaded.OpenOrders == nil {
		loaded.OpenOrders = make(map[string]boxtypes.Quote)
	}

	m.stateMu.Lock()
	m.state = &loaded
	m.stateMu.Unlock()

	m.cfg.Logger.Info("state-loaded",
		zap.Int("positions", len(loaded.Positions)),
		zap.Int("fills", len(loaded.Fills)),
		zap.Time("last-updated", loaded.LastUpdated))
	return true
}

// UpdatePositions replaces the in-memory position snapshot wholesale.
func (m *Manager) UpdatePositions(positions map[string]*boxtypes.MarketPosition) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.Positions = positions
}

// RecordFill appends a fill (capped at 1000 via BotState.AppendFill) and, for
// maker fills, adds its notional to the running maker-volume total.
func (m *Manager) RecordFill(f boxtypes.Fill) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	m.state.AppendFill(f)
	if f.Maker {
		m.state.TotalMakerVolume += f.Notional()
	}
}

// UpdateRebates sets the running estimated-rebate total.
func (m *Manager) UpdateRebates(estimate float64) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.TotalRebatesEstimate = estimate
}

// Positions returns the in-memory position map (not copied — callers must
// not mutate outside the inventory tracker's own synchronization).
func (m *Manager) Positions() map[string]*boxtypes.MarketPosition {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state.Positions
}

// Fills returns a copy of the recorded fill history.
func (m *Manager) Fills() []boxtypes.Fill {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	out := make([]boxtypes.Fill, len(m.state.Fills))
	copy(out, m.state.Fills)
	return out
}

// TotalMakerVolume returns the running maker-volume total.
func (m *Manager) TotalMakerVolume() float64 {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state.TotalMakerVolume
}

// Snapshot returns a shallow copy of the full state, used by the dashboard API.
func (m *Manager) Snapshot() boxtypes.BotState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return *m.state
}
