package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	m := New(Config{
		StateFile:         path,
		SaveInterval:      time.Hour,
		EnablePersistence: true,
		Logger:            zap.NewNop(),
	})
	return m, path
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	m, path := newTestManager(t)

	m.UpdatePositions(map[string]*boxtypes.MarketPosition{
		"cond-1": {
			ConditionID: "cond-1",
			YesPosition: boxtypes.Position{TokenID: "yes-1", Outcome: boxtypes.OutcomeYes, Quantity: 10, TotalCost: 4.2},
			NoPosition:  boxtypes.Position{TokenID: "no-1", Outcome: boxtypes.OutcomeNo, Quantity: 10, TotalCost: 5.0},
		},
	})
	m.RecordFill(boxtypes.Fill{OrderID: "o1", TokenID: "yes-1", Outcome: boxtypes.OutcomeYes, Side: boxtypes.SideBuy, Price: 0.42, Size: 10, Timestamp: time.Now(), Maker: true})

	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected state file to exist: %v", err)
	}

	m2, _ := newTestManager(t)
	m2.cfg.StateFile = path
	if !m2.Load() {
		t.Fatalf("expected Load to succeed")
	}

	if len(m2.Positions()) != 1 {
		t.Fatalf("expected 1 position, got %d", len(m2.Positions()))
	}
	if len(m2.Fills()) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(m2.Fills()))
	}
	if m2.TotalMakerVolume() != 4.2 {
		t.Fatalf("expected maker volume 4.2, got %v", m2.TotalMakerVolume())
	}
}

func TestLoadMissingFileStartsClean(t *testing.T) {
	m, _ := newTestManager(t)
	if m.Load() {
		t.Fatalf("expected Load to report false for missing file")
	}
}

func TestLoadCorruptFileBacksUpAndStartsClean(t *testing.T) {
	m, path := newTestManager(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if m.Load() {
		t.Fatalf("expected Load to report false for corrupt file")
	}

	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("expected corrupt file to be backed up: %v", err)
	}
}

func TestSaveDisabledIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	m := New(Config{StateFile: path, SaveInterval: time.Hour, EnablePersistence: false, Logger: zap.NewNop()})

	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected no state file to be written when persistence disabled")
	}
}

func TestFillHistoryCappedAtMaxFillHistory(t *testing.T) {
	m, _ := newTestManager(t)
	for i := 0; i < 1100; i++ {
		m.RecordFill(boxtypes.Fill{OrderID: "o", Price: 0.5, Size: 1, Timestamp: time.Now(), Maker: true})
	}
	if len(m.Fills()) != 1000 {
		t.Fatalf("expected fills capped at 1000, got %d", len(m.Fills()))
	}
}
