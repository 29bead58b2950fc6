package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, existed := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if existed {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadFromEnv_DefaultsArePaperTrading(t *testing.T) {
	clearEnv(t, "PAPER_TRADING", "POLYMARKET_PRIVATE_KEY", "POLYMARKET_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if !cfg.PaperTrading {
		t.Error("expected default PaperTrading to be true")
	}
	if cfg.MinPrice != 0.20 || cfg.MaxPrice != 0.80 {
		t.Errorf("expected default quoting band 0.20/0.80, got %v/%v", cfg.MinPrice, cfg.MaxPrice)
	}
	if cfg.BreakevenTarget != 0.99 {
		t.Errorf("expected default breakeven target 0.99, got %v", cfg.BreakevenTarget)
	}
	if cfg.SafetyMargin != 0.005 {
		t.Errorf("expected default safety margin 0.005, got %v", cfg.SafetyMargin)
	}
}

func TestLoadFromEnv_LiveTradingRequiresCredentials(t *testing.T) {
	clearEnv(t, "PAPER_TRADING", "POLYMARKET_PRIVATE_KEY", "POLYMARKET_API_KEY", "POLYMARKET_SECRET", "POLYMARKET_PASSPHRASE")
	os.Setenv("PAPER_TRADING", "false")
	t.Cleanup(func() { os.Unsetenv("PAPER_TRADING") })

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error when live trading without credentials")
	}
}

func TestValidate_RejectsInvertedPriceBand(t *testing.T) {
	cfg := &Config{
		HTTPPort: "8080", PolymarketWSURL: "wss://x", PolymarketGammaURL: "https://x",
		MinPrice: 0.8, MaxPrice: 0.2, BreakevenTarget: 0.99, MaxPositionUSDC: 100,
		MaxPositionPerMarket: 50, TickSize: 0.01, BaseQuoteSize: 5, BatchSize: 10,
		PaperTrading: true,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted price band")
	}
}

func TestGetStringListOrDefault_UppercasesAndTrims(t *testing.T) {
	os.Setenv("TARGET_ASSETS", " btc, eth ,sol")
	t.Cleanup(func() { os.Unsetenv("TARGET_ASSETS") })

	got := getStringListOrDefault("TARGET_ASSETS", nil)
	want := []string{"BTC", "ETH", "SOL"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestGetSecondsOrDefault_ParsesFractionalSeconds(t *testing.T) {
	os.Setenv("QUOTE_REFRESH_TEST", "0.5")
	t.Cleanup(func() { os.Unsetenv("QUOTE_REFRESH_TEST") })

	d := getSecondsOrDefault("QUOTE_REFRESH_TEST", 1.0)
	if d.Seconds() != 0.5 {
		t.Errorf("expected 0.5s, got %v", d)
	}
}
