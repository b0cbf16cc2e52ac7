package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoad_DefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv("BACKTEST_START", "2024-01-01")
	t.Setenv("BACKTEST_FINISH", "2024-02-01")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if !cfg.InitialBalance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected default initial balance 10000, got %s", cfg.InitialBalance)
	}
	if !cfg.FeeRate.Equal(decimal.NewFromFloat(0.001)) {
		t.Errorf("expected default fee rate 0.001, got %s", cfg.FeeRate)
	}
	if cfg.Exchange != "sim" {
		t.Errorf("expected default exchange sim, got %s", cfg.Exchange)
	}
	if len(cfg.Routes) != 0 {
		t.Errorf("expected no routes without a routes file, got %d", len(cfg.Routes))
	}
}

func TestLoad_ReadsEnvOverrides(t *testing.T) {
	t.Setenv("BACKTEST_START", "2024-03-01")
	t.Setenv("BACKTEST_FINISH", "2024-04-01")
	t.Setenv("INITIAL_BALANCE", "2500")
	t.Setenv("FEE_RATE", "0.002")
	t.Setenv("BACKTEST_CANDLE_CAPACITY", "2880")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if !cfg.InitialBalance.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("initial balance not read from env: %s", cfg.InitialBalance)
	}
	if !cfg.FeeRate.Equal(decimal.NewFromFloat(0.002)) {
		t.Errorf("fee rate not read from env: %s", cfg.FeeRate)
	}
	if cfg.CandleCapacity != 2880 {
		t.Errorf("candle capacity not read from env: %d", cfg.CandleCapacity)
	}
	if cfg.StartDate.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("start date not read from env: %s", cfg.StartDate)
	}
}

func TestLoad_RejectsInvertedDateRange(t *testing.T) {
	t.Setenv("BACKTEST_START", "2024-04-01")
	t.Setenv("BACKTEST_FINISH", "2024-03-01")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error when finish precedes start")
	}
}

func TestLoadRoutesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	data := `routes:
  - exchange: sim
    symbol: BTC-USD
    timeframe: 1h
    strategy: ema-cross
    dna: "5,10,7"
  - exchange: sim
    symbol: ETH-USD
    timeframe: 15m
    strategy: ema-cross
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	routes, err := LoadRoutesFromYAML(path)
	if err != nil {
		t.Fatalf("expected routes to parse, got error: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].Symbol != "BTC-USD" || routes[0].Timeframe != "1h" || routes[0].DNA != "5,10,7" {
		t.Errorf("first route not decoded correctly: %+v", routes[0])
	}
	if routes[1].StrategyName != "ema-cross" {
		t.Errorf("second route strategy not decoded: %+v", routes[1])
	}
}

func TestLoadRoutesFromYAMLRejectsMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	data := `routes:
  - exchange: sim
    symbol: BTC-USD
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRoutesFromYAML(path); err == nil {
		t.Fatal("expected error for route entry missing timeframe and strategy")
	}
}
