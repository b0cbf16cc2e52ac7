package timeframe

import (
	"testing"
	"time"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/guyghost/constantine-backtest/internal/testutils"
	"github.com/shopspring/decimal"
)

func TestToMinutesRejectsUnknownTimeframe(t *testing.T) {
	if _, err := ToMinutes("7m"); err == nil {
		t.Fatal("expected error for unsupported timeframe")
	}
	n, err := ToMinutes("4h")
	if err != nil || n != 240 {
		t.Fatalf("expected 4h -> 240, got %d, %v", n, err)
	}
}

func TestClosesOnExactBoundaries(t *testing.T) {
	cases := []struct {
		tf     string
		i      int
		closes bool
	}{
		{"1m", 0, true},
		{"1m", 7, true},
		{"15m", 13, false},
		{"15m", 14, true},
		{"15m", 29, true},
		{"1h", 59, true},
		{"1h", 60, false},
		{"1d", 1439, true},
	}
	for _, c := range cases {
		if got := Closes(c.tf, c.i); got != c.closes {
			t.Errorf("Closes(%s, %d) = %v, want %v", c.tf, c.i, got, c.closes)
		}
	}
}

func TestClosesUnknownTimeframeNeverCloses(t *testing.T) {
	if Closes("7m", 6) {
		t.Fatal("unsupported timeframe must never close")
	}
}

func TestAggregateMatchesFormula(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := testutils.Flat("BTC-USD", "100", start, 15)
	// Vary the window so the aggregate is distinguishable from any single bar.
	series[3].High = decimal.NewFromInt(120)
	series[9].Low = decimal.NewFromInt(80)
	series[14].Close = decimal.NewFromInt(104)
	series[14].High = decimal.NewFromInt(104)

	agg, err := Aggregate("15m", series, 14)
	if err != nil {
		t.Fatal(err)
	}

	if !agg.Timestamp.Equal(start) {
		t.Errorf("aggregate timestamp should be the window's first, got %s", agg.Timestamp)
	}
	if !agg.Open.Equal(series[0].Open) {
		t.Errorf("open should be first open, got %s", agg.Open)
	}
	if !agg.Close.Equal(decimal.NewFromInt(104)) {
		t.Errorf("close should be last close, got %s", agg.Close)
	}
	if !agg.High.Equal(decimal.NewFromInt(120)) {
		t.Errorf("high should be window max, got %s", agg.High)
	}
	if !agg.Low.Equal(decimal.NewFromInt(80)) {
		t.Errorf("low should be window min, got %s", agg.Low)
	}
	if !agg.Volume.Equal(decimal.NewFromInt(15)) {
		t.Errorf("volume should be window sum, got %s", agg.Volume)
	}
	testutils.AssertValidOHLC(t, []candle.Candle{agg})
}

func TestAggregateRequiresFullWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := testutils.Flat("BTC-USD", "100", start, 10)
	if _, err := Aggregate("15m", series, 9); err == nil {
		t.Fatal("expected error when fewer than k candles precede index i")
	}
}

func TestAggregateRejectsIndexPastSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := testutils.Flat("BTC-USD", "100", start, 15)
	if _, err := Aggregate("15m", series, 20); err == nil {
		t.Fatal("expected error for an index beyond the series")
	}
}
