// Package testutils provides shared candle fixtures and OHLC-invariant
// assertions for tests across the simulation engine's packages.
package testutils

import (
	"testing"
	"time"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/shopspring/decimal"
)

// Flat builds n consecutive 1m candles at a constant price, starting at
// start.
func Flat(symbol, price string, start time.Time, n int) []candle.Candle {
	p := mustDecimal(price)
	out := make([]candle.Candle, n)
	for i := range out {
		out[i] = candle.Candle{
			Symbol: symbol, Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open: p, High: p, Low: p, Close: p, Volume: decimal.NewFromInt(1),
		}
	}
	return out
}

// WithGap removes the candle at index i from a series, producing a
// missing-minute fixture.
func WithGap(series []candle.Candle, i int) []candle.Candle {
	out := make([]candle.Candle, 0, len(series)-1)
	out = append(out, series[:i]...)
	return append(out, series[i+1:]...)
}

// AssertValidOHLC fails t if any candle in series violates the invariant
// low <= min(open,close) <= max(open,close) <= high, volume >= 0.
func AssertValidOHLC(t *testing.T, series []candle.Candle) {
	t.Helper()
	for i, c := range series {
		if err := c.Validate(); err != nil {
			t.Errorf("candle %d: %v", i, err)
		}
	}
}

// AssertMonotonicTimestamps fails t if series is not non-decreasing in
// timestamp.
func AssertMonotonicTimestamps(t *testing.T, series []candle.Candle) {
	t.Helper()
	for i := 1; i < len(series); i++ {
		if series[i].Timestamp.Before(series[i-1].Timestamp) {
			t.Errorf("candle %d timestamp %s precedes candle %d timestamp %s",
				i, series[i].Timestamp, i-1, series[i-1].Timestamp)
		}
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
