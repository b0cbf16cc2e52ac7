// Package timeframe knows the fixed set of supported timeframes and
// synthesizes higher-timeframe candles from trailing windows of 1m candles
// on minute boundaries.
package timeframe

import (
	"fmt"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/shopspring/decimal"
)

// Minutes maps every supported timeframe identifier to its minute count.
var Minutes = map[string]int{
	"1m":  1,
	"3m":  3,
	"5m":  5,
	"15m": 15,
	"30m": 30,
	"1h":  60,
	"2h":  120,
	"3h":  180,
	"4h":  240,
	"6h":  360,
	"8h":  480,
	"1d":  1440,
}

// ToMinutes returns the minute count for a supported timeframe identifier.
func ToMinutes(tf string) (int, error) {
	n, ok := Minutes[tf]
	if !ok {
		return 0, fmt.Errorf("timeframe: unsupported timeframe %q", tf)
	}
	return n, nil
}

// Closes reports whether timeframe tf closes at zero-based 1m index i, i.e.
// (i+1) mod minutes(tf) == 0.
func Closes(tf string, i int) bool {
	k, err := ToMinutes(tf)
	if err != nil {
		return false
	}
	return (i+1)%k == 0
}

// Aggregate synthesizes the timeframe candle that closes at index i from the
// trailing k = minutes(tf) one-minute candles ending at i (inclusive):
//
//	open      = first.open
//	close     = last.close
//	high      = max(high)
//	low       = min(low)
//	volume    = Σ volume
//	timestamp = first.timestamp
//
// oneMinute must contain at least k candles ending at index i.
func Aggregate(tf string, oneMinute []candle.Candle, i int) (candle.Candle, error) {
	k, err := ToMinutes(tf)
	if err != nil {
		return candle.Candle{}, err
	}
	if i+1 < k || i >= len(oneMinute) {
		return candle.Candle{}, fmt.Errorf("timeframe: not enough 1m candles to close %s at index %d", tf, i)
	}
	window := oneMinute[i-k+1 : i+1]
	first, last := window[0], window[len(window)-1]

	out := candle.Candle{
		Symbol:    first.Symbol,
		Timestamp: first.Timestamp,
		Open:      first.Open,
		Close:     last.Close,
		High:      first.High,
		Low:       first.Low,
		Volume:    first.Volume,
	}
	for _, c := range window[1:] {
		out.High = decimal.Max(out.High, c.High)
		out.Low = decimal.Min(out.Low, c.Low)
		out.Volume = out.Volume.Add(c.Volume)
	}
	return out, nil
}
