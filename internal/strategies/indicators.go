// Package strategies holds the sample strategies bundled with the
// simulation engine plus the technical-indicator helpers they're built from.
package strategies

import (
	"github.com/shopspring/decimal"
)

// EMA calculates the Exponential Moving Average.
func EMA(prices []decimal.Decimal, period int) []decimal.Decimal {
	if period <= 0 || len(prices) < period {
		return []decimal.Decimal{}
	}

	result := make([]decimal.Decimal, len(prices))
	multiplier := decimal.NewFromFloat(2.0 / float64(period+1))

	sum := decimal.Zero
	for i := 0; i < period; i++ {
		sum = sum.Add(prices[i])
	}
	result[period-1] = sum.Div(decimal.NewFromInt(int64(period)))

	for i := period; i < len(prices); i++ {
		result[i] = prices[i].Sub(result[i-1]).Mul(multiplier).Add(result[i-1])
	}

	return result[period-1:]
}

// RSI calculates the Relative Strength Index.
func RSI(prices []decimal.Decimal, period int) []decimal.Decimal {
	if period <= 0 || len(prices) < period+1 {
		return []decimal.Decimal{}
	}

	gains := make([]decimal.Decimal, len(prices)-1)
	losses := make([]decimal.Decimal, len(prices)-1)

	for i := 1; i < len(prices); i++ {
		change := prices[i].Sub(prices[i-1])
		if change.GreaterThan(decimal.Zero) {
			gains[i-1] = change
			losses[i-1] = decimal.Zero
		} else {
			gains[i-1] = decimal.Zero
			losses[i-1] = change.Abs()
		}
	}

	gainEMA := EMA(gains, period)
	lossEMA := EMA(losses, period)

	length := len(gainEMA)
	if len(lossEMA) < length {
		length = len(lossEMA)
	}
	if length == 0 {
		return []decimal.Decimal{}
	}

	result := make([]decimal.Decimal, length)
	for i := 0; i < length; i++ {
		loss := lossEMA[i]
		if loss.IsZero() {
			result[i] = decimal.NewFromInt(100)
			continue
		}
		rs := gainEMA[i].Div(loss)
		result[i] = decimal.NewFromInt(100).Sub(decimal.NewFromInt(100).Div(decimal.NewFromInt(1).Add(rs)))
	}

	return result
}
