// Package utils holds the decimal statistics helpers the reporting layer is
// built from: equity-curve returns, dispersion, and risk-adjusted ratios.
package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// PercentChange calculates the percentage change between two values
func PercentChange(oldValue, newValue decimal.Decimal) decimal.Decimal {
	if oldValue.IsZero() {
		return decimal.Zero
	}
	return newValue.Sub(oldValue).Div(oldValue).Mul(decimal.NewFromInt(100))
}

// Returns converts an equity curve into period-over-period fractional
// returns: r[i] = (curve[i+1] - curve[i]) / curve[i]. Periods starting from a
// zero balance contribute a zero return.
func Returns(curve []decimal.Decimal) []decimal.Decimal {
	if len(curve) < 2 {
		return nil
	}
	out := make([]decimal.Decimal, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1]
		if prev.IsZero() {
			out[i-1] = decimal.Zero
			continue
		}
		out[i-1] = curve[i].Sub(prev).Div(prev)
	}
	return out
}

// Mean returns the arithmetic mean of values, or zero for an empty slice.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// StandardDeviation calculates the population standard deviation of a slice
// of decimals
func StandardDeviation(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}

	mean := Mean(values)

	variance := 0.0
	for _, v := range values {
		diff, _ := v.Sub(mean).Float64()
		variance += diff * diff
	}
	variance /= float64(len(values))

	return decimal.NewFromFloat(math.Sqrt(variance))
}

// SharpeRatio computes the annualized Sharpe ratio of a daily equity curve,
// assuming a zero risk-free rate and periodsPerYear trading periods. Returns
// zero when the curve is too short or has no dispersion.
func SharpeRatio(curve []decimal.Decimal, periodsPerYear int) decimal.Decimal {
	returns := Returns(curve)
	if len(returns) == 0 {
		return decimal.Zero
	}
	std := StandardDeviation(returns)
	if std.IsZero() {
		return decimal.Zero
	}
	annualize := decimal.NewFromFloat(math.Sqrt(float64(periodsPerYear)))
	return Mean(returns).Div(std).Mul(annualize)
}
