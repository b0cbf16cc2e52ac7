package strategies

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guyghost/constantine-backtest/internal/orderbook"
	"github.com/guyghost/constantine-backtest/internal/router"
	"github.com/shopspring/decimal"
)

// emaCrossHyperParameters are the EMA-cross strategy's tunable knobs,
// decoded from a route's DNA string.
type emaCrossHyperParameters struct {
	ShortPeriod   int
	LongPeriod    int
	RSIPeriod     int
	RSIOversold   decimal.Decimal
	RSIOverbought decimal.Decimal
	Qty           decimal.Decimal
}

func defaultEMACrossHyperParameters() emaCrossHyperParameters {
	return emaCrossHyperParameters{
		ShortPeriod:   12,
		LongPeriod:    26,
		RSIPeriod:     14,
		RSIOversold:   decimal.NewFromInt(30),
		RSIOverbought: decimal.NewFromInt(70),
		Qty:           decimal.NewFromInt(1),
	}
}

// decodeEMACrossDNA parses a comma-separated
// "short,long,rsiPeriod,oversold,overbought,qty" DNA string, falling back to
// the default for any field left blank or malformed.
func decodeEMACrossDNA(dna string) emaCrossHyperParameters {
	hp := defaultEMACrossHyperParameters()
	if dna == "" {
		return hp
	}
	fields := strings.Split(dna, ",")
	get := func(i int) (string, bool) {
		if i >= len(fields) || strings.TrimSpace(fields[i]) == "" {
			return "", false
		}
		return strings.TrimSpace(fields[i]), true
	}
	if v, ok := get(0); ok {
		if n, err := strconv.Atoi(v); err == nil {
			hp.ShortPeriod = n
		}
	}
	if v, ok := get(1); ok {
		if n, err := strconv.Atoi(v); err == nil {
			hp.LongPeriod = n
		}
	}
	if v, ok := get(2); ok {
		if n, err := strconv.Atoi(v); err == nil {
			hp.RSIPeriod = n
		}
	}
	if v, ok := get(3); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			hp.RSIOversold = d
		}
	}
	if v, ok := get(4); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			hp.RSIOverbought = d
		}
	}
	if v, ok := get(5); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			hp.Qty = d
		}
	}
	return hp
}

// EMACross is a sample strategy: when flat, go long while the short EMA is
// above the long EMA and RSI is below the oversold level; flatten a long
// position while the short EMA is below the long EMA or RSI is above the
// overbought level. It compares the latest EMA values only, so it does not
// wait for a fresh crossover. It executes on its route's own timeframe.
type EMACross struct {
	hp emaCrossHyperParameters
}

// NewEMACross is a router.Factory for the "ema-cross" strategy name.
func NewEMACross(dna string) (router.Strategy, error) {
	hp := decodeEMACrossDNA(dna)
	if hp.ShortPeriod <= 0 || hp.LongPeriod <= 0 || hp.RSIPeriod <= 0 {
		return nil, fmt.Errorf("strategies: ema-cross periods must be positive")
	}
	if hp.ShortPeriod >= hp.LongPeriod {
		return nil, fmt.Errorf("strategies: ema-cross short period must be less than long period")
	}
	return &EMACross{hp: hp}, nil
}

// Register adds every sample strategy in this package to reg.
func Register(reg *router.Registry) {
	reg.Register("ema-cross", NewEMACross)
}

func (s *EMACross) InitObjects(ctx *router.Context) error {
	return nil
}

func (s *EMACross) Execute(ctx *router.Context) error {
	candles := ctx.Series(ctx.Route.Timeframe)
	need := s.hp.LongPeriod + 1
	if len(candles) < need {
		return nil
	}

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	shortEMA := EMA(closes, s.hp.ShortPeriod)
	longEMA := EMA(closes, s.hp.LongPeriod)
	rsi := RSI(closes, s.hp.RSIPeriod)
	if len(shortEMA) == 0 || len(longEMA) == 0 || len(rsi) == 0 {
		return nil
	}

	curShort := shortEMA[len(shortEMA)-1]
	curLong := longEMA[len(longEMA)-1]
	curRSI := rsi[len(rsi)-1]
	pos := ctx.Position

	switch {
	case curShort.GreaterThan(curLong) && curRSI.LessThan(s.hp.RSIOversold) && !pos.IsOpen():
		ctx.SubmitMarket(orderbook.SideBuy, s.hp.Qty)
	case curShort.LessThan(curLong) && pos.IsOpen() && pos.Qty.IsPositive():
		ctx.SubmitMarket(orderbook.SideSell, pos.Qty)
	case curRSI.GreaterThan(s.hp.RSIOverbought) && pos.IsOpen() && pos.Qty.IsPositive():
		ctx.SubmitMarket(orderbook.SideSell, pos.Qty)
	}
	return nil
}

func (s *EMACross) Terminate(ctx *router.Context) error {
	return nil
}
