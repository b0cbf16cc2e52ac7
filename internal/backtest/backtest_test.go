package backtest

import (
	"testing"
	"time"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/guyghost/constantine-backtest/internal/router"
	"github.com/guyghost/constantine-backtest/internal/simerrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type fakeLoader struct {
	series map[string][]candle.Candle
	err    error
}

func (f *fakeLoader) Load(exchange, symbol string, start, finish time.Time) ([]candle.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.series[exchange+":"+symbol], nil
}

func flatMinutes(start, finish time.Time, price string) []candle.Candle {
	p, _ := decimal.NewFromString(price)
	var out []candle.Candle
	for t := start; !t.After(finish); t = t.Add(time.Minute) {
		out = append(out, candle.Candle{Symbol: "BTC-USD", Timestamp: t, Open: p, High: p, Low: p, Close: p, Volume: decimal.NewFromInt(1)})
	}
	return out
}

type noop struct{}

func (noop) InitObjects(*router.Context) error { return nil }
func (noop) Execute(*router.Context) error     { return nil }
func (noop) Terminate(*router.Context) error   { return nil }

func newRegistry() *router.Registry {
	reg := router.NewRegistry()
	reg.Register("noop", func(string) (router.Strategy, error) { return noop{}, nil })
	return reg
}

func TestRunRejectsNonAfterFinish(t *testing.T) {
	_, err := Run(Request{StartDate: "2024-01-02", FinishDate: "2024-01-01", Registry: newRegistry(),
		Routes: []router.Route{{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "1m", StrategyName: "noop"}}}, &fakeLoader{})
	assert.True(t, simerrors.Is(err, simerrors.KindInvalidDateRange))
}

func TestRunRejectsFutureFinish(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := Run(Request{StartDate: "2024-01-01", FinishDate: "2025-01-01", Now: now, Registry: newRegistry(),
		Routes: []router.Route{{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "1m", StrategyName: "noop"}}}, &fakeLoader{})
	assert.True(t, simerrors.Is(err, simerrors.KindFutureDateRequest))
}

func TestRunRejectsNoRoutes(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := Run(Request{StartDate: "2024-01-01", FinishDate: "2024-01-02", Now: now, Registry: newRegistry()}, &fakeLoader{})
	assert.True(t, simerrors.Is(err, simerrors.KindRouteValidation))
}

func TestRunEndToEnd(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// FinishDate is exclusive of its final minute: 2024-01-02 00:00 minus one
	// minute is 2024-01-01 23:59, i.e. exactly one day of 1m candles.
	finish := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Add(-time.Minute)
	series := flatMinutes(start, finish, "100")

	loader := &fakeLoader{series: map[string][]candle.Candle{"sim:BTC-USD": series}}

	res, err := Run(Request{
		StartDate: "2024-01-01", FinishDate: "2024-01-02", Now: now,
		Registry:       newRegistry(),
		Routes:         []router.Route{{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "1m", StrategyName: "noop"}},
		InitialBalance: decimal.NewFromInt(1000),
	}, loader)
	assert.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Len(t, res.DailyBalance, 3)
}
