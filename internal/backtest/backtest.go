// Package backtest is the public entry point: it validates a requested date
// range, loads every route's candle series through a loader, runs the
// simulation driver, and returns the completed-trades list and daily-balance
// series. The finish date is exclusive of its final minute; equal or
// inverted dates and future dates are rejected before any candle is loaded.
package backtest

import (
	"fmt"
	"time"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/guyghost/constantine-backtest/internal/ledger"
	"github.com/guyghost/constantine-backtest/internal/logger"
	"github.com/guyghost/constantine-backtest/internal/router"
	"github.com/guyghost/constantine-backtest/internal/simerrors"
	"github.com/guyghost/constantine-backtest/internal/simulation"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Loader supplies the 1m candle series for one (exchange,symbol) over a
// closed time range.
type Loader interface {
	Load(exchange, symbol string, start, finish time.Time) ([]candle.Candle, error)
}

// Request is one backtest run's inputs.
type Request struct {
	StartDate      string // "YYYY-MM-DD"
	FinishDate     string // "YYYY-MM-DD", exclusive of its final minute
	Routes         []router.Route
	Registry       *router.Registry
	InitialBalance decimal.Decimal
	FeeRate        decimal.Decimal
	CandleCapacity int
	// Now overrides the clock used for the future-date check; defaults to
	// time.Now when zero, letting tests pin "today".
	Now time.Time
}

// Result is the simulation's public output.
type Result struct {
	Trades       []ledger.Trade
	DailyBalance []decimal.Decimal
	Store        *candle.Store
}

// Run validates req, loads every route's candle series, and executes the
// simulation.
func Run(req Request, loader Loader) (*Result, error) {
	start, finish, err := validateDateRange(req.StartDate, req.FinishDate, req.Now)
	if err != nil {
		return nil, err
	}
	if len(req.Routes) == 0 {
		return nil, simerrors.New(simerrors.KindRouteValidation, "", fmt.Errorf("backtest: no routes configured"))
	}

	finishMinute := finish.Add(-time.Minute)

	candles := make(map[simulation.SymbolKey][]candle.Candle)
	exchanges := make(map[string]struct{})
	for _, rt := range req.Routes {
		key := simulation.SymbolKey{Exchange: rt.Exchange, Symbol: rt.Symbol}
		exchanges[rt.Exchange] = struct{}{}
		if _, ok := candles[key]; ok {
			continue
		}
		series, err := loader.Load(rt.Exchange, rt.Symbol, start, finishMinute)
		if err != nil {
			return nil, err
		}
		logger.Component("dataloader").Info("candles loaded",
			"exchange", rt.Exchange, "symbol", rt.Symbol, "count", len(series))
		candles[key] = series
	}

	accounts := make([]ledger.Account, 0, len(exchanges))
	for name := range exchanges {
		accounts = append(accounts, ledger.Account{Name: name, Balance: req.InitialBalance, FeeRate: req.FeeRate})
	}

	res, err := simulation.Run(simulation.Input{
		Candles:        candles,
		Routes:         req.Routes,
		Registry:       req.Registry,
		Accounts:       accounts,
		CandleCapacity: req.CandleCapacity,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Trades: res.Trades, DailyBalance: res.DailyBalance, Store: res.Store}, nil
}

// validateDateRange rejects malformed, inverted and future date ranges
// before any candle is loaded.
func validateDateRange(startStr, finishStr string, now time.Time) (start, finish time.Time, err error) {
	start, err = time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, simerrors.New(simerrors.KindInvalidDateRange, startStr, err)
	}
	finish, err = time.Parse(dateLayout, finishStr)
	if err != nil {
		return time.Time{}, time.Time{}, simerrors.New(simerrors.KindInvalidDateRange, finishStr, err)
	}
	start, finish = start.UTC(), finish.UTC()

	if !finish.After(start) {
		return time.Time{}, time.Time{}, simerrors.New(simerrors.KindInvalidDateRange, startStr,
			fmt.Errorf("backtest: finish date %s must be after start date %s", finishStr, startStr))
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	if finish.After(now) {
		return time.Time{}, time.Time{}, simerrors.New(simerrors.KindFutureDateRequest, finishStr,
			fmt.Errorf("backtest: finish date %s is in the future", finishStr))
	}

	return start, finish, nil
}
