// Package simulation is the driver: a single-threaded per-minute loop that
// sequences candle ingestion, order matching, timeframe aggregation,
// strategy dispatch and the market-order sweep, and records the daily
// equity curve. Within a minute the ordering is fixed: 1m append, matching
// fills, higher-timeframe aggregation, strategy Execute calls in route
// order, market sweep. Identical inputs produce identical outputs.
package simulation

import (
	"fmt"
	"sort"
	"time"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/guyghost/constantine-backtest/internal/ledger"
	"github.com/guyghost/constantine-backtest/internal/matching"
	"github.com/guyghost/constantine-backtest/internal/orderbook"
	"github.com/guyghost/constantine-backtest/internal/router"
	"github.com/guyghost/constantine-backtest/internal/simerrors"
	"github.com/guyghost/constantine-backtest/internal/telemetry"
	"github.com/guyghost/constantine-backtest/internal/timeframe"
	"github.com/shopspring/decimal"
)

// SymbolKey identifies one (exchange,symbol) pair the driver ingests candles
// for, independent of which timeframe any given route trades it on.
type SymbolKey struct {
	Exchange string
	Symbol   string
}

// Input is everything one simulation run needs. The 1m candle series for
// every SymbolKey must already be validated: strictly increasing, gap-free,
// and of equal length across every key, since the driver advances one
// shared clock over all of them.
type Input struct {
	Candles        map[SymbolKey][]candle.Candle
	Routes         []router.Route
	Registry       *router.Registry
	Accounts       []ledger.Account
	CandleCapacity int
}

// Result is everything a caller needs after a run completes: the
// completed-trades list and the daily-balance time series, plus the
// populated candle store for callers that want every synthesized
// higher-timeframe series.
type Result struct {
	Trades       []ledger.Trade
	DailyBalance []decimal.Decimal
	Store        *candle.Store
}

// Run executes the deterministic per-minute loop over every SymbolKey in
// in.Candles, dispatching in.Routes at their own timeframe cadence.
func Run(in Input) (*Result, error) {
	n, err := commonLength(in.Candles)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, simerrors.New(simerrors.KindCandleMissing, "", fmt.Errorf("simulation: no candles supplied"))
	}

	capacity := in.CandleCapacity
	if capacity <= 0 {
		capacity = n
	}

	store := candle.New(capacity)
	book := orderbook.New()
	lg := ledger.New(in.Accounts...)

	// Iterate SymbolKeys in a fixed order: map iteration order is randomized
	// by the runtime, and two runs of the same input must produce identical
	// output.
	keys := sortedKeys(in.Candles)

	engines := make(map[SymbolKey]*matching.Engine, len(in.Candles))
	for _, key := range keys {
		engines[key] = matching.New(store, book, lg)
	}

	host, err := router.NewHost(in.Routes, in.Registry, store, book, lg)
	if err != nil {
		return nil, err
	}

	if err := host.InitAll(); err != nil {
		return nil, err
	}

	snapshot := func() { lg.Snapshot(activeOrdersView(book)) }
	snapshot()

	// The simulated clock, advanced to the end of each minute before any
	// work for that minute happens. Fills stamped with it land on the
	// minute close.
	var clock time.Time

	fillMarket := func(o *orderbook.Order) error {
		key := candle.SeriesKey{Exchange: o.Exchange, Symbol: o.Symbol, Timeframe: "1m"}
		cur, ok := store.Current(key)
		if !ok {
			return fmt.Errorf("simulation: market order on %s/%s with no 1m candle yet", o.Exchange, o.Symbol)
		}
		side := o.Qty
		if o.Side == orderbook.SideSell {
			side = side.Neg()
		}
		if err := lg.Fill(o.Exchange, o.Symbol, side, cur.Close, clock.UnixMilli()); err != nil {
			return err
		}
		lg.Position(o.Exchange, o.Symbol).CurrentPrice = cur.Close
		telemetry.RecordFill(o.Exchange, o.Symbol)
		return nil
	}

	for i := 0; i < n; i++ {
		clock = in.Candles[keys[0]][i].Timestamp.Add(time.Minute)

		for _, key := range keys {
			series := in.Candles[key]
			eng := engines[key]
			oneMin := candle.SeriesKey{Exchange: key.Exchange, Symbol: key.Symbol, Timeframe: "1m"}
			if err := store.Add(oneMin, series[i]); err != nil {
				return nil, simerrors.New(simerrors.KindCandleGap, key.Symbol, err)
			}
			if err := eng.Process(key.Exchange, key.Symbol, series[i]); err != nil {
				return nil, err
			}
			telemetry.RecordCandle(key.Exchange, key.Symbol)

			for tf := range timeframe.Minutes {
				if tf == "1m" || !timeframe.Closes(tf, i) {
					continue
				}
				agg, err := timeframe.Aggregate(tf, series, i)
				if err != nil {
					return nil, simerrors.New(simerrors.KindMatchingInvariant, key.Symbol, err)
				}
				tfKey := candle.SeriesKey{Exchange: key.Exchange, Symbol: key.Symbol, Timeframe: tf}
				if err := store.Add(tfKey, agg); err != nil {
					return nil, simerrors.New(simerrors.KindCandleGap, key.Symbol, err)
				}
			}
		}

		if err := host.ExecuteClosed(i); err != nil {
			return nil, err
		}

		if err := book.ExecutePendingMarketOrders(fillMarket); err != nil {
			return nil, err
		}

		// Daily cadence: fires on the close of every 1440-candle day, the
		// same boundary convention the timeframe aggregator uses for "1d".
		if (i+1)%1440 == 0 {
			snapshot()
		}
	}

	if err := host.TerminateAll(); err != nil {
		return nil, err
	}
	snapshot()

	return &Result{
		Trades:       lg.Trades(),
		DailyBalance: lg.DailyBalance(),
		Store:        store,
	}, nil
}

// sortedKeys returns every SymbolKey in series, ordered by (exchange,symbol)
// so every run walks them in the same sequence.
func sortedKeys(series map[SymbolKey][]candle.Candle) []SymbolKey {
	keys := make([]SymbolKey, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Exchange != keys[j].Exchange {
			return keys[i].Exchange < keys[j].Exchange
		}
		return keys[i].Symbol < keys[j].Symbol
	})
	return keys
}

// commonLength checks every series shares the same length and returns it.
func commonLength(series map[SymbolKey][]candle.Candle) (int, error) {
	n := -1
	for key, s := range series {
		if n == -1 {
			n = len(s)
			continue
		}
		if len(s) != n {
			return 0, simerrors.New(simerrors.KindCandleGap, key.Symbol,
				fmt.Errorf("simulation: %s/%s has %d candles, expected %d", key.Exchange, key.Symbol, len(s), n))
		}
	}
	if n == -1 {
		return 0, nil
	}
	return n, nil
}

// activeOrdersView adapts orderbook.Book to the minimal view ledger.Snapshot
// needs, keeping ledger free of an import cycle on orderbook.
func activeOrdersView(book *orderbook.Book) func(exchange, symbol string) []ledger.ActiveOrder {
	return func(exchange, symbol string) []ledger.ActiveOrder {
		orders := book.Orders(exchange, symbol)
		out := make([]ledger.ActiveOrder, 0, len(orders))
		for _, o := range orders {
			if o.IsActive() {
				out = append(out, ledger.ActiveOrder{Qty: o.Qty, Price: o.Price})
			}
		}
		return out
	}
}
