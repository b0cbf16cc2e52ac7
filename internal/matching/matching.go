// Package matching simulates intracandle price movement against resting
// orders: given a newly-arrived real 1m candle, it iteratively splits the
// candle at active order prices and fires fills until no remaining active
// order intersects what's left of the candle.
package matching

import (
	"fmt"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/guyghost/constantine-backtest/internal/ledger"
	"github.com/guyghost/constantine-backtest/internal/orderbook"
	"github.com/guyghost/constantine-backtest/internal/simerrors"
	"github.com/guyghost/constantine-backtest/internal/telemetry"
	"github.com/shopspring/decimal"
)

// Ledger is the subset of the ledger the matching engine updates on fill.
type Ledger interface {
	Fill(exchange, symbol string, side decimal.Decimal, price decimal.Decimal, ts int64) error
	Position(exchange, symbol string) *ledger.Position
}

// Engine runs the candle-splitting match algorithm against one order book.
type Engine struct {
	store *candle.Store
	book  *orderbook.Book
	lg    Ledger
}

// New creates a matching engine bound to a candle store, order book and
// ledger, the three collaborators the driver owns for the run.
func New(store *candle.Store, book *orderbook.Book, lg Ledger) *Engine {
	return &Engine{store: store, book: book, lg: lg}
}

// Process runs the matching algorithm for a just-arrived real 1m candle R on
// (exchange,symbol):
//
//  1. fetch the current order snapshot;
//  2. if nothing active intersects the remainder, store R (overwriting the
//     last split piece written for this minute) and stop;
//  3. otherwise split at the first (insertion order) matching order's price,
//     store the piece, fill the order, and continue against the remainder.
func (e *Engine) Process(exchange, symbol string, r candle.Candle) error {
	key := candle.SeriesKey{Exchange: exchange, Symbol: symbol, Timeframe: "1m"}
	remainder := r

	for {
		orders := e.book.Orders(exchange, symbol)
		match := firstMatch(orders, remainder)
		if match == nil {
			// Store the real candle, overwriting the last split piece for
			// this minute, so the series always ends the minute with R.
			if err := e.store.Add(key, r); err != nil {
				return simerrors.New(simerrors.KindCandleGap, symbol, err)
			}
			e.lg.Position(exchange, symbol).CurrentPrice = r.Close
			return nil
		}

		storable, next, err := Split(remainder, match.Price)
		if err != nil {
			return simerrors.New(simerrors.KindMatchingInvariant, symbol, err)
		}
		if err := e.store.Add(key, storable); err != nil {
			return simerrors.New(simerrors.KindCandleGap, symbol, err)
		}
		e.lg.Position(exchange, symbol).CurrentPrice = storable.Close

		side := match.Qty
		if match.Side == orderbook.SideSell {
			side = match.Qty.Neg()
		}
		if err := e.lg.Fill(exchange, symbol, side, match.Price, storable.Timestamp.UnixMilli()); err != nil {
			return simerrors.New(simerrors.KindStrategyRuntime, symbol, err)
		}
		match.Status = orderbook.StatusExecuted
		telemetry.RecordFill(exchange, symbol)

		remainder = next
	}
}

// firstMatch returns the first active order (insertion order) whose price
// lies inside c, or nil if none does. When multiple active orders share a
// price inside the candle, insertion order wins.
func firstMatch(orders []*orderbook.Order, c candle.Candle) *orderbook.Order {
	for _, o := range orders {
		if o.IsActive() && c.Includes(o.Price) {
			return o
		}
	}
	return nil
}

// Split divides c at price into (storable, remainder):
//
//   - storable spans the candle's start up to the touch of price: its open
//     is c.Open, its close is price, and its high/low are clamped to
//     whichever side of [open,price] the original extreme naturally
//     belongs to on the assumed open-to-extreme-to-price path.
//   - remainder continues from price to the original close, carrying
//     whichever extreme storable didn't claim.
//
// Ties (the extreme sits exactly on the split boundary, or open==close) are
// broken by the direction of sign(close-open): an up-candle assigns the low
// to storable and the high to remainder, a down-candle the reverse, on the
// assumption the price visits the open-side extreme before the close-side
// one.
func Split(c candle.Candle, price decimal.Decimal) (storable, remainder candle.Candle, err error) {
	if !c.Includes(price) {
		return candle.Candle{}, candle.Candle{}, fmt.Errorf(
			"matching: split price %s outside candle [%s,%s]", price, c.Low, c.High)
	}

	storable = candle.Candle{Symbol: c.Symbol, Timestamp: c.Timestamp, Open: c.Open, Close: price}
	remainder = candle.Candle{Symbol: c.Symbol, Timestamp: c.Timestamp, Open: price, Close: c.Close, Volume: decimal.Zero}

	storable.High = decimal.Max(c.Open, price)
	storable.Low = decimal.Min(c.Open, price)

	up := c.Close.GreaterThanOrEqual(c.Open)

	// Assign the real candle's extremes to whichever side could plausibly
	// have touched them first on the assumed path. An up-candle is assumed
	// to dip to its low before climbing to its high; a down-candle the
	// reverse. Each extreme therefore belongs to the piece containing the
	// leg of the path it falls on.
	if up {
		storable.Low = decimal.Min(storable.Low, c.Low)
		remainder.High = decimal.Max(decimal.Max(price, c.Close), c.High)
		remainder.Low = decimal.Min(price, c.Close)
	} else {
		storable.High = decimal.Max(storable.High, c.High)
		remainder.Low = decimal.Min(decimal.Min(price, c.Close), c.Low)
		remainder.High = decimal.Max(price, c.Close)
	}

	// Volume is split pro rata by each piece's share of the original range;
	// the remainder takes the exact rest so the pieces always sum to the
	// original volume.
	totalRange := c.High.Sub(c.Low)
	if totalRange.IsZero() {
		storable.Volume = c.Volume
		remainder.Volume = decimal.Zero
		return storable, remainder, nil
	}
	storableRange := storable.High.Sub(storable.Low)
	share := storableRange.Div(totalRange)
	storable.Volume = c.Volume.Mul(share).Round(8)
	remainder.Volume = c.Volume.Sub(storable.Volume)

	return storable, remainder, nil
}
