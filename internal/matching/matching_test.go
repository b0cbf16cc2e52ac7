package matching

import (
	"testing"
	"time"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/guyghost/constantine-backtest/internal/ledger"
	"github.com/guyghost/constantine-backtest/internal/orderbook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func mkCandle(open, high, low, close, volume string) candle.Candle {
	return candle.Candle{
		Symbol:    "BTC-USD",
		Timestamp: time.Unix(0, 0).UTC(),
		Open:      d(open),
		High:      d(high),
		Low:       d(low),
		Close:     d(close),
		Volume:    d(volume),
	}
}

func TestSplitRejectsPriceOutsideCandle(t *testing.T) {
	c := mkCandle("100", "110", "90", "105", "10")
	_, _, err := Split(c, d("200"))
	assert.Error(t, err)
}

func TestSplitUpCandleConservesOHLCOnBothPieces(t *testing.T) {
	c := mkCandle("100", "120", "90", "110", "20")
	storable, remainder, err := Split(c, d("105"))
	assert.NoError(t, err)

	assert.True(t, storable.Open.Equal(c.Open))
	assert.True(t, storable.Close.Equal(d("105")))
	assert.True(t, remainder.Open.Equal(d("105")))
	assert.True(t, remainder.Close.Equal(c.Close))

	assert.True(t, storable.Low.Equal(c.Low), "storable should carry the low on an up-candle")
	assert.True(t, remainder.High.Equal(c.High), "remainder should carry the high on an up-candle")

	assert.NoError(t, storable.Validate())
	assert.NoError(t, remainder.Validate())

	assert.True(t, storable.Volume.Add(remainder.Volume).Equal(c.Volume), "split must conserve total volume")
}

func TestSplitDownCandleConservesOHLCOnBothPieces(t *testing.T) {
	c := mkCandle("110", "120", "90", "100", "20")
	storable, remainder, err := Split(c, d("105"))
	assert.NoError(t, err)

	assert.True(t, storable.High.Equal(c.High), "storable should carry the high on a down-candle")
	assert.True(t, remainder.Low.Equal(c.Low), "remainder should carry the low on a down-candle")

	assert.NoError(t, storable.Validate())
	assert.NoError(t, remainder.Validate())
	assert.True(t, storable.Volume.Add(remainder.Volume).Equal(c.Volume))
}

func TestSplitZeroRangeCandleAssignsAllVolumeToStorable(t *testing.T) {
	c := mkCandle("100", "100", "100", "100", "5")
	storable, remainder, err := Split(c, d("100"))
	assert.NoError(t, err)
	assert.True(t, storable.Volume.Equal(d("5")))
	assert.True(t, remainder.Volume.IsZero())
}

func TestEngineProcessStoresWholeCandleWhenNoOrderMatches(t *testing.T) {
	store := candle.New(100)
	book := orderbook.New()
	lg := ledger.New(ledger.Account{Name: "sim"})
	eng := New(store, book, lg)

	c := mkCandle("100", "110", "90", "105", "10")
	err := eng.Process("sim", "BTC-USD", c)
	assert.NoError(t, err)

	key := candle.SeriesKey{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "1m"}
	assert.Equal(t, 1, store.Len(key))
	got, ok := store.Current(key)
	assert.True(t, ok)
	assert.True(t, got.Close.Equal(c.Close))
}

func TestEngineProcessFillsSingleLimitOrder(t *testing.T) {
	store := candle.New(100)
	book := orderbook.New()
	lg := ledger.New(ledger.Account{Name: "sim", Balance: d("10000"), FeeRate: d("0.001")})
	eng := New(store, book, lg)

	book.Add("sim", "BTC-USD", orderbook.SideBuy, orderbook.TypeLimit, d("1"), d("95"))

	c := mkCandle("100", "110", "90", "105", "10")
	err := eng.Process("sim", "BTC-USD", c)
	assert.NoError(t, err)

	// Split pieces share the real minute's timestamp, so each successive
	// store overwrites the last; the series ends the minute with R itself.
	key := candle.SeriesKey{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "1m"}
	assert.Equal(t, 1, store.Len(key))
	got, ok := store.Current(key)
	assert.True(t, ok)
	assert.True(t, got.Open.Equal(c.Open))
	assert.True(t, got.High.Equal(c.High))
	assert.True(t, got.Low.Equal(c.Low))
	assert.True(t, got.Close.Equal(c.Close))

	pos := lg.Position("sim", "BTC-USD")
	assert.True(t, pos.Qty.Equal(d("1")))
	assert.True(t, pos.EntryPrice.Equal(d("95")))
	assert.True(t, pos.CurrentPrice.Equal(c.Close), "current price tracks the real candle's close after matching")

	// balance = 10000 - 95 - 95*0.001
	acc := lg.Account("sim")
	assert.True(t, acc.Balance.Equal(d("9904.905")), "got %s", acc.Balance)

	orders := book.Orders("sim", "BTC-USD")
	assert.Equal(t, orderbook.StatusExecuted, orders[0].Status)
}

func TestEngineProcessHandlesTwoOrdersInsertionOrder(t *testing.T) {
	store := candle.New(100)
	book := orderbook.New()
	lg := ledger.New(ledger.Account{Name: "sim", Balance: d("10000")})
	eng := New(store, book, lg)

	book.Add("sim", "BTC-USD", orderbook.SideBuy, orderbook.TypeLimit, d("1"), d("95"))
	book.Add("sim", "BTC-USD", orderbook.SideSell, orderbook.TypeLimit, d("1"), d("108"))

	c := mkCandle("100", "110", "90", "105", "10")
	err := eng.Process("sim", "BTC-USD", c)
	assert.NoError(t, err)

	orders := book.Orders("sim", "BTC-USD")
	assert.Equal(t, orderbook.StatusExecuted, orders[0].Status)
	assert.Equal(t, orderbook.StatusExecuted, orders[1].Status)

	// Buy at 95, sell at 108: position returns to flat with realized PnL.
	pos := lg.Position("sim", "BTC-USD")
	assert.False(t, pos.IsOpen())
	trades := lg.Trades()
	assert.Len(t, trades, 1)
	assert.True(t, trades[0].PnL.Equal(d("13")), "expected (108-95)*1, got %s", trades[0].PnL)

	key := candle.SeriesKey{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "1m"}
	assert.Equal(t, 1, store.Len(key))
}
