// Package ledger tracks open positions, per-exchange cash balances,
// closed-trade records, and the daily equity curve for a simulation run.
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/guyghost/constantine-backtest/internal/telemetry"
	"github.com/shopspring/decimal"
)

// balanceTickPlaces is the balance rounding tick (1e-8), applied so fee
// arithmetic stays byte-identical across platforms.
const balanceTickPlaces = 8

// Side of a closed trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Account is one exchange's cash balance and fee schedule.
type Account struct {
	Name    string
	Balance decimal.Decimal
	FeeRate decimal.Decimal
}

// Position is the net signed holding in one (exchange,symbol) pair.
type Position struct {
	Exchange     string
	Symbol       string
	Qty          decimal.Decimal // signed: positive long, negative short
	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
	OpenedAt     int64  // unix millis of the fill that opened the position
	StrategyRef  string // non-owning back-reference, resolved through Router
}

// IsOpen reports whether the position holds any quantity.
func (p *Position) IsOpen() bool {
	return !p.Qty.IsZero()
}

// Value is the mark-to-market notional of the position.
func (p *Position) Value() decimal.Decimal {
	return p.Qty.Abs().Mul(p.CurrentPrice)
}

// Trade is a closed-quantity record, emitted whenever a fill reduces, closes
// or flips a position.
type Trade struct {
	ID         string
	Exchange   string
	Symbol     string
	Side       Side
	OpenedAt   int64 // unix millis
	ClosedAt   int64
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	Qty        decimal.Decimal
	PnL        decimal.Decimal
}

type posKey struct {
	Exchange string
	Symbol   string
}

// Ledger owns every Account, Position and closed Trade for the run, plus the
// append-only daily-balance sequence. It is mutated only by the matching
// engine and the simulation driver, never concurrently.
type Ledger struct {
	accounts     map[string]*Account
	positions    map[posKey]*Position
	trades       []Trade
	dailyBalance []decimal.Decimal
}

// New creates a ledger with the given starting accounts.
func New(accounts ...Account) *Ledger {
	l := &Ledger{
		accounts:  make(map[string]*Account),
		positions: make(map[posKey]*Position),
	}
	for _, a := range accounts {
		acc := a
		l.accounts[a.Name] = &acc
	}
	return l
}

// Account returns the named exchange account, creating a zero-balance one
// the first time it's referenced.
func (l *Ledger) Account(name string) *Account {
	acc, ok := l.accounts[name]
	if !ok {
		acc = &Account{Name: name}
		l.accounts[name] = acc
	}
	return acc
}

// Position returns the (exchange,symbol) position, creating a flat one the
// first time it's referenced. Positions always exist, open or not.
func (l *Ledger) Position(exchange, symbol string) *Position {
	key := posKey{exchange, symbol}
	p, ok := l.positions[key]
	if !ok {
		p = &Position{Exchange: exchange, Symbol: symbol}
		l.positions[key] = p
	}
	return p
}

// Positions returns every position the ledger has ever touched.
func (l *Ledger) Positions() []*Position {
	out := make([]*Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	return out
}

// Trades returns every closed trade, in the order they closed.
func (l *Ledger) Trades() []Trade {
	return l.trades
}

// DailyBalance returns the append-only equity snapshot sequence.
func (l *Ledger) DailyBalance() []decimal.Decimal {
	return l.dailyBalance
}

// Fill applies a fill of qty (signed: positive = buy, negative = sell) at
// price against the (exchange,symbol) position, updating the exchange
// balance by the cash effect and emitting a Trade for the closed quantity
// whenever the fill is on the opposite side of an open position (a partial
// reduction, a close to flat, or a flip). ts is the fill's timestamp in unix millis;
// a Trade's OpenedAt is the ts of the fill that opened the position.
func (l *Ledger) Fill(exchange, symbol string, side decimal.Decimal, price decimal.Decimal, ts int64) error {
	if side.IsZero() {
		return fmt.Errorf("ledger: zero-quantity fill")
	}
	pos := l.Position(exchange, symbol)
	acc := l.Account(exchange)
	fee := price.Abs().Mul(side.Abs()).Mul(acc.FeeRate)

	// Cash effect: buying spends cash, selling receives it, fee always a cost.
	cash := price.Mul(side).Neg().Sub(fee)
	acc.Balance = acc.Balance.Add(cash).Round(balanceTickPlaces)

	switch {
	case pos.Qty.IsZero():
		pos.Qty = side
		pos.EntryPrice = price
		pos.OpenedAt = ts
	case sameSign(pos.Qty, side):
		// Quantity-weighted average entry price.
		totalQty := pos.Qty.Add(side)
		pos.EntryPrice = pos.EntryPrice.Mul(pos.Qty.Abs()).
			Add(price.Mul(side.Abs())).
			Div(totalQty.Abs())
		pos.Qty = totalQty
	default:
		closingQty := decimal.Min(pos.Qty.Abs(), side.Abs())
		direction := decimal.NewFromInt(1)
		tradeSide := SideLong
		if pos.Qty.IsNegative() {
			direction = decimal.NewFromInt(-1)
			tradeSide = SideShort
		}
		pnl := price.Sub(pos.EntryPrice).Mul(closingQty).Mul(direction).Sub(fee).Round(balanceTickPlaces)

		l.trades = append(l.trades, Trade{
			ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%s/%d/%d", exchange, symbol, ts, len(l.trades)))).String(),
			Exchange:   exchange,
			Symbol:     symbol,
			Side:       tradeSide,
			OpenedAt:   pos.OpenedAt,
			ClosedAt:   ts,
			EntryPrice: pos.EntryPrice,
			ExitPrice:  price,
			Qty:        closingQty,
			PnL:        pnl,
		})
		telemetry.RecordTrade(exchange, pnl)

		remaining := pos.Qty.Add(side)
		if remaining.Sign() != pos.Qty.Sign() && !remaining.IsZero() {
			// The fill flipped the position: the excess opens the other side.
			pos.EntryPrice = price
			pos.OpenedAt = ts
		}
		pos.Qty = remaining
	}
	pos.CurrentPrice = price
	return nil
}

func sameSign(a, b decimal.Decimal) bool {
	return a.Sign() == b.Sign()
}

// Snapshot appends a daily-balance entry:
//
//	sum of account balances
//	+ sum of |open position qty x current price|
//	+ for flat positions with still-active orders, sum of |order qty x price|
//
// The third term treats resting order notional on a flat position as
// reserved margin; see DESIGN.md.
func (l *Ledger) Snapshot(activeOrders func(exchange, symbol string) []ActiveOrder) {
	total := decimal.Zero
	for _, acc := range l.accounts {
		total = total.Add(acc.Balance)
	}
	for _, pos := range l.positions {
		if pos.IsOpen() {
			total = total.Add(pos.Value())
			continue
		}
		for _, o := range activeOrders(pos.Exchange, pos.Symbol) {
			total = total.Add(o.Qty.Mul(o.Price).Abs())
		}
	}
	total = total.Round(balanceTickPlaces)
	l.dailyBalance = append(l.dailyBalance, total)
	telemetry.SetEquity(total)
}

// ActiveOrder is the minimal view Snapshot needs from the order book, kept
// free of an import cycle on internal/orderbook.
type ActiveOrder struct {
	Qty   decimal.Decimal
	Price decimal.Decimal
}
