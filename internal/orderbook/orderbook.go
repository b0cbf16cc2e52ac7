// Package orderbook holds the set of pending orders per (exchange,symbol),
// kept in insertion order. Orders fill whole or not at all; there are no
// partial fills.
package orderbook

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/guyghost/constantine-backtest/internal/simerrors"
	"github.com/guyghost/constantine-backtest/internal/telemetry"
	"github.com/shopspring/decimal"
)

// Side is buy or sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Type is the order type.
type Type string

const (
	TypeMarket Type = "market"
	TypeLimit  Type = "limit"
	TypeStop   Type = "stop"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusExecuted Status = "executed"
	StatusCanceled Status = "canceled"
)

// Order is a trading intent submitted by a strategy.
type Order struct {
	ID       string
	Exchange string
	Symbol   string
	Side     Side
	Type     Type
	Qty      decimal.Decimal
	Price    decimal.Decimal
	Status   Status
}

// IsActive reports whether the order can still be matched.
func (o *Order) IsActive() bool {
	return o.Status == StatusActive
}

// bookKey identifies one (exchange,symbol) order book.
type bookKey struct {
	Exchange string
	Symbol   string
}

// Book holds pending orders for every (exchange,symbol) pair, each kept in
// insertion order. Insertion order decides matching tie-breaks.
type Book struct {
	orders   map[bookKey][]*Order
	byID     map[string]*Order
	keyOrder []bookKey
}

// New creates an empty order book.
func New() *Book {
	return &Book{
		orders: make(map[bookKey][]*Order),
		byID:   make(map[string]*Order),
	}
}

// Add inserts a new order. Market orders are created active and picked up by
// the next ExecutePendingMarketOrders sweep, which runs once per minute after
// strategy dispatch. Limit and stop orders are created active, awaiting the
// matching engine.
func (b *Book) Add(exchange, symbol string, side Side, typ Type, qty, price decimal.Decimal) *Order {
	o := &Order{
		ID:       uuid.New().String(),
		Exchange: exchange,
		Symbol:   symbol,
		Side:     side,
		Type:     typ,
		Qty:      qty,
		Price:    price,
		Status:   StatusActive,
	}
	key := bookKey{exchange, symbol}
	if _, seen := b.orders[key]; !seen {
		b.keyOrder = append(b.keyOrder, key)
	}
	b.orders[key] = append(b.orders[key], o)
	b.byID[o.ID] = o
	telemetry.RecordOrder(exchange, string(side), string(typ))
	return o
}

// Cancel transitions an active order to canceled.
func (b *Book) Cancel(id string) error {
	o, ok := b.byID[id]
	if !ok {
		return simerrors.New(simerrors.KindRouteValidation, id, fmt.Errorf("orderbook: unknown order"))
	}
	if o.Status == StatusActive {
		o.Status = StatusCanceled
	}
	return nil
}

// Activate re-arms a canceled order by marking it active again. Executed
// orders are left untouched, so an order executes at most once.
func (b *Book) Activate(id string) error {
	o, ok := b.byID[id]
	if !ok {
		return simerrors.New(simerrors.KindRouteValidation, id, fmt.Errorf("orderbook: unknown order"))
	}
	if o.Status == StatusCanceled {
		o.Status = StatusActive
	}
	return nil
}

// Get looks an order up by id.
func (b *Book) Get(id string) (*Order, bool) {
	o, ok := b.byID[id]
	return o, ok
}

// Orders returns the live, insertion-ordered handle slice for
// (exchange,symbol). The matching engine re-fetches this on every pass of its
// loop. No callback runs on a fill, so a pass only sees orders that were
// already in the book when the minute's matching began.
func (b *Book) Orders(exchange, symbol string) []*Order {
	return b.orders[bookKey{exchange, symbol}]
}

// ExecutePendingMarketOrders scans every book and executes any order whose
// Type is market and Status is active, in insertion order, invoking fill for
// each. It is the driver's once-per-minute market order sweep, run after
// every route has had a chance to submit orders.
func (b *Book) ExecutePendingMarketOrders(fill func(o *Order) error) error {
	for _, key := range b.keyOrder {
		for _, o := range b.orders[key] {
			if o.Type != TypeMarket || o.Status != StatusActive {
				continue
			}
			if err := fill(o); err != nil {
				return simerrors.New(simerrors.KindStrategyRuntime, key.Symbol, err)
			}
			o.Status = StatusExecuted
		}
	}
	return nil
}
