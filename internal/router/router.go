// Package router holds the immutable route table, instantiates one strategy
// per route through a name-keyed registry, and dispatches each strategy's
// callbacks at its own timeframe cadence.
package router

import (
	"fmt"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/guyghost/constantine-backtest/internal/ledger"
	"github.com/guyghost/constantine-backtest/internal/orderbook"
	"github.com/guyghost/constantine-backtest/internal/simerrors"
	"github.com/guyghost/constantine-backtest/internal/telemetry"
	"github.com/guyghost/constantine-backtest/internal/timeframe"
	"github.com/shopspring/decimal"
)

// Route identifies one strategy instance, immutable for the duration of the
// run once the host is built.
type Route struct {
	Exchange     string
	Symbol       string
	Timeframe    string
	StrategyName string
	DNA          string
}

func (r Route) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", r.Exchange, r.Symbol, r.Timeframe, r.StrategyName)
}

// Context is the mutable-state handle a strategy receives on every callback.
// Strategies interact with the simulation exclusively through it: reading
// candles, reading their own position, and submitting orders.
type Context struct {
	Route    Route
	Candles  *candle.Store
	Book     *orderbook.Book
	Position *ledger.Position
}

// Current returns the tail candle of the route's own series.
func (c *Context) Current() (candle.Candle, bool) {
	return c.Candles.Current(candle.SeriesKey{Exchange: c.Route.Exchange, Symbol: c.Route.Symbol, Timeframe: c.Route.Timeframe})
}

// Series returns the route's own series for a given timeframe, letting a
// strategy read a higher timeframe than the one it executes on.
func (c *Context) Series(tf string) []candle.Candle {
	return c.Candles.Candles(candle.SeriesKey{Exchange: c.Route.Exchange, Symbol: c.Route.Symbol, Timeframe: tf})
}

// SubmitMarket queues a market order, executed by the next market-order
// sweep at the end of the current minute.
func (c *Context) SubmitMarket(side orderbook.Side, qty decimal.Decimal) *orderbook.Order {
	return c.Book.Add(c.Route.Exchange, c.Route.Symbol, side, orderbook.TypeMarket, qty, decimal.Zero)
}

// SubmitLimit queues a resting limit order, matched by the matching engine
// against future 1m candles.
func (c *Context) SubmitLimit(side orderbook.Side, qty, price decimal.Decimal) *orderbook.Order {
	return c.Book.Add(c.Route.Exchange, c.Route.Symbol, side, orderbook.TypeLimit, qty, price)
}

// SubmitStop queues a resting stop order, created active like a limit order
// and matched the same way by the matching engine.
func (c *Context) SubmitStop(side orderbook.Side, qty, price decimal.Decimal) *orderbook.Order {
	return c.Book.Add(c.Route.Exchange, c.Route.Symbol, side, orderbook.TypeStop, qty, price)
}

// Strategy is the callback surface every route implementation provides:
// InitObjects once before the first candle, Execute every time the route's
// own timeframe closes, Terminate once after the last candle.
type Strategy interface {
	InitObjects(ctx *Context) error
	Execute(ctx *Context) error
	Terminate(ctx *Context) error
}

// Factory builds a new Strategy instance, decoding the route's optional DNA
// string into hyperparameters.
type Factory func(dna string) (Strategy, error)

// Registry maps strategy names to factories, resolved when the host is built
// from a route table.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates a strategy name with a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New instantiates the named strategy with the given DNA, or a
// RouteValidation error if the name is unknown.
func (r *Registry) New(name, dna string) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, simerrors.New(simerrors.KindRouteValidation, name, fmt.Errorf("router: unknown strategy %q", name))
	}
	return f(dna)
}

type binding struct {
	route    Route
	strategy Strategy
	ctx      *Context
}

// Host owns one strategy instance per route and dispatches Execute at the
// correct per-route cadence.
type Host struct {
	bindings []binding
}

// NewHost resolves every route against registry and binds each strategy to a
// Context backed by candles, book and ledger, in route-table order. That
// order also decides Execute dispatch.
func NewHost(routes []Route, registry *Registry, candles *candle.Store, book *orderbook.Book, lg *ledger.Ledger) (*Host, error) {
	h := &Host{bindings: make([]binding, 0, len(routes))}
	for _, rt := range routes {
		if _, err := timeframe.ToMinutes(rt.Timeframe); err != nil {
			return nil, simerrors.New(simerrors.KindRouteValidation, rt.String(), err)
		}
		s, err := registry.New(rt.StrategyName, rt.DNA)
		if err != nil {
			return nil, err
		}
		ctx := &Context{
			Route:    rt,
			Candles:  candles,
			Book:     book,
			Position: lg.Position(rt.Exchange, rt.Symbol),
		}
		h.bindings = append(h.bindings, binding{route: rt, strategy: s, ctx: ctx})
	}
	return h, nil
}

// InitAll calls InitObjects on every route's strategy, in route-table order.
func (h *Host) InitAll() error {
	for _, b := range h.bindings {
		if err := b.strategy.InitObjects(b.ctx); err != nil {
			return simerrors.New(simerrors.KindStrategyRuntime, b.route.String(), err)
		}
	}
	return nil
}

// ExecuteClosed invokes Execute for every route whose timeframe boundary
// closed at zero-based 1m index i, in route-table order.
func (h *Host) ExecuteClosed(i int) error {
	for _, b := range h.bindings {
		if !timeframe.Closes(b.route.Timeframe, i) {
			continue
		}
		if err := b.strategy.Execute(b.ctx); err != nil {
			telemetry.RecordStrategyError(b.route.String())
			return simerrors.New(simerrors.KindStrategyRuntime, b.route.String(), err)
		}
	}
	return nil
}

// TerminateAll calls Terminate on every route's strategy, in route-table
// order, after the last candle.
func (h *Host) TerminateAll() error {
	for _, b := range h.bindings {
		if err := b.strategy.Terminate(b.ctx); err != nil {
			return simerrors.New(simerrors.KindStrategyRuntime, b.route.String(), err)
		}
	}
	return nil
}
