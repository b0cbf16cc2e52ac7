package router

import (
	"testing"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/guyghost/constantine-backtest/internal/ledger"
	"github.com/guyghost/constantine-backtest/internal/orderbook"
	"github.com/stretchr/testify/assert"
)

type recordingStrategy struct {
	inits, execs, terms int
}

func (s *recordingStrategy) InitObjects(ctx *Context) error { s.inits++; return nil }
func (s *recordingStrategy) Execute(ctx *Context) error     { s.execs++; return nil }
func (s *recordingStrategy) Terminate(ctx *Context) error   { s.terms++; return nil }

func newTestHost(t *testing.T, routes []Route, strat *recordingStrategy) *Host {
	t.Helper()
	reg := NewRegistry()
	reg.Register("recording", func(dna string) (Strategy, error) { return strat, nil })
	store := candle.New(10)
	book := orderbook.New()
	lg := ledger.New(ledger.Account{Name: "sim"})
	h, err := NewHost(routes, reg, store, book, lg)
	assert.NoError(t, err)
	return h
}

func TestHostRejectsUnknownStrategy(t *testing.T) {
	reg := NewRegistry()
	store := candle.New(10)
	book := orderbook.New()
	lg := ledger.New(ledger.Account{Name: "sim"})
	_, err := NewHost([]Route{{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "1m", StrategyName: "nope"}}, reg, store, book, lg)
	assert.Error(t, err)
}

func TestHostRejectsUnsupportedTimeframe(t *testing.T) {
	reg := NewRegistry()
	reg.Register("recording", func(dna string) (Strategy, error) { return &recordingStrategy{}, nil })
	store := candle.New(10)
	book := orderbook.New()
	lg := ledger.New(ledger.Account{Name: "sim"})
	_, err := NewHost([]Route{{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "7m", StrategyName: "recording"}}, reg, store, book, lg)
	assert.Error(t, err)
}

func TestHostExecutesOnlyOnOwnTimeframeBoundary(t *testing.T) {
	strat := &recordingStrategy{}
	h := newTestHost(t, []Route{{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "5m", StrategyName: "recording"}}, strat)

	assert.NoError(t, h.InitAll())
	assert.Equal(t, 1, strat.inits)

	for i := 0; i < 10; i++ {
		assert.NoError(t, h.ExecuteClosed(i))
	}
	// closes at i=4 and i=9 -> two executions
	assert.Equal(t, 2, strat.execs)

	assert.NoError(t, h.TerminateAll())
	assert.Equal(t, 1, strat.terms)
}

func Test1mRouteExecutesEveryMinute(t *testing.T) {
	strat := &recordingStrategy{}
	h := newTestHost(t, []Route{{Exchange: "sim", Symbol: "BTC-USD", Timeframe: "1m", StrategyName: "recording"}}, strat)

	for i := 0; i < 5; i++ {
		assert.NoError(t, h.ExecuteClosed(i))
	}
	assert.Equal(t, 5, strat.execs)
}
