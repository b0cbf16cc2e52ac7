// Package candle holds the OHLCV candle type and the per-
// (exchange,symbol,timeframe) series store the simulation reads and writes,
// plus a small TTL cache fronting the historical-candle loader.
package candle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. Timestamps are UTC, aligned to the minute for 1m
// candles and to the opening minute for higher timeframes.
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Validate checks the OHLC invariant:
// low <= min(open,close) <= max(open,close) <= high, volume >= 0.
func (c Candle) Validate() error {
	lo := decimal.Min(c.Open, c.Close)
	hi := decimal.Max(c.Open, c.Close)
	if c.Low.GreaterThan(lo) || hi.GreaterThan(c.High) {
		return fmt.Errorf("candle %s: invalid OHLC open=%s high=%s low=%s close=%s",
			c.Symbol, c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume.IsNegative() {
		return fmt.Errorf("candle %s: negative volume %s", c.Symbol, c.Volume)
	}
	return nil
}

// Includes reports whether price lies within [Low, High], inclusive.
func (c Candle) Includes(price decimal.Decimal) bool {
	return !price.LessThan(c.Low) && !price.GreaterThan(c.High)
}

// SeriesKey identifies one candle series.
type SeriesKey struct {
	Exchange  string
	Symbol    string
	Timeframe string
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Exchange, k.Symbol, k.Timeframe)
}

// Store holds every candle series the simulation touches. It is owned
// exclusively by the simulation driver for the duration of a run.
type Store struct {
	capacity int
	series   map[SeriesKey][]Candle
}

// New creates a candle store, pre-reserving capacity per series to avoid
// reallocation in the hot per-minute loop.
func New(capacity int) *Store {
	return &Store{
		capacity: capacity,
		series:   make(map[SeriesKey][]Candle),
	}
}

// Add appends c to the series, overwriting the tail candle when it shares c's
// timestamp: the case the matching engine relies on when it writes successive
// split pieces of the same real minute. Any other out-of-order timestamp is a
// programmer error.
func (s *Store) Add(key SeriesKey, c Candle) error {
	seq, ok := s.series[key]
	if !ok {
		seq = make([]Candle, 0, s.capacity)
	}
	if n := len(seq); n > 0 {
		tail := seq[n-1]
		switch {
		case c.Timestamp.Equal(tail.Timestamp):
			seq[n-1] = c
			s.series[key] = seq
			return nil
		case c.Timestamp.Before(tail.Timestamp):
			return fmt.Errorf("candle store: out-of-order candle for %s: %s before tail %s",
				key, c.Timestamp, tail.Timestamp)
		}
	}
	s.series[key] = append(seq, c)
	return nil
}

// Current returns the tail candle of the series, and false if the series is
// empty.
func (s *Store) Current(key SeriesKey) (Candle, bool) {
	seq, ok := s.series[key]
	if !ok || len(seq) == 0 {
		return Candle{}, false
	}
	return seq[len(seq)-1], true
}

// Candles returns a read-only view of the full series. Callers must not
// mutate the returned slice.
func (s *Store) Candles(key SeriesKey) []Candle {
	return s.series[key]
}

// Len reports how many candles are stored for key.
func (s *Store) Len(key SeriesKey) int {
	return len(s.series[key])
}

// cacheEntry is one TTL-bound cache slot.
type cacheEntry struct {
	candles []Candle
	expires time.Time
}

// Cache is a small in-process TTL cache for loaded candle sequences. Keys
// are opaque strings formed by the caller from
// (start_date, finish_date, exchange, symbol).
type Cache struct {
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get returns the cached sequence for key, if present and unexpired.
func (c *Cache) Get(key string) ([]Candle, bool) {
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expires) {
		return nil, false
	}
	return entry.candles, true
}

// Set stores sequence under key for ttlSeconds.
func (c *Cache) Set(key string, sequence []Candle, ttlSeconds int) {
	c.entries[key] = cacheEntry{
		candles: sequence,
		expires: c.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
}
