// Package dataloader loads historical 1m candle series from CSV files: given
// (exchange, symbol, start, finish) it returns a strictly increasing,
// gap-free sequence of 1m candles, or a dedicated simerrors.Kind when the
// data violates that contract.
package dataloader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/guyghost/constantine-backtest/internal/candle"
	"github.com/guyghost/constantine-backtest/internal/simerrors"
	"github.com/shopspring/decimal"
)

// Loader loads historical 1m candle series for a run.
type Loader struct {
	dataDir string
}

// New creates a loader rooted at dataDir, where CSV files are expected at
// "<dataDir>/<exchange>/<symbol>.csv".
func New(dataDir string) *Loader {
	return &Loader{dataDir: dataDir}
}

// Load returns the 1m candle series for (exchange,symbol) over [start,finish]:
// first timestamp equals start, last equals finish, count equals
// (finish-start)/60s+1, strictly increasing.
func (l *Loader) Load(exchange, symbol string, start, finish time.Time) ([]candle.Candle, error) {
	path := fmt.Sprintf("%s/%s/%s.csv", l.dataDir, exchange, symbol)
	candles, err := loadCSV(path, symbol)
	if err != nil {
		return nil, simerrors.New(simerrors.KindCandleMissing, symbol, err)
	}
	return sliceAndValidate(candles, symbol, start, finish)
}

// sliceAndValidate trims candles to [start,finish] and checks the
// monotonic, gap-free, boundary-matching contract.
func sliceAndValidate(candles []candle.Candle, symbol string, start, finish time.Time) ([]candle.Candle, error) {
	lo := sort.Search(len(candles), func(i int) bool { return !candles[i].Timestamp.Before(start) })
	hi := sort.Search(len(candles), func(i int) bool { return candles[i].Timestamp.After(finish) })
	if lo >= hi {
		return nil, simerrors.New(simerrors.KindCandleMissing, symbol,
			fmt.Errorf("dataloader: no candles for %s in [%s,%s]", symbol, start, finish))
	}
	window := candles[lo:hi]

	if !window[0].Timestamp.Equal(start) {
		return nil, simerrors.New(simerrors.KindCandleMissing, symbol,
			fmt.Errorf("dataloader: first candle %s does not match requested start %s", window[0].Timestamp, start))
	}
	last := window[len(window)-1]
	if !last.Timestamp.Equal(finish) {
		return nil, simerrors.New(simerrors.KindCandleMissing, symbol,
			fmt.Errorf("dataloader: last candle %s does not match requested finish %s", last.Timestamp, finish))
	}

	want := int(finish.Sub(start)/time.Minute) + 1
	if len(window) != want {
		return nil, simerrors.New(simerrors.KindCandleGap, symbol,
			fmt.Errorf("dataloader: expected %d candles, got %d", want, len(window)))
	}
	for i := 1; i < len(window); i++ {
		if !window[i].Timestamp.Equal(window[i-1].Timestamp.Add(time.Minute)) {
			return nil, simerrors.New(simerrors.KindCandleGap, symbol,
				fmt.Errorf("dataloader: gap between %s and %s", window[i-1].Timestamp, window[i].Timestamp))
		}
		if err := window[i].Validate(); err != nil {
			return nil, simerrors.New(simerrors.KindCandleGap, symbol, err)
		}
	}
	return window, nil
}

// loadCSV reads a CSV file in (timestamp,open,high,low,close,volume) order,
// skipping a header row if the second field isn't numeric.
func loadCSV(filename, symbol string) ([]candle.Candle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("dataloader: opening %s: %w", filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("dataloader: reading header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("dataloader: malformed header in %s", filename)
	}
	if _, err := strconv.ParseFloat(header[1], 64); err == nil {
		// First row was data, not a header: rewind and re-read from the top.
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("dataloader: seeking %s: %w", filename, err)
		}
		reader = csv.NewReader(file)
	}

	var candles []candle.Candle
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataloader: reading record: %w", err)
		}
		if len(record) < 6 {
			continue
		}
		c, err := parseRecord(record, symbol)
		if err != nil {
			return nil, fmt.Errorf("dataloader: parsing record: %w", err)
		}
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}

func parseRecord(record []string, symbol string) (candle.Candle, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return candle.Candle{}, err
	}
	fields := make([]decimal.Decimal, 5)
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := range fields {
		d, err := decimal.NewFromString(record[i+1])
		if err != nil {
			return candle.Candle{}, fmt.Errorf("invalid %s: %w", names[i], err)
		}
		fields[i] = d
	}
	return candle.Candle{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// parseTimestamp accepts Unix seconds/millis or common textual formats.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ts > 10000000000 {
			return time.UnixMilli(ts).UTC(), nil
		}
		return time.Unix(ts, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	formats := []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", s)
}

// GenerateSynthetic produces a deterministic synthetic 1m candle series,
// useful for tests and demos when no CSV fixture is available.
func GenerateSynthetic(symbol string, start time.Time, count int, basePrice decimal.Decimal) []candle.Candle {
	candles := make([]candle.Candle, 0, count)
	cur := start
	price := basePrice
	for i := 0; i < count; i++ {
		change := decimal.NewFromFloat((float64(i%10) - 5) * 0.001)
		open := price
		closePrice := price.Add(price.Mul(change))
		high := decimal.Max(open, closePrice).Mul(decimal.NewFromFloat(1.001))
		low := decimal.Min(open, closePrice).Mul(decimal.NewFromFloat(0.999))
		volume := decimal.NewFromFloat(1000 + float64(i%500))

		candles = append(candles, candle.Candle{
			Symbol: symbol, Timestamp: cur,
			Open: open, High: high, Low: low, Close: closePrice, Volume: volume,
		})
		cur = cur.Add(time.Minute)
		price = closePrice
	}
	return candles
}
