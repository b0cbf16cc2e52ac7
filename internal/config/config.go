// Package config loads the run-time configuration for a simulation: the date
// range, starting capital, fee schedule, route table and storage paths.
// Scalar settings come from the environment (optionally seeded by a .env
// file); the route table comes from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guyghost/constantine-backtest/internal/router"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// RunConfig aggregates everything a simulation run needs.
type RunConfig struct {
	StartDate      time.Time
	FinishDate     time.Time
	InitialBalance decimal.Decimal
	FeeRate        decimal.Decimal
	Exchange       string
	DataDir        string
	ReportDir      string
	TelemetryAddr  string
	CandleCapacity int
	Routes         []router.Route
}

// Load builds a RunConfig from environment variables (optionally seeded by a
// .env file) and a routes file. routesPath may be empty, in which case
// Routes is left empty for the caller to populate programmatically.
func Load(routesPath string) (*RunConfig, error) {
	_ = godotenv.Load()

	start, err := getEnvDate("BACKTEST_START", time.Now().AddDate(0, -1, 0))
	if err != nil {
		return nil, err
	}
	finish, err := getEnvDate("BACKTEST_FINISH", time.Now())
	if err != nil {
		return nil, err
	}

	cfg := &RunConfig{
		StartDate:      start,
		FinishDate:     finish,
		InitialBalance: getEnvDecimal("INITIAL_BALANCE", decimal.NewFromInt(10000)),
		FeeRate:        getEnvDecimal("FEE_RATE", decimal.NewFromFloat(0.001)),
		Exchange:       getEnv("BACKTEST_EXCHANGE", "sim"),
		DataDir:        getEnv("BACKTEST_DATA_DIR", "./data"),
		ReportDir:      getEnv("BACKTEST_REPORT_DIR", "./reports"),
		TelemetryAddr:  getEnv("TELEMETRY_ADDR", ""),
		CandleCapacity: getEnvInt("BACKTEST_CANDLE_CAPACITY", 1440),
	}

	if routesPath != "" {
		routes, err := LoadRoutesFromYAML(routesPath)
		if err != nil {
			return nil, err
		}
		cfg.Routes = routes
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RunConfig) validate() error {
	var problems []string
	if !c.FinishDate.After(c.StartDate) {
		problems = append(problems, "BACKTEST_FINISH must be after BACKTEST_START")
	}
	if c.InitialBalance.IsNegative() {
		problems = append(problems, "INITIAL_BALANCE must not be negative")
	}
	if c.FeeRate.IsNegative() {
		problems = append(problems, "FEE_RATE must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// routesFile is the on-disk YAML shape LoadRoutesFromYAML decodes.
type routesFile struct {
	Routes []routeEntry `yaml:"routes"`
}

type routeEntry struct {
	Exchange  string `yaml:"exchange"`
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
	Strategy  string `yaml:"strategy"`
	DNA       string `yaml:"dna"`
}

// LoadRoutesFromYAML reads a route table from path, in the form:
//
//	routes:
//	  - exchange: sim
//	    symbol: BTC-USD
//	    timeframe: 1h
//	    strategy: ema-cross
//	    dna: ""
func LoadRoutesFromYAML(path string) ([]router.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading routes file: %w", err)
	}
	var f routesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing routes file: %w", err)
	}
	routes := make([]router.Route, 0, len(f.Routes))
	for _, e := range f.Routes {
		if e.Exchange == "" || e.Symbol == "" || e.Timeframe == "" || e.Strategy == "" {
			return nil, fmt.Errorf("config: route entry missing a required field: %+v", e)
		}
		routes = append(routes, router.Route{
			Exchange:     e.Exchange,
			Symbol:       e.Symbol,
			Timeframe:    e.Timeframe,
			StrategyName: e.Strategy,
			DNA:          e.DNA,
		})
	}
	return routes, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := decimal.NewFromString(v); err == nil {
		return d
	}
	return defaultValue
}

func getEnvDate(key string, defaultValue time.Time) (time.Time, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: invalid date for %s: %w", key, err)
	}
	return t, nil
}
