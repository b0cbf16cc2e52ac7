package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/guyghost/constantine-backtest/internal/backtest"
	"github.com/guyghost/constantine-backtest/internal/config"
	"github.com/guyghost/constantine-backtest/internal/dataloader"
	"github.com/guyghost/constantine-backtest/internal/logger"
	"github.com/guyghost/constantine-backtest/internal/report"
	"github.com/guyghost/constantine-backtest/internal/router"
	"github.com/guyghost/constantine-backtest/internal/strategies"
	"github.com/guyghost/constantine-backtest/internal/telemetry"
)

var (
	routesFile = flag.String("routes", "routes.yaml", "Path to the YAML route table")
	startDate  = flag.String("start", "", "Start date (YYYY-MM-DD), overrides BACKTEST_START")
	finishDate = flag.String("finish", "", "Finish date (YYYY-MM-DD, exclusive), overrides BACKTEST_FINISH")
	writeCSV   = flag.Bool("csv", true, "Write equity and trade CSVs to the report directory")
	logFormat  = flag.String("log-format", "text", "Log format: text or json")
)

func main() {
	flag.Parse()

	log := logger.New(&logger.Config{Format: *logFormat})
	logger.SetDefault(log)

	if err := run(log); err != nil {
		log.WithError(err).Error("backtest failed")
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	cfg, err := config.Load(*routesFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if *startDate != "" {
		cfg.StartDate, err = time.Parse("2006-01-02", *startDate)
		if err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
	}
	if *finishDate != "" {
		cfg.FinishDate, err = time.Parse("2006-01-02", *finishDate)
		if err != nil {
			return fmt.Errorf("invalid -finish: %w", err)
		}
	}

	metrics := telemetry.NewServer(cfg.TelemetryAddr)
	if err := metrics.Start(); err != nil {
		return fmt.Errorf("starting telemetry server: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(ctx)
	}()

	registry := router.NewRegistry()
	strategies.Register(registry)

	log.Component("backtest").Info("starting run",
		"start", cfg.StartDate.Format("2006-01-02"),
		"finish", cfg.FinishDate.Format("2006-01-02"),
		"routes", len(cfg.Routes),
		"balance", cfg.InitialBalance.String(),
		"fee_rate", cfg.FeeRate.String(),
	)

	loader := dataloader.New(cfg.DataDir)
	began := time.Now()

	res, err := backtest.Run(backtest.Request{
		StartDate:      cfg.StartDate.Format("2006-01-02"),
		FinishDate:     cfg.FinishDate.Format("2006-01-02"),
		Routes:         cfg.Routes,
		Registry:       registry,
		InitialBalance: cfg.InitialBalance,
		FeeRate:        cfg.FeeRate,
		CandleCapacity: cfg.CandleCapacity,
	}, loader)
	if err != nil {
		return err
	}

	elapsed := time.Since(began)
	telemetry.SetRunDuration(elapsed.Seconds())
	log.Component("backtest").Info("run complete",
		"trades", len(res.Trades),
		"daily_snapshots", len(res.DailyBalance),
		"elapsed", elapsed.Round(time.Millisecond).String(),
	)

	fmt.Println(report.GenerateReport(res.Trades, res.DailyBalance))

	if *writeCSV {
		if err := writeReports(cfg.ReportDir, res); err != nil {
			return err
		}
		log.Component("report").Info("csv reports written", "dir", cfg.ReportDir)
	}
	return nil
}

// writeReports writes the equity curve and closed-trade list as CSV files
// named by run timestamp, so successive runs never clobber each other.
func writeReports(dir string, res *backtest.Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	stamp := time.Now().UTC().Format("2006-01-02T150405Z")

	equity, err := os.Create(filepath.Join(dir, "equity-"+stamp+".csv"))
	if err != nil {
		return err
	}
	defer equity.Close()
	if err := report.WriteEquityCSV(equity, res.DailyBalance); err != nil {
		return fmt.Errorf("writing equity csv: %w", err)
	}

	trades, err := os.Create(filepath.Join(dir, "trades-"+stamp+".csv"))
	if err != nil {
		return err
	}
	defer trades.Close()
	if err := report.WriteTradesCSV(trades, res.Trades); err != nil {
		return fmt.Errorf("writing trades csv: %w", err)
	}
	return nil
}
