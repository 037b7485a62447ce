// Command pipeline runs the feature pipeline once and writes the records to the
// configured store and optionally to a CSV or JSON file.
//
// Usage:
//
//	go run ./cmd/pipeline --tickers=EUR=X,GBP=X --start=2023-01-01 --out=features.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"currency-features/config"
	"currency-features/export"
	"currency-features/internal/bootstrap"
	"currency-features/models"
	"currency-features/observability"

	"github.com/joho/godotenv"
)

func main() {
	tickersFlag := flag.String("tickers", "", "Comma-separated tickers (default: configured universe)")
	startFlag := flag.String("start", "", "First date YYYY-MM-DD (default: today minus PIPELINE_LOOKBACK_DAYS)")
	endFlag := flag.String("end", "", "Last date YYYY-MM-DD (default: latest available)")
	outFlag := flag.String("out", "", "Write records to this file; .json selects JSON, anything else CSV")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLoggerWithLevel(cfg.Log.Production, observability.ParseLevel(cfg.Log.Level))
	observability.InitMetrics()
	if err := cfg.Validate(); err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	tickers := cfg.Universe.Tickers
	if *tickersFlag != "" {
		tickers = strings.Split(*tickersFlag, ",")
	}
	start := models.TruncateDay(time.Now()).AddDate(0, 0, -cfg.Pipeline.LookbackDays)
	if *startFlag != "" {
		if start, err = time.Parse(models.DateLayout, *startFlag); err != nil {
			observability.Fatal("invalid --start", "value", *startFlag, "error", err)
		}
	}
	var end *time.Time
	if *endFlag != "" {
		e, err := time.Parse(models.DateLayout, *endFlag)
		if err != nil {
			observability.Fatal("invalid --end", "value", *endFlag, "error", err)
		}
		end = &e
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		observability.Fatal("failed to initialize", "error", err)
	}
	defer components.Close()

	result, err := components.Runner.RunWithTrigger(ctx, models.RunTriggerManual, tickers, start, end)
	if result == nil {
		observability.Fatal("pipeline run failed", "error", err)
	}
	if err != nil {
		observability.Warn("pipeline run interrupted, writing partial result", "error", err)
	}

	observability.Info("pipeline run finished",
		"run_id", result.Run.ID,
		"status", result.Run.Status,
		"records", len(result.Records),
		"failed_tickers", strings.Join(result.Run.FailedTickers(), ","),
		"duration_ms", result.Run.DurationMs)

	if *outFlag != "" {
		if err := writeRecords(*outFlag, result.Records); err != nil {
			observability.Fatal("failed to write output", "path", *outFlag, "error", err)
		}
		observability.Info("records written", "path", *outFlag)
	}
	if len(result.Records) == 0 {
		// an empty result is the only run-level failure
		components.Close()
		os.Exit(2)
	}
}

func writeRecords(path string, records []models.FeatureRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return export.WriteJSON(f, records)
	}
	return export.WriteCSV(f, records)
}
