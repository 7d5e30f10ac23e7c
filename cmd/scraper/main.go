// Command scraper runs one full scrape from the terminal without the HTTP
// service, printing a summary at the end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/bookdata-api/config"
	"github.com/aluiziolira/bookdata-api/fetcher"
	"github.com/aluiziolira/bookdata-api/scraper"
)

func main() {
	defaults := config.DefaultConfig()

	baseURL := flag.String("base-url", defaults.BaseURL, "Base URL to crawl")
	outputDir := flag.String("output", defaults.OutputDir, "Output directory for the master CSV")
	cacheDir := flag.String("cache-dir", defaults.CacheDir, "Product page cache directory (empty disables caching)")
	maxCategories := flag.Int("max-categories", 0, "Limit the scrape to the first N categories (0 = all)")
	maxRetries := flag.Int("max-retries", defaults.MaxRetries, "HTTP attempts per URL")
	perBookDelayMs := flag.Int("per-book-delay", int(defaults.PerBookDelay.Milliseconds()), "Delay between product detail fetches (milliseconds)")
	perPageDelayMs := flag.Int("per-page-delay", int(defaults.PerPageDelay.Milliseconds()), "Delay between listing pages (milliseconds)")
	noCSV := flag.Bool("no-csv", false, "Skip writing the master CSV")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	slog.SetDefault(newLogger(*verbose))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.BaseURL = *baseURL
	cfg.OutputDir = *outputDir
	cfg.CacheDir = *cacheDir
	cfg.MaxCategories = *maxCategories
	cfg.MaxRetries = *maxRetries
	cfg.PerBookDelay = time.Duration(*perBookDelayMs) * time.Millisecond
	cfg.PerPageDelay = time.Duration(*perPageDelayMs) * time.Millisecond
	cfg.SaveCSV = !*noCSV
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := scraper.NewMetrics()
	httpFetcher := fetcher.New(fetcher.Options{
		UserAgent:       cfg.UserAgent,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
		RetryBackoffMax: cfg.RetryBackoffMax,
		RetryStatuses:   cfg.RetryStatuses,
		ConnectTimeout:  cfg.ConnectTimeout,
		RequestTimeout:  cfg.RequestTimeout,
	})

	orchestrator, err := scraper.New(cfg, httpFetcher, metrics)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	summary, err := orchestrator.Run(ctx)
	if err != nil {
		slog.Error("scrape failed", slog.Any("error", err))
		os.Exit(1)
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Categories:   %d\n", summary.CategoriesCount)
	fmt.Printf("  Total books:  %d\n", summary.TotalBooks)
	fmt.Printf("  Duration:     %v\n", time.Since(start).Round(time.Millisecond))
	if summary.CSVPath != "" {
		fmt.Printf("  Output file:  %s\n", summary.CSVPath)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
