package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/bookdata-api/api"
	"github.com/aluiziolira/bookdata-api/config"
	"github.com/aluiziolira/bookdata-api/etl"
	"github.com/aluiziolira/bookdata-api/fetcher"
	"github.com/aluiziolira/bookdata-api/jobs"
	"github.com/aluiziolira/bookdata-api/scraper"
)

func main() {
	logger := newLogger(os.Getenv("BOOK_SCRAPER_VERBOSE") != "")
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
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

	scrapeGuard := jobs.NewGuard("scrapper")
	etlGuard := jobs.NewGuard("data-process")

	runScrape := func(ctx context.Context) (any, error) {
		return orchestrator.Run(ctx)
	}
	runETL := func(_ context.Context) (any, error) {
		return etl.Run(cfg.ETL)
	}

	server := api.NewServer(scrapeGuard, etlGuard, runScrape, runETL, metrics)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("http server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", slog.Any("error", err))
	}
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
