// Package scraper crawls the book catalog site category by category and
// writes the consolidated dataset.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/bookdata-api/config"
	"github.com/aluiziolira/bookdata-api/fetcher"
	"github.com/aluiziolira/bookdata-api/models"
	"github.com/aluiziolira/bookdata-api/parser"
	"github.com/aluiziolira/bookdata-api/pipeline"
)

// MasterCSVName is the consolidated output file written under OutputDir.
const MasterCSVName = "all_books.csv"

// Orchestrator discovers categories from the site root and runs the
// category crawler over each, sequentially and with politeness delays.
type Orchestrator struct {
	cfg     *config.Config
	pages   fetcher.Fetcher
	crawler *CategoryCrawler
	metrics *Metrics
}

// New composes an Orchestrator on top of base. When cfg.CacheDir is set,
// product detail fetches are routed through the on-disk page cache; the
// crawl itself is agnostic to whether caching is present.
func New(cfg *config.Config, base fetcher.Fetcher, m *Metrics) (*Orchestrator, error) {
	details := base
	if cfg.CacheDir != "" {
		cached, err := fetcher.NewCachedFetcher(base, cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("init page cache: %w", err)
		}
		details = cached
	}

	crawler := NewCategoryCrawler(base, details, cfg.BaseURL, cfg.PerPageDelay, cfg.PerBookDelay, m)

	return &Orchestrator{
		cfg:     cfg,
		pages:   base,
		crawler: crawler,
		metrics: m,
	}, nil
}

// Run scrapes every discovered category (or the first MaxCategories) and
// writes the master CSV when configured. One category failing contributes
// zero books; it never aborts the run.
func (o *Orchestrator) Run(ctx context.Context) (models.ScrapeSummary, error) {
	slog.Info("starting full scrape",
		slog.String("base_url", o.cfg.BaseURL),
		slog.String("output_dir", o.cfg.OutputDir),
	)

	categories, err := o.discoverCategories(ctx)
	if err != nil {
		o.metrics.IncRun("error")
		return models.ScrapeSummary{}, err
	}
	if max := o.cfg.MaxCategories; max > 0 && len(categories) > max {
		categories = categories[:max]
	}

	var allBooks []models.BookRecord
	for i, category := range categories {
		slog.Info("scraping category",
			slog.Int("index", i+1),
			slog.Int("total", len(categories)),
			slog.String("category", category.Name),
		)
		books, err := o.crawler.Crawl(ctx, category)
		if err != nil {
			if ctx.Err() != nil {
				o.metrics.IncRun("error")
				return models.ScrapeSummary{}, ctx.Err()
			}
			o.metrics.IncCategoryError()
			slog.Error("category crawl failed",
				slog.String("category", category.Name),
				slog.Any("error", err),
			)
			books = nil
		}
		allBooks = append(allBooks, books...)

		// Bound the request rate against the target site between
		// categories, regardless of outcome.
		if err := sleep(ctx, o.cfg.PerCategoryDelay); err != nil {
			o.metrics.IncRun("error")
			return models.ScrapeSummary{}, err
		}
	}

	summary := models.ScrapeSummary{
		CategoriesCount: len(categories),
		TotalBooks:      len(allBooks),
		OutputDir:       o.cfg.OutputDir,
	}

	if o.cfg.SaveCSV {
		csvPath := filepath.Join(o.cfg.OutputDir, MasterCSVName)
		if err := pipeline.WriteMasterCSV(csvPath, allBooks); err != nil {
			o.metrics.IncRun("error")
			return models.ScrapeSummary{}, fmt.Errorf("write master csv: %w", err)
		}
		summary.CSVPath = csvPath
		slog.Info("saved master csv", slog.String("path", csvPath))
	}

	o.metrics.IncRun("success")
	slog.Info("scrape finished",
		slog.Int("categories", summary.CategoriesCount),
		slog.Int("books", summary.TotalBooks),
	)
	return summary, nil
}

// discoverCategories loads the site root once and reads the sidebar.
func (o *Orchestrator) discoverCategories(ctx context.Context) ([]models.Category, error) {
	start := time.Now()
	body, err := o.pages.Fetch(ctx, o.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("load root page: %w", err)
	}
	o.metrics.ObservePage(time.Since(start))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse root page: %w", err)
	}

	categories := parser.Categories(doc)
	slog.Info("discovered categories", slog.Int("count", len(categories)))
	return categories, nil
}
