package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/bookdata-api/fetcher"
	"github.com/aluiziolira/bookdata-api/models"
	"github.com/aluiziolira/bookdata-api/parser"
)

// CategoryCrawler walks every listing page of one category and assembles
// book records, refining availability, stock, and image from each product's
// detail page.
type CategoryCrawler struct {
	pages   fetcher.Fetcher // listing pages
	details fetcher.Fetcher // product detail pages, typically cache-decorated

	baseURL      string
	perPageDelay time.Duration
	perBookDelay time.Duration
	metrics      *Metrics
}

// NewCategoryCrawler builds a crawler. pages and details may be the same
// Fetcher; they are split so detail fetches can go through the page cache.
func NewCategoryCrawler(pages, details fetcher.Fetcher, baseURL string, perPageDelay, perBookDelay time.Duration, m *Metrics) *CategoryCrawler {
	return &CategoryCrawler{
		pages:        pages,
		details:      details,
		baseURL:      baseURL,
		perPageDelay: perPageDelay,
		perBookDelay: perBookDelay,
		metrics:      m,
	}
}

// Crawl materializes all books of one category. A detail-page failure for a
// single product is logged and leaves that product with default
// availability; a listing-page failure aborts the category.
func (cc *CategoryCrawler) Crawl(ctx context.Context, category models.Category) ([]models.BookRecord, error) {
	pageURL := parser.ResolveURL(cc.baseURL, category.Href)
	if pageURL == "" {
		return nil, fmt.Errorf("resolve category href %q", category.Href)
	}

	var records []models.BookRecord
	for pageURL != "" {
		doc, err := cc.loadPage(ctx, cc.pages, pageURL)
		if err != nil {
			return nil, fmt.Errorf("load listing page %s: %w", pageURL, err)
		}

		// Every card on the page carries the page heading as its category.
		label := parser.CategoryName(doc)

		before := len(records)
		for _, card := range parser.Cards(doc, pageURL) {
			record := models.BookRecord{
				Title:       card.Title,
				Price:       card.Price,
				Rating:      card.Rating,
				Category:    label,
				Image:       card.Image,
				ProductPage: card.ProductPage,
			}
			if card.ProductPage != "" {
				cc.refineFromDetail(ctx, &record)
				if err := sleep(ctx, cc.perBookDelay); err != nil {
					return records, err
				}
			}
			records = append(records, record)
		}
		cc.metrics.AddBooks(len(records) - before)

		next := parser.NextPage(doc, pageURL)
		if next == "" {
			break
		}
		if err := sleep(ctx, cc.perPageDelay); err != nil {
			return records, err
		}
		pageURL = next
	}
	return records, nil
}

// refineFromDetail opens the product page and overwrites availability,
// stock, and (when present) a higher-resolution image. Failures keep the
// defaults: availability=false, stock=nil.
func (cc *CategoryCrawler) refineFromDetail(ctx context.Context, record *models.BookRecord) {
	doc, err := cc.loadPage(ctx, cc.details, record.ProductPage)
	if err != nil {
		cc.metrics.IncDetailError()
		slog.Warn("product page failed",
			slog.String("url", record.ProductPage),
			slog.Any("error", err),
		)
		return
	}

	record.Availability, record.Stock = parser.DetailAvailability(doc)
	if img := parser.DetailImage(doc, record.ProductPage); img != "" {
		record.Image = img
	}
}

func (cc *CategoryCrawler) loadPage(ctx context.Context, f fetcher.Fetcher, url string) (*goquery.Document, error) {
	start := time.Now()
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	cc.metrics.ObservePage(time.Since(start))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
