package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry            *prometheus.Registry
	PagesTotal          prometheus.Counter
	PageLoadDuration    prometheus.Histogram
	BooksScrapedTotal   prometheus.Counter
	DetailErrorsTotal   prometheus.Counter
	CategoryErrorsTotal prometheus.Counter
	RunsTotal           *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Total listing and detail pages loaded.",
		},
	)
	pageLoad := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_page_load_duration_seconds",
			Help:    "Page load latency including retries.",
			Buckets: prometheus.DefBuckets,
		},
	)
	books := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_books_scraped_total",
			Help: "Total book records assembled.",
		},
	)
	detailErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_detail_errors_total",
			Help: "Product detail pages that failed to load or parse.",
		},
	)
	categoryErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_category_errors_total",
			Help: "Categories abandoned due to an unrecoverable error.",
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Completed scrape runs by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(pages, pageLoad, books, detailErrors, categoryErrors, runs)

	return &Metrics{
		Registry:            registry,
		PagesTotal:          pages,
		PageLoadDuration:    pageLoad,
		BooksScrapedTotal:   books,
		DetailErrorsTotal:   detailErrors,
		CategoryErrorsTotal: categoryErrors,
		RunsTotal:           runs,
	}
}

// ObservePage records one page load and its latency.
func (m *Metrics) ObservePage(d time.Duration) {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
	m.PageLoadDuration.Observe(d.Seconds())
}

// AddBooks increments the scraped book counter.
func (m *Metrics) AddBooks(n int) {
	if m == nil {
		return
	}
	m.BooksScrapedTotal.Add(float64(n))
}

// IncDetailError increments the detail-page failure counter.
func (m *Metrics) IncDetailError() {
	if m == nil {
		return
	}
	m.DetailErrorsTotal.Inc()
}

// IncCategoryError increments the category failure counter.
func (m *Metrics) IncCategoryError() {
	if m == nil {
		return
	}
	m.CategoryErrorsTotal.Inc()
}

// IncRun records a completed run with result "success" or "error".
func (m *Metrics) IncRun(result string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
}
