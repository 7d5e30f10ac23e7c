// Package models defines data structures shared across the scraper and ETL.
package models

import "time"

// BookRecord is one scraped book. The upstream markup is inconsistent, so
// every optional field models absence as nil or a zero value rather than an
// error.
type BookRecord struct {
	Title        string   `json:"title"`
	Price        *float64 `json:"price"`
	Rating       *int     `json:"rating"`
	Category     string   `json:"category"`
	Image        string   `json:"image"`
	ProductPage  string   `json:"product_page"`
	Availability bool     `json:"availability"`
	Stock        *int     `json:"stock"`
}

// Category is a site-defined book grouping discovered from the sidebar
// navigation on the root page. Href is kept as discovered and resolved
// against the base URL at crawl time.
type Category struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

// ScrapeSummary describes the outcome of a full scrape run.
type ScrapeSummary struct {
	CategoriesCount int    `json:"categories_count"`
	TotalBooks      int    `json:"total_books"`
	OutputDir       string `json:"output_dir"`
	CSVPath         string `json:"csv_master,omitempty"`
}

// ETLSummary describes the outcome of a data-processing run.
type ETLSummary struct {
	TotalRecords       int           `json:"total_records"`
	ProcessedRecords   int           `json:"processed_records"`
	ReplacedCategories int           `json:"replaced_categories"`
	ExecutionTime      time.Duration `json:"execution_time"`
	OutputFile         string        `json:"output_file"`
}

// JobOutcome is the recorded result of a finished background job.
type JobOutcome struct {
	Status  string `json:"status"` // "success" or "error"
	Summary any    `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobStatus is the externally visible snapshot of a job guard.
type JobStatus struct {
	IsRunning  bool        `json:"is_running"`
	LastResult *JobOutcome `json:"last_result"`
}
