// Package config holds service configuration with environment overrides.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds scraper, ETL, and server configuration.
type Config struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`

	OutputDir string `mapstructure:"output_dir"`
	CacheDir  string `mapstructure:"cache_dir"` // empty disables the page cache

	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max"`
	RetryStatuses   []int         `mapstructure:"retry_statuses"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`

	PerPageDelay     time.Duration `mapstructure:"per_page_delay"`
	PerBookDelay     time.Duration `mapstructure:"per_book_delay"`
	PerCategoryDelay time.Duration `mapstructure:"per_category_delay"`

	MaxCategories int  `mapstructure:"max_categories"` // 0 scrapes every category
	SaveCSV       bool `mapstructure:"save_csv"`

	ServerPort int `mapstructure:"server_port"`

	ETL ETLConfig `mapstructure:"etl"`
}

// ETLConfig governs the CSV cleaning pipeline.
type ETLConfig struct {
	InputFile             string   `mapstructure:"input_file"`
	OutputFile            string   `mapstructure:"output_file"`
	ProblematicCategories []string `mapstructure:"problematic_categories"`
	DefaultCategory       string   `mapstructure:"default_category"`
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://books.toscrape.com/",
		UserAgent:        "Mozilla/5.0 (compatible; BookScraper/1.0; +https://example.com/bot)",
		OutputDir:        "data/raw",
		CacheDir:         "cache/prod_pages",
		MaxRetries:       3,
		RetryBackoff:     500 * time.Millisecond,
		RetryBackoffMax:  8 * time.Second,
		RetryStatuses:    []int{500, 502, 503, 504},
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   15 * time.Second,
		PerPageDelay:     250 * time.Millisecond,
		PerBookDelay:     80 * time.Millisecond,
		PerCategoryDelay: 550 * time.Millisecond,
		MaxCategories:    0,
		SaveCSV:          true,
		ServerPort:       8000,
		ETL: ETLConfig{
			InputFile:             "data/raw/all_books.csv",
			OutputFile:            "data/processed/books_processed.csv",
			ProblematicCategories: []string{"Default", "Add a comment"},
			DefaultCategory:       "Unknown",
		},
	}
}

// Load builds a Config from defaults plus BOOK_SCRAPER_* environment
// variables, e.g. BOOK_SCRAPER_OUTPUT_DIR or BOOK_SCRAPER_ETL_INPUT_FILE.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOK_SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_backoff", d.RetryBackoff)
	v.SetDefault("retry_backoff_max", d.RetryBackoffMax)
	v.SetDefault("retry_statuses", d.RetryStatuses)
	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("per_page_delay", d.PerPageDelay)
	v.SetDefault("per_book_delay", d.PerBookDelay)
	v.SetDefault("per_category_delay", d.PerCategoryDelay)
	v.SetDefault("max_categories", d.MaxCategories)
	v.SetDefault("save_csv", d.SaveCSV)
	v.SetDefault("server_port", d.ServerPort)
	v.SetDefault("etl.input_file", d.ETL.InputFile)
	v.SetDefault("etl.output_file", d.ETL.OutputFile)
	v.SetDefault("etl.problematic_categories", d.ETL.ProblematicCategories)
	v.SetDefault("etl.default_category", d.ETL.DefaultCategory)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.PerPageDelay < 0 || c.PerBookDelay < 0 || c.PerCategoryDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.MaxCategories < 0 {
		return fmt.Errorf("max categories cannot be negative")
	}
	if c.ServerPort <= 0 {
		return fmt.Errorf("server port must be positive")
	}
	if c.ETL.InputFile == "" || c.ETL.OutputFile == "" {
		return fmt.Errorf("etl input and output files cannot be empty")
	}
	if c.ETL.DefaultCategory == "" {
		return fmt.Errorf("etl default category cannot be empty")
	}
	return nil
}
