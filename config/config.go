package config

import (
	"fmt"
	"net/url"
	"time"
)

// Engine names for the page source backing a run.
const (
	EngineBrowser = "browser"
	EngineHTTP    = "http"
)

// Config holds the static run parameters for a scrape.
type Config struct {
	StartURL string
	Engine   string // browser or http

	MaxPages        int
	LoadTimeout     time.Duration
	NextWait        time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	RowSelector  string
	NextSelector string
	NextText     string

	OutputFile   string
	OutputFormat string // csv, json, or dual

	Headless   bool
	BrowserBin string
	UserAgent  string

	PipelineBufferSize int
	BatchSize          int

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the demo catalog.
func DefaultConfig() *Config {
	return &Config{
		StartURL:           "https://library.happycoding.hk/books/",
		Engine:             EngineBrowser,
		MaxPages:           50,
		LoadTimeout:        10 * time.Second,
		NextWait:           3 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		RowSelector:        ".card.listing-preview",
		NextSelector:       "",
		NextText:           "»",
		OutputFile:         "output/scraped_books.csv",
		OutputFormat:       "csv",
		Headless:           true,
		BrowserBin:         "",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		PipelineBufferSize: 512,
		BatchSize:          64,
		MetricsAddr:        "",
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("start URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("invalid start URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("start URL must include a host")
	}

	if c.Engine != EngineBrowser && c.Engine != EngineHTTP {
		return fmt.Errorf("engine must be %s or %s", EngineBrowser, EngineHTTP)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.LoadTimeout <= 0 {
		return fmt.Errorf("load timeout must be positive")
	}
	if c.NextWait <= 0 {
		return fmt.Errorf("next wait must be positive")
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
	if c.RowSelector == "" {
		return fmt.Errorf("row selector cannot be empty")
	}
	if c.NextSelector == "" && c.NextText == "" {
		return fmt.Errorf("next selector and next text cannot both be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	return nil
}
