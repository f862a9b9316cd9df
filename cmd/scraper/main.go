package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hochuen/go-scrape-library/config"
	"github.com/hochuen/go-scrape-library/fetcher"
	"github.com/hochuen/go-scrape-library/models"
	"github.com/hochuen/go-scrape-library/pipeline"
	"github.com/hochuen/go-scrape-library/scraper"
)

func main() {
	// Optional .env for local runs; absence is fine.
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()
	startURLDefault := defaultCfg.StartURL
	if value, ok := config.EnvString("SCRAPER_START_URL"); ok {
		startURLDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	engineDefault := defaultCfg.Engine
	if value, ok := config.EnvString("SCRAPER_ENGINE"); ok {
		engineDefault = value
	}
	browserBinDefault := defaultCfg.BrowserBin
	if value, ok := config.EnvString("SCRAPER_BROWSER_BIN"); ok {
		browserBinDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	headlessDefault := defaultCfg.Headless
	if value, ok, err := config.EnvBool("SCRAPER_HEADLESS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_HEADLESS: %v\n", err)
		os.Exit(1)
	} else if ok {
		headlessDefault = value
	}

	startURL := flag.String("start-url", startURLDefault, "Catalog listing page to start from")
	engine := flag.String("engine", engineDefault, "Page source engine: browser or http")
	maxPages := flag.Int("pages", pagesDefault, "Hard cap on listing pages to visit")
	loadTimeoutSec := flag.Int("load-timeout", int(defaultCfg.LoadTimeout.Seconds()), "Per-page load timeout (seconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Page load retry budget")
	retryBackoffMs := flag.Int("retry-backoff", 200, "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", 2000, "Maximum retry backoff (milliseconds)")
	rowSelector := flag.String("row-selector", defaultCfg.RowSelector, "CSS selector for the repeating row container")
	nextSelector := flag.String("next-selector", defaultCfg.NextSelector, "CSS selector for the next-page control (overrides -next-text)")
	nextText := flag.String("next-text", defaultCfg.NextText, "Anchor text identifying the next-page control")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	headless := flag.Bool("headless", headlessDefault, "Run the browser headless")
	browserBin := flag.String("browser-bin", browserBinDefault, "Browser binary path (browser engine only)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.StartURL = *startURL
	cfg.Engine = strings.ToLower(*engine)
	cfg.MaxPages = *maxPages
	cfg.LoadTimeout = time.Duration(*loadTimeoutSec) * time.Second
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.RowSelector = *rowSelector
	cfg.NextSelector = *nextSelector
	cfg.NextText = *nextText
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.Headless = *headless
	cfg.BrowserBin = *browserBin
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("start_url", cfg.StartURL),
		slog.String("engine", cfg.Engine),
		slog.Int("page_cap", cfg.MaxPages),
	)

	src, err := createSource(cfg)
	if err != nil {
		// Nothing has been fetched yet, so there are no partial results.
		slog.Error("navigation unavailable", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		src.Close()
		os.Exit(1)
	}

	d, err := scraper.NewDriver(cfg, src)
	if err != nil {
		slog.Error("initialising driver", slog.Any("error", err))
		src.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current page")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && d.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(writer, cfg)
	p.Start()
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, runErr := d.Run(ctx, p)

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
	}
	if runErr == nil {
		if err := writer.Validate(); err != nil {
			slog.Error("output validation failed", slog.Any("error", err))
		}
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime), cfg.OutputFile)

	if runErr != nil {
		slog.Error("scraping failed",
			slog.String("state", result.FinalState),
			slog.Int("records_collected", result.RecordCount),
			slog.Any("error", runErr),
		)
		if result.RecordCount > 0 {
			slog.Info("partial results written", slog.String("output", cfg.OutputFile))
		}
		os.Exit(1)
	}
}

func createSource(cfg *config.Config) (scraper.PageSource, error) {
	switch cfg.Engine {
	case config.EngineBrowser:
		return fetcher.NewBrowser(cfg)
	case config.EngineHTTP:
		return fetcher.NewStatic(cfg)
	default:
		return nil, fmt.Errorf("unsupported engine: %s", cfg.Engine)
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.ScrapeResult, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Final state:   %s\n", result.FinalState)
	fmt.Printf("  Total books:   %d\n", result.RecordCount)
	fmt.Printf("  Pages visited: %d\n", result.PageCount)
	if result.Truncated {
		fmt.Printf("  Truncated:     yes (page cap or pagination loop)\n")
	}
	if result.SkippedRows > 0 {
		fmt.Printf("  Skipped rows:  %d\n", result.SkippedRows)
	}
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
