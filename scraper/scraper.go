// Package scraper drives pagination over a library catalog and collects
// book records page by page.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hochuen/go-scrape-library/config"
	"github.com/hochuen/go-scrape-library/models"
	"github.com/hochuen/go-scrape-library/parser"
	"github.com/hochuen/go-scrape-library/pipeline"
)

// State identifies where the driver is in its traversal loop.
type State int

const (
	StateLoading State = iota
	StateExtracting
	StateAdvancing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateExtracting:
		return "EXTRACTING"
	case StateAdvancing:
		return "ADVANCING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// visitedCacheSize bounds the URL history kept for pagination loop
// detection.
const visitedCacheSize = 1024

// Driver sequences listing page loads: it waits for each page's rows to
// render, hands the content to the extractor, streams records into the
// pipeline, and advances until the next-page control disappears or a
// page cap is hit. It owns the page source for the run's duration and
// closes it on every exit path.
type Driver struct {
	cfg       *config.Config
	src       PageSource
	Selectors parser.Selectors
	Metrics   *Metrics

	visited *lru.Cache[string, int]
}

// NewDriver builds a driver around a page source. The row container
// selector from cfg overrides the default selector set.
func NewDriver(cfg *config.Config, src PageSource) (*Driver, error) {
	if src == nil {
		return nil, fmt.Errorf("page source is required")
	}
	visited, err := lru.New[string, int](visitedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create visited cache: %w", err)
	}

	selectors := parser.DefaultSelectors()
	if cfg.RowSelector != "" {
		selectors.Row = cfg.RowSelector
	}

	return &Driver{
		cfg:       cfg,
		src:       src,
		Selectors: selectors,
		Metrics:   NewMetrics(),
		visited:   visited,
	}, nil
}

// Run traverses the catalog from the configured start URL and streams
// records into p. The returned result is never nil; on failure it
// reflects whatever was collected before the failing page, and the error
// carries the failure cause.
func (d *Driver) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.ScrapeResult{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	state := StateLoading

	defer func() {
		result.EndTime = time.Now()
		result.FinalState = state.String()
		if err := d.src.Close(); err != nil {
			slog.Error("closing page source", slog.Any("error", err))
		}
	}()

	if err := d.src.Navigate(ctx, d.cfg.StartURL); err != nil {
		state = StateFailed
		nav := ErrNavigation{Err: err}
		d.recordError(result, StateLoading, nav)
		return result, nav
	}

	for {
		state = StateLoading
		if err := ctx.Err(); err != nil {
			state = StateFailed
			d.recordError(result, StateLoading, err)
			return result, err
		}
		if err := d.load(ctx, result); err != nil {
			state = StateFailed
			d.recordError(result, StateLoading, err)
			return result, err
		}

		if current := d.src.URL(); current != "" {
			if page, seen := d.visited.Get(current); seen {
				slog.Warn("pagination revisited an earlier page, stopping",
					slog.String("url", current),
					slog.Int("first_seen_page", page),
				)
				result.Truncated = true
				state = StateDone
				return result, nil
			}
			d.visited.Add(current, result.PageCount+1)
		}

		state = StateExtracting
		content, err := d.src.HTML()
		if err != nil {
			state = StateFailed
			wrapped := ErrExtraction{Err: err}
			d.recordError(result, StateExtracting, wrapped)
			return result, wrapped
		}
		records, skipped, err := parser.ExtractPage(strings.NewReader(content), d.Selectors)
		if err != nil {
			state = StateFailed
			wrapped := ErrExtraction{Err: err}
			d.recordError(result, StateExtracting, wrapped)
			return result, wrapped
		}

		result.PageCount++
		result.RecordCount += len(records)
		result.SkippedRows += skipped
		d.Metrics.IncPages()
		d.Metrics.AddRecords(len(records))
		d.Metrics.AddSkipped(skipped)

		if len(records) > 0 {
			if perr := p.Process(records); perr != nil && perr != pipeline.ErrPipelineClosed {
				slog.Error("pipeline process error", slog.Any("error", perr))
			}
		}
		slog.Debug("page extracted",
			slog.Int("page", result.PageCount),
			slog.Int("records", len(records)),
			slog.Int("skipped_rows", skipped),
		)

		state = StateAdvancing
		if result.PageCount >= d.cfg.MaxPages {
			slog.Info("page cap reached, stopping", slog.Int("pages", result.PageCount))
			result.Truncated = true
			state = StateDone
			return result, nil
		}

		ok, err := d.src.NextPage(ctx)
		if err != nil {
			// A next control that cannot be operated ends the run like an
			// absent one; the cause is logged, not fatal.
			slog.Warn("advancing failed, treating as end of results", slog.Any("error", err))
			ok = false
		}
		if !ok {
			state = StateDone
			return result, nil
		}
	}
}

// load waits for the row container on the current page, re-issuing the
// navigation between attempts until the retry budget is exhausted.
func (d *Driver) load(ctx context.Context, result *models.ScrapeResult) error {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := d.backoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			result.RetryCount++
			d.Metrics.IncRetries()
			slog.Debug("retrying page load",
				slog.Int("attempt", attempt),
				slog.String("url", d.src.URL()),
			)
			if err := d.src.Reload(ctx); err != nil {
				lastErr = err
				continue
			}
		}

		start := time.Now()
		err := d.src.WaitReady(ctx, d.Selectors.Row, d.cfg.LoadTimeout)
		d.Metrics.ObserveLoad(time.Since(start))
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return ErrPageLoadTimeout{URL: d.src.URL(), Err: lastErr}
}

func (d *Driver) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := d.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := d.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (d *Driver) recordError(result *models.ScrapeResult, at State, err error) {
	label := errorTypeLabel(err)
	result.ErrorsByType[label]++
	d.Metrics.IncError(label)
	slog.Error("scrape failed",
		slog.String("state", at.String()),
		slog.String("category", label),
		slog.Int("records_collected", result.RecordCount),
		slog.Any("error", err),
	)
}
