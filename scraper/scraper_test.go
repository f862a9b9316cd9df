package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hochuen/go-scrape-library/config"
	"github.com/hochuen/go-scrape-library/models"
	"github.com/hochuen/go-scrape-library/pipeline"
)

// fakeSource serves pre-rendered page fixtures in sequence.
type fakeSource struct {
	pages []string
	urls  []string

	index     int
	failLoads map[int]int // page index -> WaitReady failures remaining; -1 never succeeds

	navErr  error
	reloads int
	closed  bool
}

func (f *fakeSource) Navigate(_ context.Context, _ string) error {
	if f.navErr != nil {
		return f.navErr
	}
	f.index = 0
	return nil
}

func (f *fakeSource) WaitReady(_ context.Context, _ string, _ time.Duration) error {
	remaining, ok := f.failLoads[f.index]
	if !ok {
		return nil
	}
	if remaining < 0 {
		return fmt.Errorf("rows never rendered")
	}
	if remaining > 0 {
		f.failLoads[f.index] = remaining - 1
		return fmt.Errorf("rows not rendered yet")
	}
	return nil
}

func (f *fakeSource) Reload(_ context.Context) error {
	f.reloads++
	return nil
}

func (f *fakeSource) HTML() (string, error) {
	return f.pages[f.index], nil
}

func (f *fakeSource) NextPage(_ context.Context) (bool, error) {
	if f.index+1 >= len(f.pages) {
		return false, nil
	}
	f.index++
	return true, nil
}

func (f *fakeSource) URL() string {
	if f.index < len(f.urls) {
		return f.urls[f.index]
	}
	return fmt.Sprintf("http://catalog.test/books/?page=%d", f.index+1)
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type collectingWriter struct {
	mu      sync.Mutex
	records []*models.BookRecord
}

func (cw *collectingWriter) Write(records []*models.BookRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.records = append(cw.records, records...)
	return nil
}

func (cw *collectingWriter) Close() error    { return nil }
func (cw *collectingWriter) Validate() error { return nil }

func (cw *collectingWriter) titles() []string {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	titles := make([]string, 0, len(cw.records))
	for _, r := range cw.records {
		titles = append(titles, r.Title)
	}
	return titles
}

// listingPage renders a fixture page with the given row titles.
func listingPage(titles ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, title := range titles {
		fmt.Fprintf(&b, `<div class="card listing-preview"><h4 class="text-primary">%s</h4></div>`, title)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.StartURL = "http://catalog.test/books/"
	cfg.Engine = config.EngineHTTP
	cfg.MaxRetries = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 5 * time.Millisecond
	cfg.LoadTimeout = 100 * time.Millisecond
	cfg.BatchSize = 2
	return cfg
}

func runDriver(t *testing.T, cfg *config.Config, src PageSource) (*models.ScrapeResult, *collectingWriter, error) {
	t.Helper()

	d, err := NewDriver(cfg, src)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(writer, cfg)
	p.Start()

	result, runErr := d.Run(context.Background(), p)
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}
	return result, writer, runErr
}

func TestDriverTraversesAllPages(t *testing.T) {
	src := &fakeSource{pages: []string{
		listingPage("A1", "A2"),
		listingPage("B1", "B2"),
		listingPage("C1", "C2"),
	}}

	result, writer, err := runDriver(t, testConfig(), src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.FinalState != "DONE" {
		t.Errorf("final state = %s, want DONE", result.FinalState)
	}
	if result.Truncated {
		t.Errorf("truncated = true, want false")
	}
	if result.PageCount != 3 {
		t.Errorf("pages = %d, want 3", result.PageCount)
	}
	if result.RecordCount != 6 {
		t.Errorf("records = %d, want 6", result.RecordCount)
	}

	want := []string{"A1", "A2", "B1", "B2", "C1", "C2"}
	got := writer.titles()
	if len(got) != len(want) {
		t.Fatalf("written records = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %q, want %q (order must be page-then-row)", i, got[i], want[i])
		}
	}

	if !src.closed {
		t.Errorf("page source not closed on success path")
	}
}

func TestDriverPageCapTruncates(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 2

	src := &fakeSource{pages: []string{
		listingPage("A1", "A2"),
		listingPage("B1", "B2"),
		listingPage("C1", "C2"),
	}}

	result, writer, err := runDriver(t, cfg, src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.FinalState != "DONE" {
		t.Errorf("final state = %s, want DONE", result.FinalState)
	}
	if !result.Truncated {
		t.Errorf("truncated = false, want true at page cap")
	}
	if result.RecordCount != 4 {
		t.Errorf("records = %d, want 4", result.RecordCount)
	}
	if got := len(writer.titles()); got != 4 {
		t.Errorf("written records = %d, want 4", got)
	}
}

func TestDriverLoadFailurePreservesPartialResults(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1

	src := &fakeSource{
		pages: []string{
			listingPage("A1", "A2"),
			listingPage("B1", "B2"),
		},
		failLoads: map[int]int{1: -1},
	}

	result, writer, err := runDriver(t, cfg, src)
	if err == nil {
		t.Fatalf("expected failure when rows never render")
	}

	var timeout ErrPageLoadTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("error = %v, want ErrPageLoadTimeout", err)
	}
	if result.FinalState != "FAILED" {
		t.Errorf("final state = %s, want FAILED", result.FinalState)
	}
	if result.RecordCount != 2 {
		t.Errorf("records = %d, want 2 collected before failure", result.RecordCount)
	}
	if got := len(writer.titles()); got != 2 {
		t.Errorf("written records = %d, want partial results flushed", got)
	}
	if result.RetryCount != 1 {
		t.Errorf("retries = %d, want 1", result.RetryCount)
	}
	if result.ErrorsByType["page_load_timeout"] != 1 {
		t.Errorf("errors by type = %v, want one page_load_timeout", result.ErrorsByType)
	}
	if !src.closed {
		t.Errorf("page source not closed on failure path")
	}
}

func TestDriverRetryThenSucceeds(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2

	src := &fakeSource{
		pages:     []string{listingPage("A1")},
		failLoads: map[int]int{0: 1},
	}

	result, _, err := runDriver(t, cfg, src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.FinalState != "DONE" {
		t.Errorf("final state = %s, want DONE", result.FinalState)
	}
	if result.RetryCount != 1 {
		t.Errorf("retries = %d, want 1", result.RetryCount)
	}
	if src.reloads != 1 {
		t.Errorf("reloads = %d, want 1", src.reloads)
	}
	if result.RecordCount != 1 {
		t.Errorf("records = %d, want 1", result.RecordCount)
	}
}

func TestDriverStopsOnPaginationLoop(t *testing.T) {
	// Third "page" reuses the first page's URL: the next control cycles.
	src := &fakeSource{
		pages: []string{
			listingPage("A1"),
			listingPage("B1"),
			listingPage("A1"),
		},
		urls: []string{
			"http://catalog.test/books/?page=1",
			"http://catalog.test/books/?page=2",
			"http://catalog.test/books/?page=1",
		},
	}

	result, writer, err := runDriver(t, testConfig(), src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.FinalState != "DONE" {
		t.Errorf("final state = %s, want DONE", result.FinalState)
	}
	if !result.Truncated {
		t.Errorf("truncated = false, want true on pagination loop")
	}
	if result.RecordCount != 2 {
		t.Errorf("records = %d, want 2 (looped page not re-extracted)", result.RecordCount)
	}
	if got := len(writer.titles()); got != 2 {
		t.Errorf("written records = %d, want 2", got)
	}
}

func TestDriverNavigationFailure(t *testing.T) {
	src := &fakeSource{
		pages:  []string{listingPage("A1")},
		navErr: errors.New("browser went away"),
	}

	result, writer, err := runDriver(t, testConfig(), src)
	if err == nil {
		t.Fatalf("expected navigation error")
	}
	var nav ErrNavigation
	if !errors.As(err, &nav) {
		t.Fatalf("error = %v, want ErrNavigation", err)
	}
	if result.FinalState != "FAILED" {
		t.Errorf("final state = %s, want FAILED", result.FinalState)
	}
	if result.RecordCount != 0 || len(writer.titles()) != 0 {
		t.Errorf("no records should be collected before the first page loads")
	}
	if !src.closed {
		t.Errorf("page source not closed on startup failure")
	}
}

func TestDriverCountsSkippedRows(t *testing.T) {
	page := `<html><body>
<div class="card listing-preview"><h4 class="text-primary">Kept</h4></div>
<div class="card listing-preview"><img src="cover.jpg"></div>
</body></html>`

	src := &fakeSource{pages: []string{page}}

	result, _, err := runDriver(t, testConfig(), src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.RecordCount != 1 {
		t.Errorf("records = %d, want 1", result.RecordCount)
	}
	if result.SkippedRows != 1 {
		t.Errorf("skipped rows = %d, want 1", result.SkippedRows)
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateLoading:    "LOADING",
		StateExtracting: "EXTRACTING",
		StateAdvancing:  "ADVANCING",
		StateDone:       "DONE",
		StateFailed:     "FAILED",
		State(99):       "UNKNOWN",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "timeout", err: ErrPageLoadTimeout{URL: "u", Err: errors.New("x")}, expected: "page_load_timeout"},
		{name: "navigation", err: ErrNavigation{Err: errors.New("x")}, expected: "navigation"},
		{name: "extraction", err: ErrExtraction{Err: errors.New("x")}, expected: "extraction"},
		{name: "wrapped timeout", err: fmt.Errorf("outer: %w", ErrPageLoadTimeout{Err: errors.New("x")}), expected: "page_load_timeout"},
		{name: "other", err: errors.New("boom"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(tt.err); got != tt.expected {
				t.Fatalf("errorTypeLabel = %q, want %q", got, tt.expected)
			}
		})
	}
}
