package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/hochuen/go-scrape-library/config"
	"github.com/hochuen/go-scrape-library/parser"
	"github.com/hochuen/go-scrape-library/scraper"
)

var _ scraper.PageSource = (*Static)(nil)

// Static fetches listing pages over plain HTTP with a synchronous colly
// collector. It suits catalogs whose rows are server-rendered; pagination
// follows the next control's href instead of clicking it.
type Static struct {
	cfg       *config.Config
	collector *colly.Collector
	next      parser.NextControl

	mu         sync.Mutex
	currentURL string
	body       []byte
	doc        *goquery.Document
	lastErr    error
}

// NewStatic builds the HTTP page source.
func NewStatic(cfg *config.Config) (*Static, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.LoadTimeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.LoadTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	s := &Static{
		cfg:       cfg,
		collector: collector,
		next: parser.NextControl{
			Selector: cfg.NextSelector,
			Text:     cfg.NextText,
		},
	}

	collector.OnResponse(func(r *colly.Response) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.body = r.Body
		s.currentURL = r.Request.URL.String()
	})
	collector.OnError(func(_ *colly.Response, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastErr = err
	})

	return s, nil
}

// WithTransport swaps the collector's transport; used by tests.
func (s *Static) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Navigate fetches the URL and parses its content.
func (s *Static) Navigate(ctx context.Context, pageURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.body = nil
	s.doc = nil
	s.lastErr = nil
	s.mu.Unlock()

	if err := s.collector.Visit(pageURL); err != nil {
		return fmt.Errorf("visit %s: %w", pageURL, err)
	}
	s.collector.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		return fmt.Errorf("fetch %s: %w", pageURL, s.lastErr)
	}
	if s.body == nil {
		return fmt.Errorf("fetch %s: no response received", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(s.body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", pageURL, err)
	}
	s.doc = doc
	return nil
}

// WaitReady checks the fetched document for the row container. The
// content is fully downloaded already, so there is nothing to wait on;
// the timeout only bounds the fetch itself via the request timeout.
func (s *Static) WaitReady(_ context.Context, selector string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return fmt.Errorf("no page loaded")
	}
	if s.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("row container %q not present at %s", selector, s.currentURL)
	}
	return nil
}

// Reload re-fetches the current page.
func (s *Static) Reload(ctx context.Context) error {
	current := s.URL()
	if current == "" {
		return fmt.Errorf("no page loaded")
	}
	return s.Navigate(ctx, current)
}

// HTML returns the fetched page content.
func (s *Static) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body == nil {
		return "", fmt.Errorf("no page loaded")
	}
	return string(s.body), nil
}

// NextPage resolves the next control's href against the current page and
// fetches it. An absent or disabled control reports end-of-results.
func (s *Static) NextPage(ctx context.Context) (bool, error) {
	s.mu.Lock()
	doc := s.doc
	current := s.currentURL
	s.mu.Unlock()

	if doc == nil {
		return false, fmt.Errorf("no page loaded")
	}

	href, ok := s.next.Find(doc)
	if !ok {
		return false, nil
	}

	target, err := resolveURL(current, href)
	if err != nil {
		return false, fmt.Errorf("resolve next link %q: %w", href, err)
	}
	if err := s.Navigate(ctx, target); err != nil {
		return false, err
	}
	return true, nil
}

// URL returns the address of the current page.
func (s *Static) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL
}

// Close is a no-op; the collector holds no session state.
func (s *Static) Close() error {
	return nil
}

func resolveURL(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
