// Package fetcher provides page sources for the pagination driver: a
// headless browser for catalogs that render rows with JavaScript, and a
// plain HTTP client for server-rendered ones.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hochuen/go-scrape-library/config"
	"github.com/hochuen/go-scrape-library/scraper"
)

var _ scraper.PageSource = (*Browser)(nil)

// Browser drives a headless Chrome session through rod. One tab is used
// for the whole run; pagination happens by clicking the next control in
// place, since each page of the catalog depends on the prior page's
// loaded state.
type Browser struct {
	cfg     *config.Config
	browser *rod.Browser
	page    *rod.Page
}

// NewBrowser launches the browser and connects to it. A launch or
// connect failure means the run cannot start at all.
func NewBrowser(cfg *config.Config) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true).
		Leakless(false)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &Browser{
		cfg:     cfg,
		browser: browser,
	}, nil
}

// Navigate opens the tab on first use and loads the URL.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if b.page == nil {
		page, err := b.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return fmt.Errorf("open tab: %w", err)
		}
		b.page = page
	}

	page := b.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

// WaitReady blocks until the row container is present in the DOM.
func (b *Browser) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	if b.page == nil {
		return fmt.Errorf("no page loaded")
	}
	if _, err := b.page.Context(ctx).Timeout(timeout).Element(selector); err != nil {
		return fmt.Errorf("row container %q not present: %w", selector, err)
	}
	return nil
}

// Reload re-issues the current navigation.
func (b *Browser) Reload(ctx context.Context) error {
	if b.page == nil {
		return fmt.Errorf("no page loaded")
	}
	page := b.page.Context(ctx)
	if err := page.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for reload: %w", err)
	}
	return nil
}

// HTML returns the rendered content of the current page.
func (b *Browser) HTML() (string, error) {
	if b.page == nil {
		return "", fmt.Errorf("no page loaded")
	}
	content, err := b.page.HTML()
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return content, nil
}

// NextPage locates the next-page control and clicks it. An absent,
// hidden, or disabled control reports end-of-results.
func (b *Browser) NextPage(ctx context.Context) (bool, error) {
	if b.page == nil {
		return false, fmt.Errorf("no page loaded")
	}

	control, found := b.findNext(ctx)
	if !found {
		return false, nil
	}

	visible, err := control.Visible()
	if err != nil || !visible {
		return false, nil
	}
	if elementDisabled(control) {
		return false, nil
	}

	if err := control.ScrollIntoView(); err != nil {
		slog.Debug("scroll to next control failed", slog.Any("error", err))
	}
	if err := control.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("click next control: %w", err)
	}

	page := b.page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return false, fmt.Errorf("wait for next page: %w", err)
	}
	// Settle dynamic content before the driver starts its readiness wait.
	if err := page.Timeout(b.cfg.LoadTimeout).WaitStable(time.Second); err != nil {
		slog.Debug("page did not stabilise after click", slog.Any("error", err))
	}
	return true, nil
}

func (b *Browser) findNext(ctx context.Context) (*rod.Element, bool) {
	page := b.page.Context(ctx).Timeout(b.cfg.NextWait)

	if b.cfg.NextSelector != "" {
		el, err := page.Element(b.cfg.NextSelector)
		if err != nil {
			return nil, false
		}
		return el, true
	}

	el, err := page.ElementX(fmt.Sprintf(`//a[normalize-space()=%q]`, b.cfg.NextText))
	if err != nil {
		return nil, false
	}
	return el, true
}

// URL returns the current page address.
func (b *Browser) URL() string {
	if b.page == nil {
		return ""
	}
	info, err := b.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	if b.browser == nil {
		return nil
	}
	return b.browser.Close()
}

func elementDisabled(el *rod.Element) bool {
	if v, _ := el.Attribute("disabled"); v != nil {
		return true
	}
	if v, _ := el.Attribute("aria-disabled"); v != nil && *v == "true" {
		return true
	}
	if v, _ := el.Attribute("class"); v != nil {
		for _, class := range strings.Fields(*v) {
			if class == "disabled" {
				return true
			}
		}
	}
	return false
}
