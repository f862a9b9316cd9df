package scraper

import (
	"context"
	"time"
)

// PageSource abstracts where listing page content comes from, so the
// driver can run against a headless browser, a plain HTTP client, or a
// test double. A source holds exactly one current page at a time.
type PageSource interface {
	// Navigate loads the given URL and makes it the current page.
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until the row container selector is present on the
	// current page, or the timeout expires.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error

	// Reload re-issues the current page's navigation; used between retry
	// attempts after a failed WaitReady.
	Reload(ctx context.Context) error

	// HTML returns the current page's content.
	HTML() (string, error)

	// NextPage operates the next-page control. It returns false when the
	// control is absent or disabled, which signals end-of-results.
	NextPage(ctx context.Context) (bool, error)

	// URL returns the current page's address, or an empty string when it
	// is not known.
	URL() string

	// Close releases the underlying session. It must be safe to call on
	// every exit path.
	Close() error
}
