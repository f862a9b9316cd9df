package scraper

import (
	"errors"
	"fmt"
)

// ErrPageLoadTimeout indicates the row container never appeared on a page
// within the configured wait, across the whole retry budget.
type ErrPageLoadTimeout struct {
	URL string
	Err error
}

func (e ErrPageLoadTimeout) Error() string {
	return fmt.Sprintf("page load timeout at %s: %v", e.URL, e.Err)
}

func (e ErrPageLoadTimeout) Unwrap() error {
	return e.Err
}

// ErrNavigation indicates the page source could not be driven at all,
// e.g. the browser failed to launch or the initial request failed.
type ErrNavigation struct {
	Err error
}

func (e ErrNavigation) Error() string {
	return fmt.Errorf("navigation unavailable: %w", e.Err).Error()
}

func (e ErrNavigation) Unwrap() error {
	return e.Err
}

// ErrExtraction indicates the current page's content could not be read or
// parsed.
type ErrExtraction struct {
	Err error
}

func (e ErrExtraction) Error() string {
	return fmt.Errorf("extraction: %w", e.Err).Error()
}

func (e ErrExtraction) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrPageLoadTimeout
	if errors.As(err, &timeout) {
		return "page_load_timeout"
	}
	var nav ErrNavigation
	if errors.As(err, &nav) {
		return "navigation"
	}
	var extract ErrExtraction
	if errors.As(err, &extract) {
		return "extraction"
	}
	return "other"
}
