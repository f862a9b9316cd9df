package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NextControl describes how to recognise the pagination control that
// advances to the next listing page. When Selector is set it takes
// precedence; otherwise anchors are matched by their normalised text.
// End-of-pagination detection is site-specific, so callers substitute
// their own values where the defaults do not fit.
type NextControl struct {
	Selector string
	Text     string
}

// Find locates the next-page control in a parsed document and returns its
// href. The second return value is false when the control is absent or
// disabled, which signals end-of-results.
func (n NextControl) Find(doc *goquery.Document) (string, bool) {
	var match *goquery.Selection

	if n.Selector != "" {
		sel := doc.Find(n.Selector)
		if sel.Length() == 0 {
			return "", false
		}
		match = sel.First()
	} else {
		doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if strings.TrimSpace(a.Text()) == n.Text {
				match = a
				return false
			}
			return true
		})
		if match == nil {
			return "", false
		}
	}

	if controlDisabled(match) {
		return "", false
	}

	href, ok := match.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || href == "#" {
		return "", false
	}
	return href, true
}

// controlDisabled reports whether the control or its immediate parent is
// marked disabled, via class or attribute.
func controlDisabled(sel *goquery.Selection) bool {
	if sel.HasClass("disabled") || sel.Parent().HasClass("disabled") {
		return true
	}
	if _, ok := sel.Attr("disabled"); ok {
		return true
	}
	if v, ok := sel.Attr("aria-disabled"); ok && strings.EqualFold(v, "true") {
		return true
	}
	return false
}
