// Package parser extracts book records from captured listing page content.
// It works on static HTML so the extraction logic can be exercised without
// a live browser session.
package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hochuen/go-scrape-library/models"
)

// labelDelimiter separates a field label from its value in the listing
// markup, e.g. "Author: Jane Doe".
const labelDelimiter = ": "

// Selectors names the CSS selectors used to locate each field within one
// row container. Title is read directly from its element; the other text
// fields are keyed by an icon element whose parent carries the
// label-value text. NewRelease is a presence check.
type Selectors struct {
	Row             string
	Title           string
	District        string
	Author          string
	CopyID          string
	PublicationYear string
	Publisher       string
	CallNumber      string
	Edition         string
	NewRelease      string
}

// DefaultSelectors returns the selector set for the demo library catalog.
func DefaultSelectors() Selectors {
	return Selectors{
		Row:             ".card.listing-preview",
		Title:           "h4.text-primary",
		District:        "i.fas.fa-map-marker",
		Author:          "i.fa.fa-user",
		CopyID:          "i.fa.fa-clone",
		PublicationYear: "i.fa.fa-calendar",
		Publisher:       "i.fas.fa-money-bill-alt",
		CallNumber:      "i.fa.fa-list-ol",
		Edition:         "i.fas.fa-clock",
		NewRelease:      "span.badge.badge-secondary.text-white",
	}
}

// ExtractPage parses listing page content and returns one record per row
// container, in document order, plus a count of rows that matched the
// container selector but yielded no fields at all. Zero matching rows is
// not an error; the caller decides what an empty page means.
func ExtractPage(content io.Reader, sel Selectors) ([]*models.BookRecord, int, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return nil, 0, fmt.Errorf("parse page content: %w", err)
	}
	return ExtractDocument(doc, sel)
}

// ExtractDocument is ExtractPage over an already parsed document.
func ExtractDocument(doc *goquery.Document, sel Selectors) ([]*models.BookRecord, int, error) {
	var records []*models.BookRecord
	skipped := 0

	doc.Find(sel.Row).Each(func(_ int, row *goquery.Selection) {
		record := extractRow(row, sel)
		if record.Empty() {
			skipped++
			return
		}
		records = append(records, record)
	})

	return records, skipped, nil
}

func extractRow(row *goquery.Selection, sel Selectors) *models.BookRecord {
	return &models.BookRecord{
		Title:           directText(row, sel.Title),
		District:        labeledText(row, sel.District),
		Author:          labeledText(row, sel.Author),
		CopyID:          labeledText(row, sel.CopyID),
		PublicationYear: labeledText(row, sel.PublicationYear),
		Publisher:       labeledText(row, sel.Publisher),
		CallNumber:      labeledText(row, sel.CallNumber),
		Edition:         labeledText(row, sel.Edition),
		NewRelease:      row.Find(sel.NewRelease).Length() > 0,
	}
}

// directText returns the trimmed text of the first element matching the
// selector, or an empty string when there is no match.
func directText(row *goquery.Selection, selector string) string {
	match := row.Find(selector)
	if match.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(match.First().Text())
}

// labeledText locates the marker element for a field, reads its parent's
// text, and returns the part after the label delimiter. A missing marker
// or parent degrades to an empty string; it never aborts the row.
func labeledText(row *goquery.Selection, selector string) string {
	match := row.Find(selector)
	if match.Length() == 0 {
		return ""
	}
	parent := match.First().Parent()
	if parent.Length() == 0 {
		return ""
	}
	text := strings.TrimSpace(parent.Text())
	if text == "" {
		return ""
	}
	if _, value, found := strings.Cut(text, labelDelimiter); found {
		return strings.TrimSpace(value)
	}
	return text
}
