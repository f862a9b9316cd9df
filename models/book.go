// Package models defines data structures for the scraper.
package models

import "time"

// BookRecord represents one book row from a catalog listing page. Field
// values are the raw listing text after whitespace trimming; a field the
// page does not carry stays an empty string.
type BookRecord struct {
	Title           string `csv:"title" json:"title"`
	District        string `csv:"district" json:"district"`
	Author          string `csv:"author" json:"author"`
	CopyID          string `csv:"copy_id" json:"copy_id"`
	PublicationYear string `csv:"publication_year" json:"publication_year"`
	Publisher       string `csv:"publisher" json:"publisher"`
	CallNumber      string `csv:"call_number" json:"call_number"`
	Edition         string `csv:"edition" json:"edition"`
	NewRelease      bool   `csv:"new_release" json:"new_release"`
}

// Empty reports whether no text field on the record carries a value. The
// NewRelease flag alone does not make a record non-empty.
func (r *BookRecord) Empty() bool {
	return r.Title == "" &&
		r.District == "" &&
		r.Author == "" &&
		r.CopyID == "" &&
		r.PublicationYear == "" &&
		r.Publisher == "" &&
		r.CallNumber == "" &&
		r.Edition == ""
}

// ScrapeResult holds the overall outcome of a scraping run.
type ScrapeResult struct {
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	RecordCount  int
	SkippedRows  int
	RetryCount   int
	Truncated    bool
	FinalState   string
	ErrorsByType map[string]int
}
