package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestNextControlFind(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		control  NextControl
		wantHref string
		wantOK   bool
	}{
		{
			name:     "text match",
			html:     `<ul class="pagination"><li><a href="?page=2">»</a></li></ul>`,
			control:  NextControl{Text: "»"},
			wantHref: "?page=2",
			wantOK:   true,
		},
		{
			name:     "text match with surrounding whitespace",
			html:     `<a href="/books/?page=3">  »  </a>`,
			control:  NextControl{Text: "»"},
			wantHref: "/books/?page=3",
			wantOK:   true,
		},
		{
			name:    "absent control",
			html:    `<ul class="pagination"><li><a href="?page=1">1</a></li></ul>`,
			control: NextControl{Text: "»"},
			wantOK:  false,
		},
		{
			name:    "disabled parent",
			html:    `<ul class="pagination"><li class="disabled"><a href="?page=2">»</a></li></ul>`,
			control: NextControl{Text: "»"},
			wantOK:  false,
		},
		{
			name:    "disabled class on anchor",
			html:    `<a class="page-link disabled" href="?page=2">»</a>`,
			control: NextControl{Text: "»"},
			wantOK:  false,
		},
		{
			name:    "aria-disabled",
			html:    `<a aria-disabled="true" href="?page=2">»</a>`,
			control: NextControl{Text: "»"},
			wantOK:  false,
		},
		{
			name:    "placeholder href",
			html:    `<a href="#">»</a>`,
			control: NextControl{Text: "»"},
			wantOK:  false,
		},
		{
			name:    "missing href",
			html:    `<a>»</a>`,
			control: NextControl{Text: "»"},
			wantOK:  false,
		},
		{
			name:     "selector match",
			html:     `<nav><a class="next" href="/p/2">Next</a></nav>`,
			control:  NextControl{Selector: "a.next"},
			wantHref: "/p/2",
			wantOK:   true,
		},
		{
			name:    "selector takes precedence over text",
			html:    `<nav><a href="/wrong">»</a></nav>`,
			control: NextControl{Selector: "a.next", Text: "»"},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			href, ok := tt.control.Find(mustDoc(t, tt.html))
			if ok != tt.wantOK {
				t.Fatalf("Find ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && href != tt.wantHref {
				t.Fatalf("Find href = %q, want %q", href, tt.wantHref)
			}
		})
	}
}
