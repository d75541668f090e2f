package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tabular/internal/store"
)

// ReadHTMLTable extracts the index-th <table> of an HTML document. The first
// row (from <thead> when present) is the header; every later <tr> becomes a
// record built from its <th>/<td> cells in document order. Row filtering
// follows ReadCSV.
func ReadHTMLTable(r io.Reader, index int) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("parse html: %w", err)
	}

	tables := doc.Find("table")
	if index < 0 || index >= tables.Length() {
		return Table{}, fmt.Errorf("%w: html has %d tables, no table at index %d", store.ErrInvalidInput, tables.Length(), index)
	}
	table := tables.Eq(index)

	var records [][]string
	// Rows of nested tables belong to those tables.
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.ParentsFiltered("table").First().IsSelection(table) {
			records = append(records, cellTexts(tr))
		}
	})
	if len(records) == 0 {
		return Table{}, fmt.Errorf("%w: table %d has no rows", store.ErrInvalidInput, index)
	}

	t := Table{Headers: cleanHeaders(records[0])}
	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		if len(rec) != len(t.Headers) {
			t.Skipped++
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	if err := t.validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

func cellTexts(tr *goquery.Selection) []string {
	cells := tr.ChildrenFiltered("th, td")
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.Join(strings.Fields(c.Text()), " "))
	})
	return out
}
