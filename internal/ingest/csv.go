package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"tabular/internal/store"
)

// CSVOptions controls ReadCSV.
type CSVOptions struct {
	// Delimiter defaults to ','.
	Delimiter rune

	// Encoding is a WHATWG label ("windows-1250", "latin1", "utf-16le").
	// Empty means UTF-8. A byte-order mark always wins over this setting.
	Encoding string
}

// Table is a parsed upload: trimmed headers plus rows that each have
// exactly len(Headers) fields.
type Table struct {
	Headers []string
	Rows    [][]string

	// Skipped counts records dropped for a field-count mismatch or a
	// malformed quote.
	Skipped int
}

// ReadCSV parses r as delimited text. The first record is the header; blank
// lines are ignored; records whose field count differs from the header are
// dropped and counted in Skipped. At least one data row must survive.
func ReadCSV(r io.Reader, opts CSVOptions) (Table, error) {
	dec, err := decoder(opts.Encoding)
	if err != nil {
		return Table{}, err
	}

	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(dec)))
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1 // validated per record below
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if err == io.EOF {
		return Table{}, fmt.Errorf("%w: csv is empty", store.ErrInvalidInput)
	}
	if err != nil {
		return Table{}, fmt.Errorf("%w: read header: %v", store.ErrInvalidInput, err)
	}
	headers = cleanHeaders(headers)

	t := Table{Headers: headers}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				t.Skipped++
				continue
			}
			return Table{}, fmt.Errorf("csv read: %w", err)
		}
		if len(rec) != len(headers) {
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

func (t Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("%w: no header row", store.ErrInvalidInput)
	}
	if len(t.Rows) == 0 {
		return fmt.Errorf("%w: must have a header row and at least one data row", store.ErrInvalidInput)
	}
	return nil
}

func cleanHeaders(in []string) []string {
	out := make([]string, len(in))
	for i, h := range in {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func decoder(label string) (transform.Transformer, error) {
	if strings.TrimSpace(label) == "" {
		return unicode.UTF8.NewDecoder(), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", store.ErrInvalidInput, label)
	}
	return enc.NewDecoder(), nil
}
