// Package ingest turns uploaded files and remote tables into Dataset
// Stores: parse, infer column types, then create the store.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"tabular/internal/metrics"
	"tabular/internal/schema"
	"tabular/internal/source"
	"tabular/internal/store"
)

// Logger is the minimal logging interface used by the ingester.
type Logger interface {
	Printf(format string, v ...any)
}

// Creator builds a store. *store.Manager implements it.
type Creator interface {
	Create(ctx context.Context, label string, headers []string, rows [][]string, cols []schema.Column) (store.Created, error)
}

// Dataset is the metadata record handed back to callers after ingestion.
// The ingester does not persist it.
type Dataset struct {
	Name             string          `json:"name"`
	OriginalFilename string          `json:"originalFilename,omitempty"`
	StoreID          string          `json:"tableName"`
	RowCount         int             `json:"rowCount"`
	Skipped          int             `json:"skipped"`
	Columns          []schema.Column `json:"columns"`
}

// Ingester wires the readers, type inference and the store builder.
type Ingester struct {
	Stores Creator

	// Logger defaults to discarding output.
	Logger Logger

	// SampleRows is the inference window; <= 0 uses schema.DefaultSampleRows.
	SampleRows int

	// CSV is applied to CSV uploads.
	CSV CSVOptions
}

func (in *Ingester) logf(format string, v ...any) {
	if in.Logger != nil {
		in.Logger.Printf(format, v...)
	}
}

// Ingest infers the schema of t and creates a store labeled label.
func (in *Ingester) Ingest(ctx context.Context, label string, t Table) (Dataset, error) {
	if strings.TrimSpace(label) == "" {
		return Dataset{}, fmt.Errorf("%w: empty dataset label", store.ErrInvalidInput)
	}
	if err := t.validate(); err != nil {
		return Dataset{}, err
	}

	cols := schema.InferWithSample(t.Headers, t.Rows, in.SampleRows)
	created, err := in.Stores.Create(ctx, label, t.Headers, t.Rows, cols)
	if err != nil {
		return Dataset{}, err
	}
	in.logf("ingest: %q -> %s rows=%d skipped=%d", label, created.StoreID, created.RowCount, t.Skipped)

	return Dataset{
		Name:     label,
		StoreID:  created.StoreID,
		RowCount: created.RowCount,
		Skipped:  t.Skipped,
		Columns:  cols,
	}, nil
}

// IngestFile reads an uploaded file and ingests it. Files ending in .html
// or .htm are read with ReadHTMLTable (first table); anything else is CSV.
// The dataset name is the file name without its .csv extension.
func (in *Ingester) IngestFile(ctx context.Context, filename string, r io.Reader) (Dataset, error) {
	var (
		t   Table
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		t, err = ReadHTMLTable(r, 0)
	default:
		t, err = ReadCSV(r, in.CSV)
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", filename, err)
	}

	ds, err := in.Ingest(ctx, LabelFromFilename(filename), t)
	if err != nil {
		return Dataset{}, err
	}
	ds.OriginalFilename = filepath.Base(filename)
	return ds, nil
}

// ImportTable reads up to limit rows of a remote table and ingests them
// under the label "<kind>_<table>".
func (in *Ingester) ImportTable(ctx context.Context, src source.Source, kind, table string, limit int) (Dataset, error) {
	start := time.Now()
	ds, err := in.importTable(ctx, src, kind, table, limit)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStep("import", status, time.Since(start))
	return ds, err
}

func (in *Ingester) importTable(ctx context.Context, src source.Source, kind, table string, limit int) (Dataset, error) {
	st, err := src.ReadTable(ctx, table, source.Limit(limit))
	if err != nil {
		return Dataset{}, err
	}
	in.logf("ingest: fetched %d rows from %s table %s", len(st.Rows), kind, table)

	return in.Ingest(ctx, kind+"_"+table, Table{Headers: cleanHeaders(st.Headers), Rows: st.Rows})
}

// LabelFromFilename strips directories and a trailing .csv (any case).
func LabelFromFilename(filename string) string {
	base := filepath.Base(filename)
	if strings.EqualFold(filepath.Ext(base), ".csv") {
		base = base[:len(base)-len(".csv")]
	}
	return base
}

var _ Logger = (*log.Logger)(nil)
