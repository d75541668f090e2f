// Package profile computes read-only aggregate summaries of a Dataset Store.
//
// Every call opens the store read-only, aggregates over the whole "data"
// table and closes the handle. Nothing is cached; stores never change after
// creation so a fresh profile always reflects the current contents.
package profile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tabular/internal/ident"
	"tabular/internal/metrics"
	"tabular/internal/store"
)

const (
	// DefaultTopValues bounds TopValues for text columns.
	DefaultTopValues = 10

	// DefaultSampleRows is the number of raw rows carried in a Report.
	DefaultSampleRows = 3
)

const (
	TypeNumeric = "numeric"
	TypeText    = "text"
)

// Opener opens a store read-only. *store.Manager implements it.
type Opener interface {
	OpenReadOnly(ctx context.Context, id string) (*sql.DB, error)
}

// Summary describes one physical column.
//
// Numeric columns fill Min, Max, Avg and Sum (nil when every value is null).
// Text columns fill DistinctCount and TopValues. Count is the number of
// non-null values in both cases.
type Summary struct {
	Type          string       `json:"type"`
	Count         int64        `json:"count"`
	Min           *float64     `json:"min,omitempty"`
	Max           *float64     `json:"max,omitempty"`
	Avg           *float64     `json:"avg,omitempty"`
	Sum           *float64     `json:"sum,omitempty"`
	DistinctCount int64        `json:"distinctCount,omitempty"`
	TopValues     []ValueCount `json:"topValues,omitempty"`
}

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Options tunes Build.
type Options struct {
	SampleRows int
	TopValues  int
}

func (o Options) withDefaults() Options {
	if o.SampleRows <= 0 {
		o.SampleRows = DefaultSampleRows
	}
	if o.TopValues <= 0 {
		o.TopValues = DefaultTopValues
	}
	return o
}

// Report bundles everything a prompt builder needs about one store.
type Report struct {
	StoreID  string             `json:"storeId"`
	RowCount int64              `json:"rowCount"`
	Columns  []string           `json:"columns"`
	Sample   []store.Row        `json:"sample"`
	Stats    map[string]Summary `json:"stats"`
}

// Columns profiles every data column of store id, keyed by physical
// column name. A missing store is store.ErrNotFound.
func Columns(ctx context.Context, stores Opener, id string) (map[string]Summary, error) {
	r, err := build(ctx, stores, id, Options{TopValues: DefaultTopValues}, false)
	if err != nil {
		return nil, err
	}
	return r.Stats, nil
}

// Build profiles store id and also returns its row count, physical column
// list and the first opts.SampleRows rows, all read through one handle.
func Build(ctx context.Context, stores Opener, id string, opts Options) (Report, error) {
	return build(ctx, stores, id, opts.withDefaults(), true)
}

func build(ctx context.Context, stores Opener, id string, opts Options, withSample bool) (Report, error) {
	start := time.Now()
	r, err := profileStore(ctx, stores, id, opts, withSample)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStep("profile", status, time.Since(start))
	return r, err
}

func profileStore(ctx context.Context, stores Opener, id string, opts Options, withSample bool) (Report, error) {
	db, err := stores.OpenReadOnly(ctx, id)
	if err != nil {
		return Report{}, err
	}
	defer db.Close()

	info, err := store.TableInfo(ctx, db)
	if err != nil {
		return Report{}, fmt.Errorf("profile %s: %w", id, err)
	}
	cols := store.DataColumns(info)

	r := Report{
		StoreID: id,
		Columns: make([]string, 0, len(cols)),
		Stats:   make(map[string]Summary, len(cols)),
	}
	for _, c := range cols {
		r.Columns = append(r.Columns, c.Name)

		var s Summary
		if c.Numeric() {
			s, err = numericSummary(ctx, db, c.Name)
		} else {
			s, err = textSummary(ctx, db, c.Name, opts.TopValues)
		}
		if err != nil {
			return Report{}, fmt.Errorf("profile %s column %s: %w", id, c.Name, err)
		}
		r.Stats[c.Name] = s
	}

	if withSample {
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s", store.TableName)
		if err := db.QueryRowContext(ctx, q).Scan(&r.RowCount); err != nil {
			return Report{}, fmt.Errorf("profile %s count: %w", id, err)
		}
		r.Sample, err = sample(ctx, db, opts.SampleRows)
		if err != nil {
			return Report{}, fmt.Errorf("profile %s sample: %w", id, err)
		}
	}
	return r, nil
}

func numericSummary(ctx context.Context, db *sql.DB, col string) (Summary, error) {
	q := fmt.Sprintf(`SELECT MIN(%[1]s), MAX(%[1]s), AVG(%[1]s), SUM(%[1]s), COUNT(%[1]s)
FROM %[2]s WHERE %[1]s IS NOT NULL`, ident.Quote(col), store.TableName)

	var minV, maxV, avgV, sumV sql.NullFloat64
	var count int64
	if err := db.QueryRowContext(ctx, q).Scan(&minV, &maxV, &avgV, &sumV, &count); err != nil {
		return Summary{}, err
	}
	return Summary{
		Type:  TypeNumeric,
		Count: count,
		Min:   floatPtr(minV),
		Max:   floatPtr(maxV),
		Avg:   floatPtr(avgV),
		Sum:   floatPtr(sumV),
	}, nil
}

func textSummary(ctx context.Context, db *sql.DB, col string, top int) (Summary, error) {
	quoted := ident.Quote(col)
	s := Summary{Type: TypeText, TopValues: []ValueCount{}}

	q := fmt.Sprintf(`SELECT COUNT(DISTINCT %[1]s), COUNT(%[1]s) FROM %[2]s WHERE %[1]s IS NOT NULL`,
		quoted, store.TableName)
	if err := db.QueryRowContext(ctx, q).Scan(&s.DistinctCount, &s.Count); err != nil {
		return Summary{}, err
	}

	// Ties are broken by value so the top list is stable across calls.
	q = fmt.Sprintf(`SELECT CAST(%[1]s AS TEXT) AS val, COUNT(*) AS cnt FROM %[2]s
WHERE %[1]s IS NOT NULL GROUP BY %[1]s ORDER BY cnt DESC, val ASC LIMIT ?`,
		quoted, store.TableName)
	rows, err := db.QueryContext(ctx, q, top)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return Summary{}, err
		}
		s.TopValues = append(s.TopValues, vc)
	}
	return s, rows.Err()
}

func sample(ctx context.Context, db *sql.DB, limit int) ([]store.Row, error) {
	q := fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT ?", store.TableName, ident.Quote(ident.RowIDColumn))
	rows, err := db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	_, out, err := store.ScanRows(rows, limit)
	if out == nil {
		out = []store.Row{}
	}
	return out, err
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
