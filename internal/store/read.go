package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tabular/internal/ident"
	"tabular/internal/metrics"
)

// DefaultSampleRows is used by SampleRows when limit <= 0.
const DefaultSampleRows = 5

// Row is one result record keyed by column name.
type Row map[string]any

// Querier is the read side of *sql.DB / *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PhysicalColumn is one column of the "data" table as SQLite reports it.
type PhysicalColumn struct {
	Name     string
	DeclType string
	PK       bool
}

// Numeric reports whether the column was declared with REAL affinity.
func (c PhysicalColumn) Numeric() bool { return c.DeclType == "REAL" }

// TableInfo lists the columns of the "data" table in declaration order,
// including the row-id column.
func TableInfo(ctx context.Context, q Querier) ([]PhysicalColumn, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", TableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PhysicalColumn
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out = append(out, PhysicalColumn{Name: name, DeclType: typ, PK: pk > 0})
	}
	return out, rows.Err()
}

// DataColumns returns cols without the row-id column.
func DataColumns(cols []PhysicalColumn) []PhysicalColumn {
	out := make([]PhysicalColumn, 0, len(cols))
	for _, c := range cols {
		if c.PK && c.Name == ident.RowIDColumn {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Columns returns the physical column identifiers of a store, in header
// order, excluding the row-id column.
func (m *Manager) Columns(ctx context.Context, id string) ([]string, error) {
	db, err := m.OpenReadOnly(ctx, id)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	info, err := TableInfo(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", id, err)
	}
	data := DataColumns(info)
	out := make([]string, len(data))
	for i, c := range data {
		out[i] = c.Name
	}
	return out, nil
}

// SampleRows returns the first limit rows of a store in insertion order.
func (m *Manager) SampleRows(ctx context.Context, id string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = DefaultSampleRows
	}
	start := time.Now()

	db, err := m.OpenReadOnly(ctx, id)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT ?", TableName, ident.Quote(ident.RowIDColumn))
	rows, err := db.QueryContext(ctx, q, limit)
	if err != nil {
		metrics.RecordStep("sample", "error", time.Since(start))
		return nil, fmt.Errorf("sample %s: %w", id, err)
	}
	defer rows.Close()

	_, out, err := ScanRows(rows, 0)
	if err != nil {
		metrics.RecordStep("sample", "error", time.Since(start))
		return nil, fmt.Errorf("sample %s: %w", id, err)
	}
	metrics.RecordStep("sample", "ok", time.Since(start))
	return out, nil
}

// ScanRows materializes up to max rows (max <= 0 reads all). Column order
// comes from the driver; repeated names keep their first position and the
// last value wins in the record. TEXT values read back as []byte are
// returned as string.
func ScanRows(rows *sql.Rows, max int) ([]string, []Row, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(names))
	columns := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			columns = append(columns, n)
		}
	}

	vals := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var out []Row
	for (max <= 0 || len(out) < max) && rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		r := make(Row, len(columns))
		for i, n := range names {
			r[n] = normalizeValue(vals[i])
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
