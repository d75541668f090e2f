// Package sandbox validates and executes untrusted, read-only SQL against a
// single Dataset Store.
//
// Hand-written queries and generated queries pass the same gate. A query is
// checked by Validate before any store is opened, so a rejected query never
// reaches the engine. Accepted queries run on a fresh read-only handle that
// is closed before Run returns.
package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tabular/internal/metrics"
	"tabular/internal/store"
)

// Opener opens a store read-only. *store.Manager implements it.
type Opener interface {
	OpenReadOnly(ctx context.Context, id string) (*sql.DB, error)
}

// Result is the materialized outcome of one query.
type Result struct {
	Columns []string    `json:"columns"`
	Rows    []store.Row `json:"rows"`
}

// Sandbox executes queries against stores opened through Stores.
type Sandbox struct {
	Stores Opener

	// RowLimit is the ceiling appended to queries without LIMIT.
	// <= 0 means DefaultRowLimit.
	RowLimit int
}

// New returns a Sandbox with the given row ceiling.
func New(stores Opener, rowLimit int) *Sandbox {
	return &Sandbox{Stores: stores, RowLimit: rowLimit}
}

// Run validates query and executes it against store id.
//
// Errors:
//   - store.ErrInvalidInput for empty query text.
//   - ErrForbidden (*ForbiddenError) for non-SELECT or denied keywords.
//   - store.ErrNotFound when id has no backing store.
//   - ErrQueryFailed (*QueryError) for any engine error, message preserved.
func (s *Sandbox) Run(ctx context.Context, id, query string) (Result, error) {
	start := time.Now()
	res, err := s.run(ctx, id, query)
	status := classify(err)
	metrics.RecordQuery(status)
	metrics.RecordStep("query", status, time.Since(start))
	if err == nil {
		metrics.RecordRows("returned", len(res.Rows))
	}
	return res, err
}

func (s *Sandbox) run(ctx context.Context, id, query string) (Result, error) {
	limit := s.RowLimit
	if limit <= 0 {
		limit = DefaultRowLimit
	}

	stmt, capped, err := plan(query, limit)
	if err != nil {
		return Result{}, err
	}

	db, err := s.Stores.OpenReadOnly(ctx, id)
	if err != nil {
		return Result{}, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, &QueryError{Query: stmt, Err: err}
	}
	defer rows.Close()

	max := 0
	if capped {
		max = limit
	}
	columns, out, err := store.ScanRows(rows, max)
	if err != nil {
		return Result{}, &QueryError{Query: stmt, Err: err}
	}

	if len(out) == 0 {
		return Result{Columns: []string{}, Rows: []store.Row{}}, nil
	}
	return Result{Columns: columns, Rows: out}, nil
}

func classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, store.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "failed"
	}
}
