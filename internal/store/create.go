package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"tabular/internal/ident"
	"tabular/internal/metrics"
	"tabular/internal/schema"
)

// Created is the outcome of a successful Create.
type Created struct {
	StoreID  string
	RowCount int
	// Columns are the physical column names, aligned with the input headers.
	Columns []string
}

// Create builds a new store from a header row, data rows, and the inferred
// column descriptors.
//
// The table is created with an implicit "id INTEGER PRIMARY KEY AUTOINCREMENT"
// followed by one column per header (REAL for numeric descriptors, TEXT
// otherwise), in header order. All rows are inserted in one transaction:
//   - numeric cells: ',' stripped and parsed; NULL when unparseable or empty
//   - other cells: trimmed string; NULL when empty
//
// The file is written under a temporary name and renamed into place only
// after commit, so a store id never refers to a partially loaded file.
//
// Errors:
//   - ErrInvalidInput for no headers, descriptor/header count mismatch, or
//     any row whose length differs from the header (callers filter these).
//   - ErrCreateFailed wrapping the engine or I/O error otherwise.
func (m *Manager) Create(ctx context.Context, label string, headers []string, rows [][]string, cols []schema.Column) (Created, error) {
	start := time.Now()
	out, err := m.create(ctx, label, headers, rows, cols)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStep("create_store", status, time.Since(start))
	if err == nil {
		metrics.RecordRows("loaded", out.RowCount)
	}
	return out, err
}

func (m *Manager) create(ctx context.Context, label string, headers []string, rows [][]string, cols []schema.Column) (Created, error) {
	if len(headers) == 0 {
		return Created{}, fmt.Errorf("%w: no columns", ErrInvalidInput)
	}
	if len(cols) != len(headers) {
		return Created{}, fmt.Errorf("%w: %d column descriptors for %d headers", ErrInvalidInput, len(cols), len(headers))
	}
	for i, r := range rows {
		if len(r) != len(headers) {
			return Created{}, fmt.Errorf("%w: row %d has %d fields, want %d", ErrInvalidInput, i, len(r), len(headers))
		}
	}

	id := ident.StoreName(label, m.newToken(m.now()))
	physical := ident.Columns(headers)
	numeric := make([]bool, len(cols))
	for i, c := range cols {
		numeric[i] = c.Type == schema.Numeric
	}

	final := m.Path(id)
	if _, err := os.Stat(final); err == nil {
		return Created{}, fmt.Errorf("%w: store %s already exists", ErrCreateFailed, id)
	}
	tmp := final + ".tmp"
	removeFiles(tmp)

	if err := writeStore(ctx, tmp, physical, numeric, rows); err != nil {
		removeFiles(tmp)
		return Created{}, fmt.Errorf("%w: %s: %v", ErrCreateFailed, id, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		removeFiles(tmp)
		return Created{}, fmt.Errorf("%w: %s: %v", ErrCreateFailed, id, err)
	}

	m.logger.Printf("store: created %s columns=%d rows=%d", id, len(physical), len(rows))
	return Created{StoreID: id, RowCount: len(rows), Columns: physical}, nil
}

// writeStore creates the schema and bulk-loads rows into a fresh file.
func writeStore(ctx context.Context, path string, columns []string, numeric []bool, rows [][]string) (err error) {
	db, err := sql.Open("sqlite", fileDSN(path, "mode=rwc"))
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := db.ExecContext(ctx, buildCreateTableSQL(columns, numeric)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, buildInsertSQL(columns))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		coerceRow(row, numeric, args)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// buildCreateTableSQL generates the DDL for the "data" table.
func buildCreateTableSQL(columns []string, numeric []bool) string {
	parts := make([]string, 0, len(columns)+1)
	parts = append(parts, fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", ident.Quote(ident.RowIDColumn)))
	for i, c := range columns {
		typ := "TEXT"
		if numeric[i] {
			typ = "REAL"
		}
		parts = append(parts, fmt.Sprintf("%s %s", ident.Quote(c), typ))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", TableName, strings.Join(parts, ",\n  "))
}

func buildInsertSQL(columns []string) string {
	quoted := make([]string, 0, len(columns))
	for _, c := range columns {
		quoted = append(quoted, ident.Quote(c))
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(columns)), ",")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", TableName, strings.Join(quoted, ", "), placeholders)
}

// coerceRow converts raw cells into driver values, writing into dst.
func coerceRow(row []string, numeric []bool, dst []any) {
	for i, v := range row {
		if numeric[i] {
			if f, ok := schema.ParseNumber(v); ok {
				dst[i] = f
			} else {
				dst[i] = nil
			}
			continue
		}
		if v = strings.TrimSpace(v); v == "" {
			dst[i] = nil
		} else {
			dst[i] = v
		}
	}
}

// removeFiles deletes a database file and its rollback journal, ignoring
// missing files.
func removeFiles(path string) {
	for _, p := range []string{path, path + "-journal"} {
		_ = os.Remove(p)
	}
}
