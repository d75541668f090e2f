// Package sqlite imports tables from a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"tabular/internal/source"
)

func init() {
	source.Register("sqlite", New)
}

// Source reads a SQLite file through the modernc driver.
type Source struct {
	db *sql.DB
}

// New opens cfg.DSN (a path or file: URI) and verifies the connection.
func New(ctx context.Context, cfg source.Config) (source.Source, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Source{db: db}, nil
}

func (s *Source) Close() { _ = s.db.Close() }

// ListTables lists user tables; SQLite's internal tables are skipped.
func (s *Source) ListTables(ctx context.Context) ([]source.TableInfo, error) {
	out, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].RowCount = source.CountRows(ctx, s.db, quoteIdent(out[i].Name))
	}
	return out, nil
}

// catalog lists user tables without row counts.
func (s *Source) catalog(ctx context.Context) ([]source.TableInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]source.TableInfo, 0, len(names))
	for _, n := range names {
		out = append(out, source.TableInfo{Name: n})
	}
	source.SortTables(out)
	return out, nil
}

func (s *Source) ReadTable(ctx context.Context, name string, limit int) (source.Table, error) {
	tables, err := s.catalog(ctx)
	if err != nil {
		return source.Table{}, err
	}
	t, err := source.Lookup(tables, name)
	if err != nil {
		return source.Table{}, err
	}
	q := fmt.Sprintf("SELECT * FROM %s LIMIT ?", quoteIdent(t.Name))
	return source.ReadSQL(ctx, s.db, t.Name, q, source.Limit(limit))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
