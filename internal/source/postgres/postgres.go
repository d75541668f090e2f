// Package postgres imports tables from the public schema of a PostgreSQL
// database using a pgx connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabular/internal/source"
)

func init() {
	source.Register("postgres", New)
}

const schemaName = "public"

// Source reads tables through a pgxpool.Pool.
type Source struct {
	pool *pgxpool.Pool
}

// New creates a pool for cfg.DSN and pings it.
func New(ctx context.Context, cfg source.Config) (source.Source, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Source{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Source) Close() { s.pool.Close() }

func (s *Source) ListTables(ctx context.Context) ([]source.TableInfo, error) {
	out, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		var count int64
		if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+qualified(out[i].Name)).Scan(&count); err == nil {
			out[i].RowCount = &count
		}
	}
	return out, nil
}

// catalog lists base tables without row counts.
func (s *Source) catalog(ctx context.Context) ([]source.TableInfo, error) {
	rows, err := s.pool.Query(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`, schemaName)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	out := make([]source.TableInfo, 0, len(names))
	for _, n := range names {
		out = append(out, source.TableInfo{Name: n, Schema: schemaName})
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

	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT $1", qualified(t.Name)), source.Limit(limit))
	if err != nil {
		return source.Table{}, fmt.Errorf("read %s: %w", t.Name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := source.Table{Name: t.Name, Headers: make([]string, len(fields))}
	for i, f := range fields {
		out.Headers[i] = f.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return source.Table{}, fmt.Errorf("read %s: %w", t.Name, err)
		}
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = source.FormatValue(v)
		}
		out.Rows = append(out.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return source.Table{}, fmt.Errorf("read %s: %w", t.Name, err)
	}
	if len(out.Rows) == 0 {
		return source.Table{}, fmt.Errorf("%w: %s", source.ErrEmptyTable, t.Name)
	}
	return out, nil
}

func qualified(table string) string {
	return pgx.Identifier{schemaName, table}.Sanitize()
}
