package source

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadSQL runs query on db and renders the result as a Table. It is shared
// by the database/sql backends.
func ReadSQL(ctx context.Context, db *sql.DB, name, query string, args ...any) (Table, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", name, err)
	}
	defer rows.Close()

	headers, err := rows.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("read %s columns: %w", name, err)
	}

	vals := make([]any, len(headers))
	ptrs := make([]any, len(headers))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	t := Table{Name: name, Headers: headers}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return Table{}, fmt.Errorf("read %s: %w", name, err)
		}
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = FormatValue(v)
		}
		t.Rows = append(t.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("read %s: %w", name, err)
	}
	if len(t.Rows) == 0 {
		return Table{}, fmt.Errorf("%w: %s", ErrEmptyTable, name)
	}
	return t, nil
}

// CountRows returns SELECT COUNT(*) for a quoted table, or nil when the
// count fails.
func CountRows(ctx context.Context, db *sql.DB, quoted string) *int64 {
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoted).Scan(&n); err != nil {
		return nil
	}
	return &n
}
