// Package source reads tables from external databases so they can be
// imported as Dataset Stores.
//
// Backends register themselves by kind from an init function; binaries pull
// them in with a blank import of tabular/internal/source/all.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DefaultRowLimit caps ReadTable when the caller passes limit <= 0.
const DefaultRowLimit = 10000

var (
	// ErrEmptyTable is returned by ReadTable when the table has no rows.
	ErrEmptyTable = errors.New("table is empty")

	// ErrUnknownTable is returned when a table name is not in ListTables.
	ErrUnknownTable = errors.New("unknown table")
)

// Config selects and configures a backend.
//
// Kind must match a registered backend ("postgres", "sqlserver", "sqlite").
// DSN is passed through to the backend unchanged.
type Config struct {
	Kind string
	DSN  string
}

// TableInfo describes one importable table. RowCount is nil when the count
// could not be read (missing privileges, view errors).
type TableInfo struct {
	Name     string `json:"name"`
	Schema   string `json:"schema,omitempty"`
	RowCount *int64 `json:"rowCount"`
}

// Table is a fetched table with every value rendered by FormatValue.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Source is a read-only connection to an external database.
type Source interface {
	// ListTables returns the base tables visible to the connection, sorted
	// by name.
	ListTables(ctx context.Context) ([]TableInfo, error)

	// ReadTable fetches up to limit rows of a table returned by ListTables.
	// Unknown names are ErrUnknownTable; a table without rows is
	// ErrEmptyTable.
	ReadTable(ctx context.Context, name string, limit int) (Table, error)

	// Close releases the connection. Call once.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register makes a backend available under kind. It panics on an empty
// kind, a nil factory or a duplicate registration.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("source: Register called with empty kind")
	}
	if f == nil {
		panic("source: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("source: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open connects to the backend registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Source, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("source: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported source kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Lookup finds name in tables. Backends call it before building SQL so
// only catalog-known identifiers are ever quoted into a statement.
func Lookup(tables []TableInfo, name string) (TableInfo, error) {
	for _, t := range tables {
		if t.Name == name {
			return t, nil
		}
	}
	return TableInfo{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
}

// SortTables orders tables by name, then schema.
func SortTables(tables []TableInfo) {
	sort.SliceStable(tables, func(i, j int) bool {
		if tables[i].Name == tables[j].Name {
			return tables[i].Schema < tables[j].Schema
		}
		return tables[i].Name < tables[j].Name
	})
}

// Limit applies DefaultRowLimit to non-positive values.
func Limit(n int) int {
	if n <= 0 {
		return DefaultRowLimit
	}
	return n
}
