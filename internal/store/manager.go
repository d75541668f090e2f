// Package store owns the on-disk Dataset Stores: one SQLite file per
// ingested dataset, each holding a single table named "data".
//
// A Manager is bound to one base directory. Every operation opens its own
// handle and closes it before returning (create: open-write-close; reads:
// open-read-close); no connection outlives a call. Stores are written once,
// inside a single transaction, and are read-only afterwards, so reads
// against the same or different stores need no coordination.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tabular/internal/ident"
)

// TableName is the single logical table inside every store.
const TableName = "data"

const fileExt = ".sqlite"

// Logger is the minimal logging interface used by the store manager.
// *log.Logger and *logrus.Logger both satisfy it.
type Logger interface {
	Printf(format string, v ...any)
}

// Options configures a Manager.
type Options struct {
	// BaseDir holds one <store id>.sqlite file per dataset. Created if missing.
	BaseDir string

	// Logger receives lifecycle messages. Nil discards them.
	Logger Logger

	// Now and NewToken are seams for deterministic store ids in tests.
	Now      func() time.Time
	NewToken func(now time.Time) string
}

// Manager creates and opens Dataset Stores under a single base directory.
type Manager struct {
	baseDir  string
	logger   Logger
	now      func() time.Time
	newToken func(now time.Time) string
}

// NewManager returns a Manager rooted at opts.BaseDir, creating the
// directory when needed.
func NewManager(opts Options) (*Manager, error) {
	if strings.TrimSpace(opts.BaseDir) == "" {
		return nil, fmt.Errorf("%w: store base dir is empty", ErrInvalidInput)
	}
	abs, err := filepath.Abs(opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve store base dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create store base dir: %w", err)
	}

	m := &Manager{
		baseDir:  abs,
		logger:   opts.Logger,
		now:      opts.Now,
		newToken: opts.NewToken,
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard, "", 0)
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newToken == nil {
		m.newToken = defaultToken
	}
	return m, nil
}

// defaultToken combines wall-clock milliseconds with 8 random hex digits so
// two imports of the same label in the same millisecond still differ.
func defaultToken(now time.Time) string {
	r := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d_%s", now.UnixMilli(), r[:8])
}

// BaseDir returns the absolute directory holding the store files.
func (m *Manager) BaseDir() string { return m.baseDir }

// Path returns the file path for a store id. It does not check existence.
func (m *Manager) Path(id string) string {
	return filepath.Join(m.baseDir, id+fileExt)
}

// Exists reports whether a well-formed id has a backing file.
func (m *Manager) Exists(id string) bool {
	if !ident.Valid(id) {
		return false
	}
	st, err := os.Stat(m.Path(id))
	return err == nil && st.Mode().IsRegular()
}

// List returns the ids of all stores under the base directory, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		if ident.Valid(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Remove deletes a store file. Callers use it to roll back a store whose
// metadata could not be registered.
func (m *Manager) Remove(id string) error {
	if !m.Exists(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(m.Path(id)); err != nil {
		return fmt.Errorf("remove store %s: %w", id, err)
	}
	m.logger.Printf("store: removed %s", id)
	return nil
}

// OpenReadOnly opens an existing store in read-only, query-only mode. The
// caller owns the handle and must Close it.
//
// Errors:
//   - ErrNotFound if id is malformed or has no backing file.
//   - Any driver error from opening/pinging the file.
func (m *Manager) OpenReadOnly(ctx context.Context, id string) (*sql.DB, error) {
	if !ident.Valid(id) {
		return nil, fmt.Errorf("%w: invalid store id %q", ErrNotFound, id)
	}
	path := m.Path(id)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("stat store %s: %w", id, err)
	}

	db, err := sql.Open("sqlite", fileDSN(path, "mode=ro&_pragma=query_only(1)"))
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", id, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open store %s: %w", id, err)
	}
	return db, nil
}

// fileDSN builds a SQLite URI filename for an absolute path.
func fileDSN(path, query string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: query}
	return u.String()
}
