// Package ident maps free-form names (CSV headers, dataset labels) to
// storage-safe SQLite identifiers.
//
// Every function here is pure: the same input always produces the same
// output. Query authors outside this module (including generated SQL)
// recompute physical column names from the original header list, so the
// mapping must never depend on time, randomness, or process state.
package ident

import (
	"fmt"
	"strings"
)

// MaxTableLen bounds store/table identifiers.
const MaxTableLen = 60

// RowIDColumn is the implicit auto-increment column every store carries.
const RowIDColumn = "id"

// Column sanitizes a single column header:
//   - trim surrounding whitespace
//   - replace every rune outside [A-Za-z0-9_] with '_'
//   - prefix '_' when the result starts with a digit
//   - lowercase
//
// Different inputs may collide ("a b" and "a-b" both give "a_b"); use
// Columns to get a collision-free list for a whole header row.
func Column(s string) string {
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, r := range s {
		if i == 0 && r >= '0' && r <= '9' {
			b.WriteByte('_')
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Columns sanitizes a full header row into physical column names.
//
// The result is deterministic for a given header list and collision-free:
//   - an empty sanitized name becomes "column_<n>" (1-based position)
//   - the reserved row-id name and repeated names get "_2", "_3", ... suffixes
//     in header order, skipping suffixes that are already taken
func Columns(headers []string) []string {
	out := make([]string, len(headers))
	taken := map[string]bool{RowIDColumn: true}

	for i, h := range headers {
		base := Column(h)
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		name := base
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		out[i] = name
	}
	return out
}

// Table sanitizes a proposed table/store name and truncates it to MaxTableLen.
func Table(s string) string {
	s = Column(s)
	if len(s) > MaxTableLen {
		s = s[:MaxTableLen]
	}
	return s
}

// StoreName builds a store identifier from a dataset label and a uniqueness
// token (the store manager passes a time+random token). The token comes
// first so truncation only ever shortens the label.
func StoreName(label, token string) string {
	return Table("ds_" + token + "_" + label)
}

// Valid reports whether s is a well-formed store identifier: non-empty,
// at most MaxTableLen bytes, and only [a-z0-9_].
func Valid(s string) bool {
	if s == "" || len(s) > MaxTableLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '_' {
			return false
		}
	}
	return true
}

// Quote returns s as a double-quoted SQL identifier.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
