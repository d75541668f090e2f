package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	"tabular/internal/store"
)

// DefaultRowLimit is the ceiling appended to queries without a LIMIT clause.
const DefaultRowLimit = 500

// deniedKeywords are rejected anywhere in the statement text, including
// string literals and comments. This is a substring scan, not a parser:
// "updated_at" is rejected because it contains UPDATE.
var deniedKeywords = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE",
	"ATTACH", "DETACH",
	"PRAGMA", "VACUUM",
	"SQLITE_MASTER", "SQLITE_SCHEMA",
}

// limitClause is matched against the statement with literals and comments
// blanked, so 'limit' in a string does not suppress the ceiling. A LIMIT in
// a subquery still counts as present.
var limitClause = regexp.MustCompile(`(?i)\bLIMIT\b`)

// Validate applies the read-only policy to a query and returns the text to
// execute:
//  1. trim; empty is store.ErrInvalidInput
//  2. must start with SELECT (case-insensitive)
//  3. must not contain any denied keyword (case-insensitive substring)
//  4. must be a single statement: after the first ';' outside literals and
//     comments only whitespace, comments or further ';' may follow
//  5. without a LIMIT clause outside literals and comments, the statement
//     is cut at its terminator and LIMIT rowLimit appended on its own line
//
// rowLimit <= 0 uses DefaultRowLimit. Validate is pure.
func Validate(query string, rowLimit int) (string, error) {
	q, _, err := plan(query, rowLimit)
	return q, err
}

// plan is Validate plus whether the ceiling was appended by us.
func plan(query string, rowLimit int) (stmt string, capped bool, err error) {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	q := strings.TrimSpace(query)
	if q == "" {
		return "", false, fmt.Errorf("%w: empty query", store.ErrInvalidInput)
	}

	upper := strings.ToUpper(q)
	if !strings.HasPrefix(upper, "SELECT") {
		return "", false, &ForbiddenError{Reason: "only SELECT queries are allowed"}
	}
	for _, kw := range deniedKeywords {
		if strings.Contains(upper, kw) {
			return "", false, &ForbiddenError{Keyword: kw}
		}
	}

	code := blankLiterals(q)
	if end := strings.IndexByte(code, ';'); end >= 0 {
		if strings.TrimSpace(strings.ReplaceAll(code[end:], ";", " ")) != "" {
			return "", false, &ForbiddenError{Reason: "multiple statements are not allowed"}
		}
		if limitClause.MatchString(code) {
			return q, false, nil
		}
		q = strings.TrimSpace(q[:end])
	} else if limitClause.MatchString(code) {
		return q, false, nil
	}
	return fmt.Sprintf("%s\nLIMIT %d", q, rowLimit), true, nil
}

// blankLiterals returns q with quoted strings, quoted identifiers and
// comments replaced by spaces. Byte offsets are preserved. An unterminated
// literal or comment runs to the end of the text.
func blankLiterals(q string) string {
	b := []byte(q)
	blank := func(from, to int) {
		for k := from; k < to; k++ {
			b[k] = ' '
		}
	}
	skipTo := func(from int, close string) int {
		if k := strings.Index(q[from:], close); k >= 0 {
			return from + k + len(close)
		}
		return len(q)
	}

	for i := 0; i < len(q); {
		var end int
		switch {
		case q[i] == '\'' || q[i] == '"' || q[i] == '`':
			end = skipTo(i+1, q[i:i+1])
		case q[i] == '[':
			end = skipTo(i+1, "]")
		case strings.HasPrefix(q[i:], "--"):
			end = skipTo(i+2, "\n")
		case strings.HasPrefix(q[i:], "/*"):
			end = skipTo(i+2, "*/")
		default:
			i++
			continue
		}
		blank(i, end)
		i = end
	}
	return string(b)
}
