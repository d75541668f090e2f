// Package schema infers a coarse column type (numeric, date, text) from a
// sample of raw string values.
//
// Inference is best-effort and never fails: mixed or invalid data degrades to
// text, and values that do not fit a numeric column become NULL at load time.
package schema

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Type is the inferred classification of a column.
type Type string

const (
	Numeric Type = "numeric"
	Date    Type = "date"
	Text    Type = "text"
)

// DefaultSampleRows is how many leading rows Infer inspects per column.
const DefaultSampleRows = 100

const (
	numericThreshold = 0.8
	dateThreshold    = 0.6
)

// Column describes one original column. It is created once at ingestion
// and never mutated afterwards.
type Column struct {
	Name   string `json:"name"`
	Type   Type   `json:"type"`
	Sample string `json:"sample,omitempty"`
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}$`),
	regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{2,4}$`),
}

// Infer classifies every header using the first DefaultSampleRows rows.
func Infer(headers []string, rows [][]string) []Column {
	return InferWithSample(headers, rows, DefaultSampleRows)
}

// InferWithSample is Infer with an explicit sample size (<= 0 means default).
//
// Rows shorter than the header are tolerated; missing cells count as empty.
func InferWithSample(headers []string, rows [][]string, sampleRows int) []Column {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}
	if len(rows) > sampleRows {
		rows = rows[:sampleRows]
	}

	out := make([]Column, len(headers))
	values := make([]string, 0, len(rows))
	for col, h := range headers {
		values = values[:0]
		for _, r := range rows {
			if col < len(r) {
				values = append(values, r[col])
			} else {
				values = append(values, "")
			}
		}

		out[col] = Column{
			Name:   strings.TrimSpace(h),
			Type:   DetectType(values),
			Sample: firstNonEmpty(values),
		}
	}
	return out
}

// DetectType classifies a single column sample.
//
//   - numeric: at least 80% of non-empty values parse as numbers once
//     thousands separators are stripped
//   - date: otherwise, at least 60% match one of the date shapes
//     YYYY-MM-DD, M/D/YY(YY), M-D-YY(YY)
//   - text: everything else, including an all-empty sample
func DetectType(values []string) Type {
	var nonEmpty, numeric, date int
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		nonEmpty++
		if _, ok := ParseNumber(v); ok {
			numeric++
		}
		if isDateShape(v) {
			date++
		}
	}
	if nonEmpty == 0 {
		return Text
	}

	n := float64(nonEmpty)
	switch {
	case float64(numeric)/n >= numericThreshold:
		return Numeric
	case float64(date)/n >= dateThreshold:
		return Date
	default:
		return Text
	}
}

// ParseNumber parses a raw cell as a finite float64 after trimming and
// stripping ',' thousands separators. Empty, NaN and infinite values fail.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isDateShape(s string) bool {
	for _, p := range datePatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
