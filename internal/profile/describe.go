package profile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"tabular/internal/ident"
	"tabular/internal/schema"
)

// describeTopValues is how many frequent values Describe prints per column.
const describeTopValues = 5

// Describe renders a plain-text summary of a dataset for prompt grounding:
// the row count, one line per column descriptor with its stats, up to three
// sample rows as indented JSON and the literal physical column list.
//
// Descriptors are mapped to physical names with ident.Columns, the same
// mapping the store uses, so suffixed collisions line up.
func Describe(r Report, cols []schema.Column, rowCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset has %d rows and the following columns in the SQLite table %q:\n", rowCount, "data")

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Name
	}
	physical := ident.Columns(headers)

	for i, c := range cols {
		name := physical[i]
		fmt.Fprintf(&b, "- %q (%s)", name, c.Type)
		if s, ok := r.Stats[name]; ok {
			if s.Type == TypeNumeric {
				fmt.Fprintf(&b, " | min: %s, max: %s, avg: %s, sum: %s",
					formatFloat(s.Min, -1), formatFloat(s.Max, -1),
					formatFloat(s.Avg, 2), formatFloat(s.Sum, 2))
			} else {
				top := s.TopValues
				if len(top) > describeTopValues {
					top = top[:describeTopValues]
				}
				parts := make([]string, len(top))
				for j, v := range top {
					parts[j] = fmt.Sprintf("%s(%d)", v.Value, v.Count)
				}
				fmt.Fprintf(&b, " | %d unique values, top: %s", s.DistinctCount, strings.Join(parts, ", "))
			}
		}
		b.WriteString("\n")
	}

	if len(r.Sample) > 0 {
		sample := r.Sample
		if len(sample) > DefaultSampleRows {
			sample = sample[:DefaultSampleRows]
		}
		if raw, err := json.MarshalIndent(sample, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nSample rows:\n%s", raw)
		}
	}

	quoted := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		quoted[i] = strconv.Quote(c)
	}
	fmt.Fprintf(&b, "\n\nActual column names in SQLite: %s", strings.Join(quoted, ", "))
	return b.String()
}

func formatFloat(v *float64, prec int) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

// Descriptors rebuilds column descriptors from a Report for stores whose
// original metadata is not at hand. Names are the physical names, which
// sanitize to themselves; types collapse to numeric or text since dates are
// stored as TEXT.
func Descriptors(r Report) []schema.Column {
	out := make([]schema.Column, 0, len(r.Columns))
	for _, name := range r.Columns {
		c := schema.Column{Name: name, Type: schema.Text}
		if r.Stats[name].Type == TypeNumeric {
			c.Type = schema.Numeric
		}
		for _, row := range r.Sample {
			if v, ok := row[name]; ok && v != nil {
				c.Sample = fmt.Sprint(v)
				break
			}
		}
		out = append(out, c)
	}
	return out
}
