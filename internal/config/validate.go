package config

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// Severity classifies a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the dotted config key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// maxQueryRowLimit is the ceiling above which a warning is raised.
const maxQueryRowLimit = 10000

// SourceKinds are the import backends compiled into the binaries.
var SourceKinds = []string{"postgres", "sqlite", "sqlserver"}

// Validate checks cfg and returns every issue found in a fixed order.
// A config with no SeverityError issue is usable.
func Validate(cfg Config) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		add(SeverityError, "data_dir", "must not be empty")
	}

	switch {
	case cfg.Query.RowLimit <= 0:
		add(SeverityError, "query.row_limit", "must be > 0, got %d", cfg.Query.RowLimit)
	case cfg.Query.RowLimit > maxQueryRowLimit:
		add(SeverityWarning, "query.row_limit", "%d rows per query is above %d; large results are fully materialized", cfg.Query.RowLimit, maxQueryRowLimit)
	}

	if cfg.Inference.SampleRows <= 0 {
		add(SeverityError, "inference.sample_rows", "must be > 0, got %d", cfg.Inference.SampleRows)
	}
	if cfg.Profile.SampleRows <= 0 {
		add(SeverityError, "profile.sample_rows", "must be > 0, got %d", cfg.Profile.SampleRows)
	}
	if cfg.Profile.TopValues <= 0 {
		add(SeverityError, "profile.top_values", "must be > 0, got %d", cfg.Profile.TopValues)
	}

	switch d := cfg.Ingest.Delimiter; {
	case d == "", d == "tab", d == `\t`:
	case utf8.RuneCountInString(d) != 1:
		add(SeverityError, "ingest.delimiter", "must be a single character or \"tab\", got %q", d)
	case d == `"` || d == "\n" || d == "\r":
		add(SeverityError, "ingest.delimiter", "%q cannot be used as a delimiter", d)
	}
	if enc := strings.TrimSpace(cfg.Ingest.Encoding); enc != "" {
		if _, err := htmlindex.Get(enc); err != nil {
			add(SeverityError, "ingest.encoding", "unknown encoding %q", enc)
		}
	}

	if cfg.Import.RowLimit <= 0 {
		add(SeverityError, "import.row_limit", "must be > 0, got %d", cfg.Import.RowLimit)
	}

	switch cfg.Metrics.Backend {
	case "", "none":
	case "datadog":
		if cfg.Metrics.FlushEvery <= 0 {
			add(SeverityError, "metrics.flush_every", "must be > 0 for the datadog backend")
		}
		if strings.TrimSpace(cfg.Metrics.Job) == "" {
			add(SeverityWarning, "metrics.job", "empty; the datadog backend will tag job:tabular")
		}
	case "pushgateway":
		if strings.TrimSpace(cfg.Metrics.PushgatewayURL) == "" {
			add(SeverityError, "metrics.pushgateway_url", "must be set for the pushgateway backend")
		}
	default:
		add(SeverityWarning, "metrics.backend", "unknown backend %q; metrics will be disabled", cfg.Metrics.Backend)
	}

	names := make([]string, 0, len(cfg.Sources))
	for n := range cfg.Sources {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		s := cfg.Sources[n]
		path := "sources." + n
		switch {
		case s.Kind == "":
			add(SeverityError, path+".kind", "must not be empty")
		case !knownKind(s.Kind):
			add(SeverityError, path+".kind", "unsupported kind %q (supported: %s)", s.Kind, strings.Join(SourceKinds, ", "))
		}
		if strings.TrimSpace(s.DSN) == "" {
			add(SeverityError, path+".dsn", "must not be empty")
		}
	}

	return out
}

// HasErrors reports whether any issue is a SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func knownKind(k string) bool {
	for _, s := range SourceKinds {
		if s == k {
			return true
		}
	}
	return false
}
