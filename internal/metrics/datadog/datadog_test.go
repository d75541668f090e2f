package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tabular/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func newTestBackend(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b
}

func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapInitErr(t *testing.T) {
	if got := wrapInitErr(nil); got != nil {
		t.Fatalf("wrapInitErr(nil)=%v, want nil", got)
	}

	in := errors.New("boom")
	got := wrapInitErr(in)
	if !strings.Contains(got.Error(), "datadog metrics init:") {
		t.Fatalf("wrapInitErr prefix missing: %v", got)
	}
	if !errors.Is(got, in) {
		t.Fatalf("wrapInitErr did not wrap original error: got=%v", got)
	}
}

func TestStepStatusKeyRoundTrip(t *testing.T) {
	tests := []struct {
		step, status         string
		wantStep, wantStatus string
	}{
		{step: "query", status: "ok", wantStep: "query", wantStatus: "ok"},
		{step: "", status: "ok", wantStep: "unknown", wantStatus: "ok"},
		{step: "create_store", status: "", wantStep: "create_store", wantStatus: "unknown"},
	}
	for _, tc := range tests {
		step, status := splitStepStatusKey(stepStatusKey(tc.step, tc.status))
		if step != tc.wantStep || status != tc.wantStatus {
			t.Fatalf("round trip (%q,%q) -> (%q,%q)", tc.step, tc.status, step, status)
		}
	}
	if step, status := splitStepStatusKey("bare"); step != "bare" || status != "unknown" {
		t.Fatalf("splitStepStatusKey(bare)=(%q,%q)", step, status)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 1},
		{p: 0.5, want: 3},
		{p: 0.9, want: 5},
		{p: 1, want: 5},
	}
	for _, tc := range tests {
		if got := percentileNearestRank(s, tc.p); got != tc.want {
			t.Fatalf("p=%v got %v want %v", tc.p, got, tc.want)
		}
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty got %v", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	got := ParseTagsCSV(" env:prod, ,service:tabular,")
	want := []string{"env:prod", "service:tabular"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("ParseTagsCSV=%v, want %v", got, want)
	}
	if ParseTagsCSV("") != nil {
		t.Fatalf("ParseTagsCSV(\"\") should be nil")
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		Tags:      []string{"service:tabular"},
		submitter: fs,
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:tabular") || !contains(b.baseTags, "service:tabular") {
		t.Fatalf("baseTags=%v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "query", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"kind": "loaded"})
	b.IncCounter(metrics.QueriesTotal, 1, metrics.Labels{"status": "forbidden"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.5, metrics.Labels{"step": "query", "status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if len(b.stepCounts) != 0 || len(b.rowCounts) != 0 || len(b.queryCounts) != 0 || len(b.durationSamples) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	var names []string
	for _, s := range payload.Series {
		names = append(names, s.Metric)
	}
	sort.Strings(names)

	for _, w := range []string{
		"tabular.step.total",
		"tabular.rows.total",
		"tabular.queries.total",
		"tabular.step.duration_seconds.p50",
		"tabular.step.duration_seconds.samples",
	} {
		if !contains(names, w) {
			t.Fatalf("payload missing metric %q; got=%v", w, names)
		}
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

func TestFlush_PropagatesSubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("intake down")}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.QueriesTotal, 1, metrics.Labels{"status": "ok"})
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err=nil, want submit error")
	}
	if len(b.queryCounts) != 0 {
		t.Fatalf("buffers should reset even on submit failure")
	}
}

func TestIgnoresInvalidObservations(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{})
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.IncCounter(metrics.StepTotal, 0, metrics.Labels{"step": "query"})
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "query", "status": "ok"})
	b.ObserveHistogram("unknown_seconds", 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 0 {
		t.Fatalf("expected no submission, got %d", fs.count())
	}
}

func TestCloseFlushesBufferedData(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "create_store", "status": "ok"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("Close should flush once, got %d submissions", fs.count())
	}
}

func TestLoopFlushesOnTick(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		FlushEvery: time.Millisecond,
		submitter:  fs,
		newTicker:  func(time.Duration) *time.Ticker { return time.NewTicker(5 * time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.QueriesTotal, 1, metrics.Labels{"status": "ok"})

	deadline := time.Now().Add(2 * time.Second)
	for fs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fs.count() == 0 {
		t.Fatalf("loop did not flush within deadline")
	}
}
