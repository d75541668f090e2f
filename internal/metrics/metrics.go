// Package metrics is a tiny, backend-agnostic metrics facade.
//
// Core packages only call the helpers in this file. A concrete backend
// (see metrics/datadog) is installed once at process start with SetBackend;
// until then every call goes to a no-op backend, so tests and library use
// need no setup.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions (e.g. {"step": "query", "status": "ok"}).
type Labels map[string]string

// Backend receives raw metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations.
type Flusher interface {
	Flush() error
}

// Metric names emitted by this module.
const (
	StepTotal           = "tabular_step_total"
	StepDurationSeconds = "tabular_step_duration_seconds"
	RowsTotal           = "tabular_rows_total"
	QueriesTotal        = "tabular_queries_total"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend when it buffers; otherwise it is a no-op.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// RecordStep records one execution of a named step: a counter plus its
// duration, both labelled with status ("ok" or an error class).
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRows counts rows by kind (e.g. "loaded", "skipped", "returned").
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}

// RecordQuery counts one sandbox query by outcome.
func RecordQuery(status string) {
	IncCounter(QueriesTotal, 1, Labels{"status": status})
}
