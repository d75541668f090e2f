// Package prompush is a metrics.Backend that keeps Prometheus collectors in
// a private registry and pushes them to a Pushgateway on Flush.
//
// Short-lived CLI runs cannot be scraped, so each binary pushes once at
// exit (Close). The grouping key is job=<JobName>.
package prompush

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"tabular/internal/metrics"
)

// Backend implements metrics.Backend and metrics.Flusher.
type Backend struct {
	registry *prometheus.Registry
	pusher   pusher

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// pusher is the subset of *push.Pusher used here; tests substitute it.
type pusher interface {
	Push() error
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)

// NewBackend returns a backend pushing to gatewayURL under job.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(job) == "" {
		job = "tabular"
	}
	u, err := url.Parse(gatewayURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("prompush: invalid gateway url %q", gatewayURL)
	}

	reg := prometheus.NewRegistry()
	return newBackend(reg, push.New(gatewayURL, job).Gatherer(reg)), nil
}

func newBackend(reg *prometheus.Registry, p pusher) *Backend {
	return &Backend{
		registry:   reg,
		pusher:     p,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
}

// IncCounter adds delta to a counter. The label names of a metric are fixed
// by its first observation; later observations with a different label set
// are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta < 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	vec, ok := b.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, labelNames(labels))
		if err := b.registry.Register(vec); err != nil {
			return
		}
		b.counters[name] = vec
	}
	c, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	c.Add(delta)
}

// ObserveHistogram records value in a histogram with the default buckets.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vec, ok := b.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}, labelNames(labels))
		if err := b.registry.Register(vec); err != nil {
			return
		}
		b.histograms[name] = vec
	}
	h, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	h.Observe(value)
}

// Flush pushes every collector, replacing the job's previous group.
func (b *Backend) Flush() error {
	b.mu.Lock()
	empty := len(b.counters) == 0 && len(b.histograms) == 0
	b.mu.Unlock()
	if empty {
		return nil
	}
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: %w", err)
	}
	return nil
}

// Close pushes a final time.
func (b *Backend) Close() error { return b.Flush() }

func labelNames(l metrics.Labels) []string {
	out := make([]string, 0, len(l))
	for k := range l {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
