// Package observability exposes in-process metrics in the Prometheus text
// exposition format.
package observability

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// MetricsRegistry collects counters, gauges and histograms. Every metric
// carries the registry's constant labels.
type MetricsRegistry struct {
	mu         sync.RWMutex
	labels     map[string]string
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// NewMetricsRegistry creates a registry. labels are attached to every
// exported sample.
func NewMetricsRegistry(labels map[string]string) *MetricsRegistry {
	return &MetricsRegistry{
		labels:     labels,
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

type Counter struct {
	name  string
	desc  string
	value atomic.Int64
}

type Gauge struct {
	name  string
	desc  string
	value atomic.Int64
}

// Histogram tracks a distribution over fixed upper bounds.
type Histogram struct {
	mu      sync.Mutex
	name    string
	desc    string
	buckets []float64
	counts  []int64
	sum     float64
	count   int64
}

// GetCounter returns the named counter, creating it on first use.
func (r *MetricsRegistry) GetCounter(name, description string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, desc: description}
	r.counters[name] = c
	return c
}

func (r *MetricsRegistry) GetGauge(name, description string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, desc: description}
	r.gauges[name] = g
	return g
}

// GetHistogram returns the named histogram. buckets only apply on creation.
func (r *MetricsRegistry) GetHistogram(name, description string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	h := &Histogram{name: name, desc: description, buckets: b, counts: make([]int64, len(b)+1)}
	r.histograms[name] = h
	return h
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	i := sort.SearchFloat64s(h.buckets, v)
	h.counts[i]++
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the total of all observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// WriteTo writes every metric, sorted by name, in exposition format.
func (r *MetricsRegistry) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cw := &countingWriter{w: w}
	base := r.labelString(nil)

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		writeHeader(cw, name, c.desc, "counter")
		fmt.Fprintf(cw, "%s%s %d\n", name, base, c.Value())
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		writeHeader(cw, name, g.desc, "gauge")
		fmt.Fprintf(cw, "%s%s %d\n", name, base, g.Value())
	}
	for _, name := range sortedKeys(r.histograms) {
		h := r.histograms[name]
		writeHeader(cw, name, h.desc, "histogram")
		h.mu.Lock()
		var cumulative int64
		for i, b := range h.buckets {
			cumulative += h.counts[i]
			fmt.Fprintf(cw, "%s_bucket%s %d\n", name, r.labelString(map[string]string{"le": formatBound(b)}), cumulative)
		}
		cumulative += h.counts[len(h.buckets)]
		fmt.Fprintf(cw, "%s_bucket%s %d\n", name, r.labelString(map[string]string{"le": "+Inf"}), cumulative)
		fmt.Fprintf(cw, "%s_sum%s %g\n", name, base, h.sum)
		fmt.Fprintf(cw, "%s_count%s %d\n", name, base, h.count)
		h.mu.Unlock()
	}
	return cw.n, cw.err
}

// MetricsHandler serves the registry for Prometheus scraping.
func MetricsHandler(registry *MetricsRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = registry.WriteTo(w)
	}
}

func (r *MetricsRegistry) labelString(extra map[string]string) string {
	if len(r.labels) == 0 && len(extra) == 0 {
		return ""
	}
	all := make(map[string]string, len(r.labels)+len(extra))
	for k, v := range r.labels {
		all[k] = v
	}
	for k, v := range extra {
		all[k] = v
	}
	parts := make([]string, 0, len(all))
	for _, k := range sortedKeys(all) {
		parts = append(parts, fmt.Sprintf("%s=%q", k, all[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func writeHeader(w io.Writer, name, desc, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, desc)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
}

func formatBound(b float64) string {
	if math.IsInf(b, 1) {
		return "+Inf"
	}
	return fmt.Sprintf("%g", b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
