// Package metrics keeps in-process timings and counters for ct.
//
// Timings cover status evaluation, subtree toggles, search, tree loading,
// rendering, exports and export hooks. Counters track how much work those
// operations did. Everything is atomic and global; set CT_METRICS=0 to turn
// collection off.
//
//	func (m *Model) ApplyQuery(q string) IDSet {
//	    defer metrics.Timer(metrics.Search)()
//	    ...
//	}
package metrics

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("CT_METRICS") != "0")
}

// Enabled reports whether collection is on.
func Enabled() bool { return enabled.Load() }

// SetEnabled turns collection on or off.
func SetEnabled(e bool) { enabled.Store(e) }

// TimingMetric aggregates durations of one operation.
type TimingMetric struct {
	name  string
	count atomic.Int64
	total atomic.Int64 // ns
	max   atomic.Int64 // ns
	min   atomic.Int64 // ns, 0 until the first sample
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one sample. Non-positive durations count as 1ns so that min
// stays meaningful.
func (m *TimingMetric) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := max(d.Nanoseconds(), 1)
	m.count.Add(1)
	m.total.Add(ns)
	for old := m.max.Load(); ns > old; old = m.max.Load() {
		if m.max.CompareAndSwap(old, ns) {
			break
		}
	}
	for old := m.min.Load(); old == 0 || ns < old; old = m.min.Load() {
		if m.min.CompareAndSwap(old, ns) {
			break
		}
	}
}

func (m *TimingMetric) Name() string { return m.name }

func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats returns a snapshot in milliseconds.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.total.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: ms(total),
		AvgMs:   ms(avg),
		MaxMs:   ms(m.max.Load()),
		MinMs:   ms(m.min.Load()),
	}
}

func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.total.Store(0)
	m.max.Store(0)
	m.min.Store(0)
}

func ms(ns int64) float64 { return float64(ns) / 1e6 }

// TimingStats is a snapshot of one TimingMetric.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer starts timing m and returns the function that stops it.
//
//	defer metrics.Timer(metrics.Toggle)()
func Timer(m *TimingMetric) func() {
	if !Enabled() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

// Counter is a monotonically increasing total.
type Counter struct {
	name string
	n    atomic.Int64
}

func newCounter(name string) *Counter {
	return &Counter{name: name}
}

// Add increases the counter by delta when collection is on.
func (c *Counter) Add(delta int64) {
	if Enabled() {
		c.n.Add(delta)
	}
}

func (c *Counter) Name() string { return c.name }

func (c *Counter) Value() int64 { return c.n.Load() }

func (c *Counter) Reset() { c.n.Store(0) }

var (
	Evaluate = newTimingMetric("evaluate")
	Toggle   = newTimingMetric("toggle")
	Search   = newTimingMetric("search")
	Load     = newTimingMetric("load")
	Render   = newTimingMetric("render")
	Export   = newTimingMetric("export")
	Hook     = newTimingMetric("hook")
)

var (
	// NodesWritten counts set memberships written by toggles.
	NodesWritten = newCounter("nodes_written")
	// QueryMatches counts nodes matched across all queries.
	QueryMatches = newCounter("query_matches")
	// Reloads counts trees re-read after a file change.
	Reloads = newCounter("reloads")
)

func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{Evaluate, Toggle, Search, Load, Render, Export, Hook}
}

func AllCounters() []*Counter {
	return []*Counter{NodesWritten, QueryMatches, Reloads}
}

// ResetAll zeroes every timing metric and counter.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
	for _, c := range AllCounters() {
		c.Reset()
	}
}

// AllTimingStats returns stats for the timing metrics that have samples.
func AllTimingStats() []TimingStats {
	all := AllTimingMetrics()
	stats := make([]TimingStats, 0, len(all))
	for _, m := range all {
		if m.Count() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	return stats
}

// Summary renders used timings and non-zero counters, one per line.
func Summary() string {
	var sb strings.Builder
	for _, s := range AllTimingStats() {
		fmt.Fprintf(&sb, "%-14s n=%-6d avg=%.3fms max=%.3fms total=%.3fms\n",
			s.Name, s.Count, s.AvgMs, s.MaxMs, s.TotalMs)
	}
	for _, c := range AllCounters() {
		if v := c.Value(); v > 0 {
			fmt.Fprintf(&sb, "%-14s %d\n", c.Name(), v)
		}
	}
	return sb.String()
}
