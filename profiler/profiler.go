// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package profiler implements the perf profiler: host-side named
// intervals tagged with a category, aggregated by name into a ranked
// report with heuristic bottleneck tags.
//
// This binding's recorder (package recorder) reduces the usual
// two-GPU-timestamps-per-pass query design down to a CPU wall-clock
// start/end pair, since gogpu/wgpu's Queue.Submit blocks
// for completion rather than exposing a separate timestamp-query
// resolve path (see recorder's package doc). ProfileKernel wraps a
// dispatch and awaits queue completion to get a true kernel latency on
// devices without timestamp queries — on this binding, every device is in
// that situation, so it is the only kernel-timing path, not a fallback.
package profiler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Category classifies a profiled interval.
type Category int

const (
	CategoryKernel Category = iota
	CategoryMemory
	CategorySync
	CategoryOther
)

func (c Category) String() string {
	switch c {
	case CategoryKernel:
		return "kernel"
	case CategoryMemory:
		return "memory"
	case CategorySync:
		return "sync"
	default:
		return "other"
	}
}

// Entry is one closed profiling interval.
type Entry struct {
	Name        string
	Category    Category
	StartMonoMs float64
	EndMonoMs   float64
	Metadata    map[string]any
}

// DurationMs returns the interval's wall-clock duration in milliseconds.
func (e Entry) DurationMs() float64 { return e.EndMonoMs - e.StartMonoMs }

// Profiler accumulates Entry samples for later aggregation into a
// Report. The zero value is ready to use.
type Profiler struct {
	mu      sync.Mutex
	epoch   time.Time
	entries []Entry
}

// New constructs a Profiler with its monotonic epoch set to now.
func New() *Profiler {
	return &Profiler{epoch: now()}
}

func (p *Profiler) monoMs() float64 {
	return now().Sub(p.epoch).Seconds() * 1000
}

// Record appends a pre-built Entry, for callers that already have
// start/end timestamps; ProfileSync, ProfileAsync and ProfileKernel record
// through it.
func (p *Profiler) Record(e Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
}

// ProfileSync wraps fn with a named, categorized interval.
func (p *Profiler) ProfileSync(name string, category Category, fn func()) {
	start := p.monoMs()
	fn()
	p.Record(Entry{Name: name, Category: category, StartMonoMs: start, EndMonoMs: p.monoMs()})
}

// ProfileAsync wraps fn, a function accepting a context, with a named
// interval. Context cancellation still closes the interval so a timed-out
// call is not silently dropped from the report.
func (p *Profiler) ProfileAsync(ctx context.Context, name string, category Category, fn func(context.Context) error) error {
	start := p.monoMs()
	err := fn(ctx)
	p.Record(Entry{Name: name, Category: category, StartMonoMs: start, EndMonoMs: p.monoMs()})
	return err
}

// ProfileKernel wraps a dispatch-and-submit call with CategoryKernel
// timing. dispatch must itself block until the GPU has finished the work
// being timed (this binding's Queue.Submit already does, see package
// doc) for the resulting duration to reflect true kernel latency rather
// than just CPU-side recording time.
func (p *Profiler) ProfileKernel(name string, dispatch func() error) error {
	start := p.monoMs()
	err := dispatch()
	p.Record(Entry{Name: name, Category: CategoryKernel, StartMonoMs: start, EndMonoMs: p.monoMs()})
	return err
}

// Entries returns a copy of every recorded sample, in recording order.
func (p *Profiler) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Reset discards every recorded sample and restarts the monotonic epoch.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
	p.epoch = now()
}

// AggregateEntry is one name's rolled-up timing across every sample.
type AggregateEntry struct {
	Name     string
	Category Category
	Count    int
	TotalMs  float64
	AvgMs    float64
	MaxMs    float64
	SharePct float64
}

// Report is the aggregated view of every sample recorded so far, ranked
// by total time descending, with heuristic bottleneck tags attached.
type Report struct {
	Entries     []AggregateEntry
	TotalMs     float64
	Bottlenecks []string
}

// String renders a human-readable report, used by
// `cmd/llmkernel-bench report`.
func (r Report) String() string {
	out := fmt.Sprintf("total: %.3fms across %d distinct operations\n", r.TotalMs, len(r.Entries))
	for _, e := range r.Entries {
		out += fmt.Sprintf("  %-28s %-8s count=%-5d total=%9.3fms avg=%7.3fms share=%5.1f%%\n",
			e.Name, e.Category, e.Count, e.TotalMs, e.AvgMs, e.SharePct)
	}
	for _, b := range r.Bottlenecks {
		out += "  ! " + b + "\n"
	}
	return out
}

// BuildReport aggregates the profiler's recorded entries by name.
func (p *Profiler) BuildReport() Report {
	return BuildReport(p.Entries())
}

// BuildReport aggregates a caller-supplied entry set by name, independent
// of any particular Profiler instance — used to combine entries gathered
// from several recorders/engines into one report.
func BuildReport(entries []Entry) Report {
	agg := make(map[string]*AggregateEntry)
	var order []string
	var total float64
	for _, e := range entries {
		a, ok := agg[e.Name]
		if !ok {
			a = &AggregateEntry{Name: e.Name, Category: e.Category}
			agg[e.Name] = a
			order = append(order, e.Name)
		}
		d := e.DurationMs()
		a.Count++
		a.TotalMs += d
		if d > a.MaxMs {
			a.MaxMs = d
		}
		total += d
	}

	out := make([]AggregateEntry, 0, len(order))
	for _, name := range order {
		a := *agg[name]
		a.AvgMs = a.TotalMs / float64(a.Count)
		if total > 0 {
			a.SharePct = a.TotalMs / total * 100
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalMs > out[j].TotalMs })

	return Report{Entries: out, TotalMs: total, Bottlenecks: detectBottlenecks(out, entries)}
}

// detectBottlenecks applies the heuristic tags: "excessive GPU
// syncs", "memory-bandwidth bound", "kernel-launch overhead", or "op X
// dominates (>=30%)".
func detectBottlenecks(agg []AggregateEntry, raw []Entry) []string {
	var tags []string

	syncCount, memCount, kernelCount := 0, 0, 0
	var kernelTotal, kernelCountF float64
	for _, e := range raw {
		switch e.Category {
		case CategorySync:
			syncCount++
		case CategoryMemory:
			memCount++
		case CategoryKernel:
			kernelCount++
			kernelTotal += e.DurationMs()
			kernelCountF++
		}
	}
	if syncCount > 0 && float64(syncCount) > float64(len(raw))*0.2 {
		tags = append(tags, "excessive GPU syncs")
	}
	if memCount > 0 && float64(memCount) > float64(len(raw))*0.3 {
		tags = append(tags, "memory-bandwidth bound")
	}
	if kernelCountF > 0 && kernelTotal/kernelCountF < 0.05 {
		tags = append(tags, "kernel-launch overhead")
	}
	for _, a := range agg {
		if a.SharePct >= 30 {
			tags = append(tags, fmt.Sprintf("op %s dominates (%.0f%%)", a.Name, a.SharePct))
		}
	}
	return tags
}

var now = time.Now
