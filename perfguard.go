// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package llmkernel

import (
	"sync/atomic"

	"github.com/gogpu/wgpu"
)

// PerfGuardConfig is the process-wide (here: per-Engine) perf-guard
// policy.
type PerfGuardConfig struct {
	AllowGPUReadback bool
	TrackSubmitCount bool
	TrackAllocations bool
	LogExpensiveOps  bool
	StrictMode       bool
}

// DefaultPerfGuardConfig mirrors the conservative defaults a host embedding
// this core in a browser-resident runtime would want: readback allowed
// (needed for argmax/sampling), everything tracked, nothing strict.
func DefaultPerfGuardConfig() PerfGuardConfig {
	return PerfGuardConfig{
		AllowGPUReadback: true,
		TrackSubmitCount: true,
		TrackAllocations: true,
		LogExpensiveOps:  false,
		StrictMode:       false,
	}
}

// PerfGuardCounters is a snapshot of the running counters.
type PerfGuardCounters struct {
	Submits     uint64
	Allocations uint64
	Readbacks   uint64
}

// PerfGuard is a policy gate and counter set for
// readbacks, allocations, and submissions. A Device holds one PerfGuard
// and its guarded queue consults it; the buffer pool and the uniform cache
// hold no PerfGuard.
type PerfGuard struct {
	cfg         PerfGuardConfig
	submits     atomic.Uint64
	allocations atomic.Uint64
	readbacks   atomic.Uint64
}

// NewPerfGuard constructs a PerfGuard with the given policy.
func NewPerfGuard(cfg PerfGuardConfig) *PerfGuard {
	return &PerfGuard{cfg: cfg}
}

// Config returns the guard's policy.
func (g *PerfGuard) Config() PerfGuardConfig { return g.cfg }

// SetStrictMode updates strict-mode at runtime (used when a kernel path's
// source tag engages strict validation).
func (g *PerfGuard) SetStrictMode(strict bool) { g.cfg.StrictMode = strict }

// Counters returns a snapshot of the running counters.
func (g *PerfGuard) Counters() PerfGuardCounters {
	return PerfGuardCounters{
		Submits:     g.submits.Load(),
		Allocations: g.allocations.Load(),
		Readbacks:   g.readbacks.Load(),
	}
}

// CountSubmit increments the submission counter when tracking is enabled.
// Called by the guarded queue wrapper on every Submit, which is the path
// the command recorder submits through.
func (g *PerfGuard) CountSubmit() {
	if g.cfg.TrackSubmitCount {
		g.submits.Add(1)
	}
}

// CountAllocation increments the allocation counter when tracking is
// enabled. Nothing in this module calls it: the buffer pool and the
// uniform cache do not count their buffer creations, so the allocation
// counter moves only when a host calls CountAllocation itself.
func (g *PerfGuard) CountAllocation() {
	if g.cfg.TrackAllocations {
		g.allocations.Add(1)
	}
}

// AllowReadback implements the gate every readback path (mapAsync-style
// buffer read, copy-then-map) must check before touching the GPU→CPU
// boundary. When readback is allowed it increments
// the readback counter and returns true. When disallowed it logs a warning
// if LogExpensiveOps is set; then in strict mode it returns (false,
// ErrReadbackDisallowed), and otherwise (false, nil), leaving the decision
// to the caller.
func (g *PerfGuard) AllowReadback(reason string) (bool, error) {
	if g.cfg.AllowGPUReadback {
		g.readbacks.Add(1)
		return true, nil
	}
	if g.cfg.LogExpensiveOps {
		Logger().Warn("llmkernel: readback denied", "reason", reason)
	}
	if g.cfg.StrictMode {
		return false, ErrReadbackDisallowed
	}
	return false, nil
}

// guardedQueue wraps a *wgpu.Queue so every Submit increments the owning
// PerfGuard's submit counter.
type guardedQueue struct {
	raw   *wgpu.Queue
	guard *PerfGuard
}

func newGuardedQueue(raw *wgpu.Queue, guard *PerfGuard) *guardedQueue {
	return &guardedQueue{raw: raw, guard: guard}
}

// Submit submits command buffers and counts the submission.
func (q *guardedQueue) Submit(buffers ...*wgpu.CommandBuffer) error {
	if q == nil || q.raw == nil {
		return nil
	}
	_, err := q.raw.Submit(buffers...)
	q.guard.CountSubmit()
	return err
}

// WriteBuffer forwards to the underlying queue.
func (q *guardedQueue) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error {
	return q.raw.WriteBuffer(buf, offset, data)
}

// ReadBuffer gates on the perf guard before forwarding to the underlying
// queue. Callers must check AllowReadback before any map-and-copy path;
// this method is that check.
func (q *guardedQueue) ReadBuffer(buf *wgpu.Buffer, offset uint64, data []byte, reason string) error {
	allowed, err := q.guard.AllowReadback(reason)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrReadbackDisallowed
	}
	return q.raw.ReadBuffer(buf, offset, data)
}

// Raw returns the underlying *wgpu.Queue for components that need direct
// access without the read-gate. Submits made through it are not counted.
func (q *guardedQueue) Raw() *wgpu.Queue { return q.raw }
