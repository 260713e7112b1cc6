// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package bufpool implements the bucketed GPU buffer allocator with
// deferred destruction. Every buffer handed out by a Pool is in exactly one of
// {active, pooled, pending-destruction}; callers must never call
// (*wgpu.Buffer).Release directly on an acquired buffer — release it back
// to the pool instead.
package bufpool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/wgpu"
)

// Config tunes bucketing and pooling caps.
type Config struct {
	// AlignmentBytes is the raw alignment every requested size is rounded
	// up to; the raw aligned size is used instead of the bucket when the
	// bucket would exceed device limits. Default 256.
	AlignmentBytes uint64
	// LargeThreshold is the size above which bucketing switches from
	// power-of-two growth to CoarseStep increments. Default 32 MiB.
	LargeThreshold uint64
	// CoarseStep is the bucket granularity above LargeThreshold. Default
	// 16 MiB.
	CoarseStep uint64
	// MaxPerBucket caps how many idle buffers one bucket may hold.
	// Default 8.
	MaxPerBucket int
	// MaxPooledTotal caps the total number of idle buffers across every
	// bucket. Default 64.
	MaxPooledTotal int
	// PoolingEnabled turns pooling off entirely when false: every release
	// goes straight to deferred-destroy.
	PoolingEnabled bool
	// LeakThreshold is how long an active buffer may go un-released
	// before LeakCheck reports it. Default 60s. Zero disables tracking.
	LeakThreshold time.Duration
}

// DefaultConfig returns the default bucketing and pooling caps.
func DefaultConfig() Config {
	return Config{
		AlignmentBytes: 256,
		LargeThreshold: 32 << 20,
		CoarseStep:     16 << 20,
		MaxPerBucket:   8,
		MaxPooledTotal: 64,
		PoolingEnabled: true,
		LeakThreshold:  60 * time.Second,
	}
}

// Limits is the subset of device limits bucketing must respect.
type Limits struct {
	MaxBufferSize               uint64
	MaxStorageBufferBindingSize uint64
}

// entry is one pool-managed buffer.
type entry struct {
	buf        *wgpu.Buffer
	bucketSize uint64
	usage      wgpu.BufferUsage
	acquiredAt time.Time
}

// Pool is the bucketed allocator. The zero value is not usable; construct
// with New.
type Pool struct {
	cfg    Config
	limits Limits
	submit func(func()) // schedules fn after queue.onSubmittedWorkDone, see SetCompletionScheduler

	mu      sync.Mutex
	free    map[bucketKey][]*entry
	active  map[*wgpu.Buffer]*entry
	pending []*entry
	pendingScheduled bool
}

type bucketKey struct {
	size  uint64
	usage wgpu.BufferUsage
}

// New constructs a Pool bounded by limits. Call SetCompletionScheduler
// before the first Release if deferred destruction should actually wait
// for queue completion; without one, deferred destruction runs
// synchronously (suitable for tests and fakegpu).
func New(cfg Config, limits Limits) *Pool {
	return &Pool{
		cfg:    cfg,
		limits: limits,
		submit: func(fn func()) { fn() },
		free:   make(map[bucketKey][]*entry),
		active: make(map[*wgpu.Buffer]*entry),
	}
}

// SetCompletionScheduler installs the callback used to defer buffer
// destruction until the queue has finished executing everything submitted
// so far. fn must eventually invoke the callback it is given.
func (p *Pool) SetCompletionScheduler(fn func(onDone func())) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submit = fn
}

// bucketSize computes the bucketed allocation size for a requested size:
// powers-of-two up to LargeThreshold, then CoarseStep
// increments; falls back to the raw AlignmentBytes-aligned size when the
// bucket would exceed maxSize, and fails when even the aligned size
// exceeds maxSize.
func (p *Pool) bucketSize(size uint64, maxSize uint64) (uint64, error) {
	aligned := alignUp(size, p.cfg.AlignmentBytes)
	if aligned > maxSize {
		return 0, fmt.Errorf("bufpool: requested size %d exceeds device limit %d", size, maxSize)
	}

	var bucket uint64
	if aligned <= p.cfg.LargeThreshold {
		bucket = nextPowerOfTwo(aligned)
	} else {
		bucket = alignUp(aligned, p.cfg.CoarseStep)
	}
	if bucket > maxSize {
		// Clamp to raw alignment; still must fit, else propagate the
		// original over-limit error.
		if aligned > maxSize {
			return 0, fmt.Errorf("bufpool: bucketed size %d exceeds device limit %d", bucket, maxSize)
		}
		return aligned, nil
	}
	return bucket, nil
}

func alignUp(size, alignment uint64) uint64 {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) / alignment * alignment
}

func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

func (p *Pool) maxSizeFor(usage wgpu.BufferUsage) uint64 {
	max := p.limits.MaxBufferSize
	if usage&wgpu.BufferUsageStorage != 0 && p.limits.MaxStorageBufferBindingSize > 0 && p.limits.MaxStorageBufferBindingSize < max {
		max = p.limits.MaxStorageBufferBindingSize
	}
	return max
}

// Creator is the narrow device surface the pool needs to mint a new
// buffer on a bucket miss.
type Creator interface {
	CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error)
}

// Acquire returns a buffer of at least size, bucketed and reused from the
// free list when possible.
func (p *Pool) Acquire(device Creator, size uint64, usage wgpu.BufferUsage, label string) (*wgpu.Buffer, error) {
	bucket, err := p.bucketSize(size, p.maxSizeFor(usage))
	if err != nil {
		return nil, err
	}
	key := bucketKey{size: bucket, usage: usage}

	p.mu.Lock()
	if list := p.free[key]; len(list) > 0 {
		e := list[len(list)-1]
		p.free[key] = list[:len(list)-1]
		e.acquiredAt = now()
		p.active[e.buf] = e
		p.mu.Unlock()
		return e.buf, nil
	}
	p.mu.Unlock()

	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: label, Size: bucket, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("bufpool: create buffer: %w", err)
	}
	e := &entry{buf: buf, bucketSize: bucket, usage: usage, acquiredAt: now()}
	p.mu.Lock()
	p.active[buf] = e
	p.mu.Unlock()
	return buf, nil
}

// CreateStagingBuffer acquires a CopyDst|MapRead buffer for GPU→CPU
// readback staging.
func (p *Pool) CreateStagingBuffer(device Creator, size uint64, label string) (*wgpu.Buffer, error) {
	return p.Acquire(device, size, wgpu.BufferUsageCopyDst|wgpu.BufferUsageMapRead, label)
}

// CreateUploadBuffer acquires a CopyDst|Storage buffer intended for CPU→GPU
// uploads into a kernel's operand set.
func (p *Pool) CreateUploadBuffer(device Creator, size uint64, label string) (*wgpu.Buffer, error) {
	return p.Acquire(device, size, wgpu.BufferUsageCopyDst|wgpu.BufferUsageStorage, label)
}

// CreateUniformBuffer acquires a CopyDst|Uniform buffer, used by package
// uniform when its cache misses.
func (p *Pool) CreateUniformBuffer(device Creator, size uint64, label string) (*wgpu.Buffer, error) {
	return p.Acquire(device, size, wgpu.BufferUsageCopyDst|wgpu.BufferUsageUniform, label)
}

// Release returns buf to the pool: if pooling is enabled and both the
// per-bucket and global caps allow, it is pushed back onto the free list;
// else it is deferred-destroyed.
func (p *Pool) Release(buf *wgpu.Buffer) {
	p.mu.Lock()
	e, ok := p.active[buf]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.active, buf)

	if p.cfg.PoolingEnabled {
		key := bucketKey{size: e.bucketSize, usage: e.usage}
		totalPooled := p.totalPooledLocked()
		if len(p.free[key]) < p.cfg.MaxPerBucket && totalPooled < p.cfg.MaxPooledTotal {
			p.free[key] = append(p.free[key], e)
			p.mu.Unlock()
			return
		}
	}
	p.deferDestroyLocked(e)
	p.mu.Unlock()
}

func (p *Pool) totalPooledLocked() int {
	total := 0
	for _, list := range p.free {
		total += len(list)
	}
	return total
}

// deferDestroyLocked queues e for destruction and, if this is the first
// pending entry, schedules the one-shot completion continuation. Caller
// must hold p.mu.
func (p *Pool) deferDestroyLocked(e *entry) {
	p.pending = append(p.pending, e)
	if p.pendingScheduled {
		return
	}
	p.pendingScheduled = true
	submit := p.submit
	submit(func() {
		p.mu.Lock()
		toDestroy := p.pending
		p.pending = nil
		p.pendingScheduled = false
		p.mu.Unlock()
		llmkernel.Logger().Debug("bufpool: destroying deferred buffers", "count", len(toDestroy))
		for _, e := range toDestroy {
			e.buf.Release()
		}
	})
}

// LeakCheck returns active buffers acquired more than LeakThreshold ago.
// A zero LeakThreshold disables this and LeakCheck always returns nil.
func (p *Pool) LeakCheck() []LeakedBuffer {
	if p.cfg.LeakThreshold <= 0 {
		return nil
	}
	cutoff := now().Add(-p.cfg.LeakThreshold)
	p.mu.Lock()
	defer p.mu.Unlock()

	var leaked []LeakedBuffer
	for buf, e := range p.active {
		if e.acquiredAt.Before(cutoff) {
			leaked = append(leaked, LeakedBuffer{Buffer: buf, Size: e.bucketSize, AcquiredAt: e.acquiredAt})
		}
	}
	sort.Slice(leaked, func(i, j int) bool { return leaked[i].AcquiredAt.Before(leaked[j].AcquiredAt) })
	return leaked
}

// LeakedBuffer describes one buffer LeakCheck flagged as outstanding too
// long.
type LeakedBuffer struct {
	Buffer     *wgpu.Buffer
	Size       uint64
	AcquiredAt time.Time
}

// now is overridden in tests to avoid relying on wall-clock time.
var now = time.Now
