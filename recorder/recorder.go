// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package recorder implements the command recorder: a single
// command encoder that batches compute passes into one submit, tracks
// temporary buffers for destruction after the submission completes, and
// optionally profiles per-pass CPU timings.
//
// Built on gogpu/wgpu's encoder sequence (CreateCommandEncoder →
// BeginComputePass → SetPipeline/SetBindGroup → Dispatch → End → Finish →
// Queue.Submit). That binding's Queue.Submit already blocks until the GPU
// signals completion, so the usual onSubmittedWorkDone continuation
// collapses here into code that runs synchronously right after Submit
// returns rather than a separately scheduled callback — there is no
// asynchronous gap to bridge.
package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/bufpool"
	"github.com/gogpu/llmkernel/uniform"
	"github.com/gogpu/wgpu"
)

// Options configures a Recorder.
type Options struct {
	Profile bool
}

type trackedBuffer struct {
	buf     *wgpu.Buffer
	release func(*wgpu.Buffer)
}

// Timing is one closed pass's CPU-side duration, keyed by the label passed
// to BeginComputePass.
type Timing struct {
	Label string
	Ms    float64
}

// ProfileEntry aggregates Timing samples by label.
type ProfileEntry struct {
	Label   string
	Count   int
	TotalMs float64
	AvgMs   float64
}

// Recorder batches compute passes into one command buffer submission.
type Recorder struct {
	id       uuid.UUID
	device   *llmkernel.Device
	pool     *bufpool.Pool
	uniforms *uniform.Cache
	opts     Options

	mu        sync.Mutex
	encoder   *wgpu.CommandEncoder
	passOpen  bool
	tracked   []trackedBuffer
	submitted bool
	opCount   int
	timings   []Timing
	passStart map[string]time.Time
}

// New constructs a Recorder against device, using pool for temporary
// buffers and uniforms for uniform-buffer writes (both may be nil if the
// recorder will never call CreateTempBuffer/CreateUniformBuffer).
func New(device *llmkernel.Device, pool *bufpool.Pool, uniforms *uniform.Cache, opts Options) (*Recorder, error) {
	gpu := device.GetDevice()
	if gpu == nil {
		return nil, fmt.Errorf("recorder: device is not ready")
	}
	enc, err := gpu.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "llmkernel-recorder"})
	if err != nil {
		return nil, fmt.Errorf("recorder: create command encoder: %w", err)
	}
	return &Recorder{
		id:        uuid.New(),
		device:    device,
		pool:      pool,
		uniforms:  uniforms,
		opts:      opts,
		encoder:   enc,
		passStart: make(map[string]time.Time),
	}, nil
}

// ID returns the recorder's debug identifier.
func (r *Recorder) ID() uuid.UUID { return r.id }

// Device returns the owning device.
func (r *Recorder) Device() *llmkernel.Device { return r.device }

// OpCount returns the number of compute passes begun so far.
func (r *Recorder) OpCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opCount
}

// Pass wraps one open compute pass. Exactly one may be open on a Recorder
// at a time.
type Pass struct {
	rec   *Recorder
	core  *wgpu.ComputePassEncoder
	label string
	ended bool
}

// BeginComputePass opens a new compute pass, incrementing the op counter
// and, when profiling, starting the CPU-side timer for label. This
// binding exposes no GPU timestamp-query API (see package doc), so the
// usual two GPU timestamps become a single wall-clock
// start/end pair bracketing pass recording — sufficient for the
// kernel-launch-overhead bottleneck tag in package profiler, not for true
// in-flight GPU duration (use profiler.ProfileKernel for that).
func (r *Recorder) BeginComputePass(label string) (*Pass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitted {
		return nil, llmkernel.ErrAlreadySubmitted
	}
	if r.passOpen {
		return nil, llmkernel.ErrPassOpen
	}
	cp, err := r.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("recorder: begin compute pass %q: %w", label, err)
	}
	r.passOpen = true
	r.opCount++
	if r.opts.Profile {
		r.passStart[label] = now()
	}
	return &Pass{rec: r, core: cp, label: label}, nil
}

// SetPipeline sets the active compute pipeline for this pass.
func (p *Pass) SetPipeline(pipeline *wgpu.ComputePipeline) { p.core.SetPipeline(pipeline) }

// SetBindGroup binds group at index with no dynamic offsets.
func (p *Pass) SetBindGroup(index uint32, group *wgpu.BindGroup) {
	p.core.SetBindGroup(index, group, nil)
}

// Dispatch records a direct dispatch.
func (p *Pass) Dispatch(x, y, z uint32) { p.core.Dispatch(x, y, z) }

// DispatchIndirect records an indirect dispatch reading workgroup counts
// from buf at offset.
func (p *Pass) DispatchIndirect(buf *wgpu.Buffer, offset uint64) {
	p.core.DispatchIndirect(buf, offset)
}

// End closes the pass, recording its CPU-side duration when profiling.
func (p *Pass) End() error {
	if p.ended {
		return nil
	}
	p.ended = true
	if err := p.core.End(); err != nil {
		return fmt.Errorf("recorder: end compute pass %q: %w", p.label, err)
	}
	p.rec.mu.Lock()
	p.rec.passOpen = false
	if p.rec.opts.Profile {
		if start, ok := p.rec.passStart[p.label]; ok {
			p.rec.timings = append(p.rec.timings, Timing{Label: p.label, Ms: now().Sub(start).Seconds() * 1000})
		}
	}
	p.rec.mu.Unlock()
	return nil
}

// CreateTempBuffer acquires a scratch buffer from pool and tracks it for
// release back to the pool after this recorder's submit completes.
func (r *Recorder) CreateTempBuffer(size uint64, usage wgpu.BufferUsage, label string) (*wgpu.Buffer, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("recorder: no buffer pool configured")
	}
	buf, err := r.pool.Acquire(r.device.GetDevice(), size, usage, label)
	if err != nil {
		return nil, err
	}
	r.trackWithRelease(buf, r.pool.Release)
	return buf, nil
}

// CreateUniformBuffer writes bytes through the uniform cache. The
// returned buffer is borrowed, not owned by this recorder — the cache
// destroys it on its own eviction schedule (package uniform), flushed by this recorder's submit.
func (r *Recorder) CreateUniformBuffer(bytes []byte, label string) (*wgpu.Buffer, error) {
	if r.uniforms == nil {
		return nil, fmt.Errorf("recorder: no uniform cache configured")
	}
	return r.uniforms.GetOrCreate(r.device.GetDevice(), r.device.Queue(), bytes, label)
}

// CreateIndirectDispatchBuffer creates a tracked INDIRECT|STORAGE|COPY_DST
// buffer pre-initialized with the given workgroup counts, used by
// attention and gather for dynamic token counts.
func (r *Recorder) CreateIndirectDispatchBuffer(workgroups [3]uint32, label string) (*wgpu.Buffer, error) {
	buf, err := r.CreateTempBuffer(12, wgpu.BufferUsageIndirect|wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst, label)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 12)
	putU32(data[0:4], workgroups[0])
	putU32(data[4:8], workgroups[1])
	putU32(data[8:12], workgroups[2])
	if err := r.device.Queue().WriteBuffer(buf, 0, data); err != nil {
		return nil, fmt.Errorf("recorder: initialize indirect dispatch buffer: %w", err)
	}
	return buf, nil
}

// TrackTemporaryBuffer takes ownership of buf: it will be destroyed
// (Release'd directly, not returned to any pool) once this recorder's
// submit or abort runs.
func (r *Recorder) TrackTemporaryBuffer(buf *wgpu.Buffer) {
	r.trackWithRelease(buf, func(b *wgpu.Buffer) { b.Release() })
}

func (r *Recorder) trackWithRelease(buf *wgpu.Buffer, release func(*wgpu.Buffer)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = append(r.tracked, trackedBuffer{buf: buf, release: release})
}

// Submit finishes the command encoder and submits once. Temporary
// buffers are released and the uniform cache's pending eviction queue is
// flushed immediately after
// Submit returns, since this binding's Queue.Submit already blocks for
// completion (see package doc).
func (r *Recorder) Submit() error {
	r.mu.Lock()
	if r.submitted {
		r.mu.Unlock()
		return llmkernel.ErrAlreadySubmitted
	}
	if r.passOpen {
		r.mu.Unlock()
		return llmkernel.ErrPassOpen
	}
	r.submitted = true
	tracked := r.tracked
	r.tracked = nil
	r.mu.Unlock()

	cmdBuf, err := r.encoder.Finish()
	if err != nil {
		return fmt.Errorf("recorder: finish: %w", err)
	}
	if err := r.device.Queue().Submit(cmdBuf); err != nil {
		return fmt.Errorf("recorder: submit: %w", err)
	}

	for _, t := range tracked {
		t.release(t.buf)
	}
	if r.uniforms != nil {
		r.uniforms.Flush()
	}
	return nil
}

// SubmitAndWait is Submit; kept as a distinct entry point for hosts
// written against bindings where Submit does not already wait.
func (r *Recorder) SubmitAndWait() error { return r.Submit() }

// Abort destroys tracked temporaries immediately without submitting.
func (r *Recorder) Abort() error {
	r.mu.Lock()
	if r.submitted {
		r.mu.Unlock()
		return llmkernel.ErrAlreadySubmitted
	}
	r.submitted = true
	tracked := r.tracked
	r.tracked = nil
	r.mu.Unlock()

	for _, t := range tracked {
		t.release(t.buf)
	}
	return nil
}

// ResolveProfileTimings aggregates recorded pass durations by label,
// dropping samples outside [0, 60000] ms as bogus. Must be
// called after Submit.
func (r *Recorder) ResolveProfileTimings() []ProfileEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := make([]string, 0, len(r.timings))
	agg := make(map[string]*ProfileEntry)
	for _, t := range r.timings {
		if t.Ms < 0 || t.Ms > 60000 {
			continue
		}
		e, ok := agg[t.Label]
		if !ok {
			e = &ProfileEntry{Label: t.Label}
			agg[t.Label] = e
			order = append(order, t.Label)
		}
		e.Count++
		e.TotalMs += t.Ms
	}
	out := make([]ProfileEntry, 0, len(order))
	for _, label := range order {
		e := agg[label]
		e.AvgMs = e.TotalMs / float64(e.Count)
		out = append(out, *e)
	}
	return out
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

var now = time.Now
