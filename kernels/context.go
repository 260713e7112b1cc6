// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package kernels implements the launcher layer: one RunX /
// RecordX pair per logical operation, each validating its inputs,
// selecting a variant (package selector), resolving a pipeline (package
// pipecache), writing a uniform struct (this package's uniforms.go,
// through package uniform), and dispatching a single compute pass.
//
// RunX performs an immediate dispatch: it opens a throwaway
// *recorder.Recorder, records into it, and submits. RecordX records into
// a caller-supplied recorder without submitting, so a host can batch many
// operations into one command-buffer submission.
//
// The bind-group-layout/bind-group/pipeline construction sequence follows
// gogpu/wgpu's compute examples.
package kernels

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/bufpool"
	"github.com/gogpu/llmkernel/pipecache"
	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/llmkernel/uniform"
	"github.com/gogpu/wgpu"
)

// MaxWorkgroups is the per-dimension dispatch limit; logically 1-D
// dispatches above it wrap to 2-D.
const MaxWorkgroups uint32 = 65535

// Deps bundles the components every launcher needs. A host normally
// builds one Deps from a runtime.Engine and passes it to every RunX/RecordX
// call.
type Deps struct {
	Device    *llmkernel.Device
	Registry  *registry.Registry
	Pipelines *pipecache.Cache
	Pool      *bufpool.Pool
	Uniforms  *uniform.Cache
}

// newRecorder opens an immediate-mode recorder against deps, used by every
// RunX to implement "dispatch now" in terms of "record, then submit".
func (d *Deps) newRecorder() (*recorder.Recorder, error) {
	return recorder.New(d.Device, d.Pool, d.Uniforms, recorder.Options{})
}

// runImmediate records build against a fresh recorder and submits it,
// returning the Tensor build produced. This is the shared shape of every
// RunX function in this package.
func runImmediate(deps *Deps, build func(rec *recorder.Recorder) (tensor.Tensor, error)) (tensor.Tensor, error) {
	rec, err := deps.newRecorder()
	if err != nil {
		return tensor.Tensor{}, err
	}
	out, err := build(rec)
	if err != nil {
		_ = rec.Abort()
		return tensor.Tensor{}, err
	}
	if err := rec.Submit(); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}

// validateDims checks that every named dimension is finite and positive.
func validateDims(operation string, dims map[string]int64) error {
	for name, v := range dims {
		if v <= 0 {
			return &llmkernel.InvalidDimensionsError{Operation: operation, Field: name, Value: float64(v)}
		}
	}
	return nil
}

// validateOffset checks offset is non-negative, finite, and 256-byte
// aligned.
func validateOffset(operation string, offset int64) error {
	const alignment = 256
	if offset < 0 || math.IsNaN(float64(offset)) {
		return &llmkernel.InvalidOffsetError{Operation: operation, Offset: offset, Alignment: alignment}
	}
	if uint64(offset)%alignment != 0 {
		return &llmkernel.InvalidOffsetError{Operation: operation, Offset: offset, Alignment: alignment}
	}
	return nil
}

func ceilDivU32(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func ceilDivI64(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// wrapDispatch1D wraps a logically one-dimensional dispatch of total
// workgroups to 2-D when it exceeds MaxWorkgroups.
func wrapDispatch1D(total uint32) (x, y uint32) {
	if total <= MaxWorkgroups {
		return total, 1
	}
	return MaxWorkgroups, ceilDivU32(total, MaxWorkgroups)
}

// checkDispatchLimit returns an ExceedsDispatchLimitError when any
// dimension of wg still exceeds MaxWorkgroups after wrapping.
func checkDispatchLimit(operation string, wg [3]uint32, suggestion string) error {
	for _, v := range wg {
		if v > MaxWorkgroups {
			return &llmkernel.ExceedsDispatchLimitError{Operation: operation, Requested: wg, Limit: MaxWorkgroups, Suggestion: suggestion}
		}
	}
	return nil
}

// isZeroDispatch reports whether wg has a zero dimension; zero-length
// dispatches are skipped rather than dispatched.
func isZeroDispatch(wg [3]uint32) bool {
	return wg[0] == 0 || wg[1] == 0 || wg[2] == 0
}

func storageLayoutEntry(binding uint32, readOnly bool) wgpu.BindGroupLayoutEntry {
	bindingType := gputypes.BufferBindingTypeStorage
	if readOnly {
		bindingType = gputypes.BufferBindingTypeReadOnlyStorage
	}
	return wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: bindingType}}
}

func uniformLayoutEntry(binding uint32) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}}
}

func bufEntry(binding uint32, buf *wgpu.Buffer, size uint64) wgpu.BindGroupEntry {
	return wgpu.BindGroupEntry{Binding: binding, Buffer: buf, Size: size}
}

// launchSpec is the fully-resolved description of one compute-pass
// dispatch, built by each operation's RecordX from its selected variant.
type launchSpec struct {
	Key           registry.Key
	Label         string
	LayoutEntries []wgpu.BindGroupLayoutEntry
	BindEntries   []wgpu.BindGroupEntry
	UniformBytes  []byte
	Workgroups    [3]uint32
	Indirect      *wgpu.Buffer // when set, DispatchIndirect(Indirect, 0) instead of Workgroups
}

// dispatch resolves spec's pipeline and bind group and records one compute
// pass into rec — the single core every RunX/RecordX funnels through.
func dispatch(deps *Deps, rec *recorder.Recorder, spec launchSpec) error {
	if spec.Indirect == nil && isZeroDispatch(spec.Workgroups) {
		return nil
	}
	if spec.Indirect == nil {
		if err := checkDispatchLimit(spec.Key.Operation, spec.Workgroups, "reduce input size or enable a streaming variant"); err != nil {
			return err
		}
	}

	variant, ok := deps.Registry.Lookup(spec.Key.Operation, spec.Key.Variant)
	if !ok {
		return fmt.Errorf("kernels: %s: not registered", spec.Key)
	}

	device := deps.Device.GetDevice()
	if device == nil {
		return llmkernel.ErrDeviceLost
	}

	layout, err := deps.Pipelines.BindGroupLayout(device, pipecache.BindGroupLayoutDesc{
		Label:   spec.Key.String() + ":layout",
		Entries: spec.LayoutEntries,
	})
	if err != nil {
		return err
	}

	pipeline, err := deps.Pipelines.CreatePipeline(device, deps.Device.GetKernelCapabilities(), deps.Registry, pipecache.PipelineRequest{
		Key:        spec.Key,
		ShaderFile: variant.ShaderFile,
		EntryPoint: variant.EntryPoint,
		Layout:     layout,
	})
	if err != nil {
		return err
	}

	uniformBuf, err := rec.CreateUniformBuffer(spec.UniformBytes, spec.Label+":uniforms")
	if err != nil {
		return err
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(spec.BindEntries)+1)
	entries = append(entries, bufEntry(0, uniformBuf, uint64(len(spec.UniformBytes))))
	entries = append(entries, spec.BindEntries...)

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{Label: spec.Label, Layout: layout, Entries: entries})
	if err != nil {
		return fmt.Errorf("kernels: %s: create bind group: %w", spec.Key, err)
	}

	pass, err := rec.BeginComputePass(spec.Label)
	if err != nil {
		return err
	}
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup)
	if spec.Indirect != nil {
		pass.DispatchIndirect(spec.Indirect, 0)
	} else {
		pass.Dispatch(spec.Workgroups[0], spec.Workgroups[1], spec.Workgroups[2])
	}
	return pass.End()
}

// resolveOutput reuses a caller-supplied buffer when it is large enough,
// else acquires one from the pool.
func resolveOutput(deps *Deps, rec *recorder.Recorder, caller *wgpu.Buffer, requiredSize uint64, dtype tensor.DType, shape tensor.Shape, label string) (tensor.Tensor, error) {
	if caller != nil && caller.Size() >= requiredSize {
		return tensor.New(caller, dtype, shape, label)
	}
	buf, err := rec.CreateTempBuffer(requiredSize, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst|wgpu.BufferUsageCopySrc, label)
	if err != nil {
		return tensor.Tensor{}, err
	}
	return tensor.New(buf, dtype, shape, label)
}

// q4kRowBytes computes a q4k super-block row size: ceil(K/256) * 144 bytes
// per row.
func q4kRowBytes(k int64) uint64 {
	blocks := ceilDivI64(k, 256)
	return uint64(blocks) * 144
}
