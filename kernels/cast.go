// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"fmt"

	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/wgpu"
)

// CastRequest is one dtype-conversion dispatch. bf16_to_f32 and
// bf16_to_f16 register a single variant each and cast registers one per
// direction (f32_to_f16, f16_to_f32), so there is no package selector
// here — the input/output dtypes alone pick the variant.
type CastRequest struct {
	Input       tensor.Tensor
	NumElements int64
	To          tensor.DType // tensor.F32 or tensor.F16

	Output *wgpu.Buffer
}

func castKey(from, to tensor.DType) (registry.Key, error) {
	switch {
	case from == tensor.BF16 && to == tensor.F32:
		return registry.Key{Operation: "bf16_to_f32", Variant: "default"}, nil
	case from == tensor.BF16 && to == tensor.F16:
		return registry.Key{Operation: "bf16_to_f16", Variant: "default"}, nil
	case from == tensor.F32 && to == tensor.F16:
		return registry.Key{Operation: "cast", Variant: "f32_to_f16"}, nil
	case from == tensor.F16 && to == tensor.F32:
		return registry.Key{Operation: "cast", Variant: "f16_to_f32"}, nil
	default:
		return registry.Key{}, fmt.Errorf("kernels: cast: no registered conversion %s -> %s", from, to)
	}
}

// RunCast dispatches a dtype conversion immediately.
func RunCast(deps *Deps, req CastRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordCast(deps, rec, req)
	})
}

// RecordCast records a dtype-conversion dispatch into rec without
// submitting.
func RecordCast(deps *Deps, rec *recorder.Recorder, req CastRequest) (tensor.Tensor, error) {
	if err := validateDims("cast", map[string]int64{"numElements": req.NumElements}); err != nil {
		return tensor.Tensor{}, err
	}
	key, err := castKey(req.Input.DType(), req.To)
	if err != nil {
		return tensor.Tensor{}, err
	}

	outSize := uint64(req.NumElements) * tensor.DTypeBytes(req.To)
	out, err := resolveOutput(deps, rec, req.Output, outSize, req.To, tensor.Shape{req.NumElements}, key.Operation+":output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := NumElementsUniforms{NumElements: uint32(req.NumElements)}
	wgX, wgY := wrapDispatch1D(uint32(ceilDivI64(req.NumElements, elementwiseWorkgroupSize)))
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: key.String(),
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.Input.Buffer(), 0), bufEntry(2, out.Buffer(), outSize)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}
