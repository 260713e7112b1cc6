// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/selector"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/wgpu"
)

// DequantRequest is one Q4K/Q6K/Q8_0 -> f32/f16 dequantization dispatch,
// row-major over Rows rows of K columns.
type DequantRequest struct {
	Input      tensor.Tensor // quantized weight rows
	Rows       int64
	K          int64
	Vec4       bool
	WantF16Out bool

	Output   *wgpu.Buffer
	Mode     selector.Mode
	Override *selector.Override
}

// RunDequant dispatches dequantization immediately.
func RunDequant(deps *Deps, req DequantRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordDequant(deps, rec, req)
	})
}

// RecordDequant records a dequantization dispatch into rec without
// submitting.
func RecordDequant(deps *Deps, rec *recorder.Recorder, req DequantRequest) (tensor.Tensor, error) {
	if err := validateDims("dequant", map[string]int64{"rows": req.Rows, "K": req.K}); err != nil {
		return tensor.Tensor{}, err
	}

	key, err := selector.Dequant(deps.Registry, deps.Device.GetKernelCapabilities(), req.Mode, selector.DequantRequest{
		Vec4Requested: req.Vec4, WantF16Out: req.WantF16Out,
	}, req.Override)
	if err != nil {
		return tensor.Tensor{}, err
	}
	variant, _ := deps.Registry.Lookup(key.Operation, key.Variant)

	outDType := tensor.F32
	if variant.OutputDType == "f16" {
		outDType = tensor.F16
	}
	outSize := uint64(req.Rows*req.K) * tensor.DTypeBytes(outDType)
	out, err := resolveOutput(deps, rec, req.Output, outSize, outDType, tensor.Shape{req.Rows, req.K}, "dequant:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := SizeUniforms{Size: uint32(req.Rows * req.K)}
	// dequant dispatches one workgroup per row: the q4k/q6k/q8_0 block
	// layout is row-aligned, so tiling by element count would split a
	// super-block across workgroups.
	wgX, wgY := wrapDispatch1D(uint32(req.Rows))
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "dequant:" + key.Variant,
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.Input.Buffer(), 0), bufEntry(2, out.Buffer(), outSize)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}
