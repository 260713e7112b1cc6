// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/wgpu"
)

// RopeRequest is one rotary-position-embedding dispatch, applied in place
// over Input.
type RopeRequest struct {
	Input                     tensor.Tensor
	SeqLen, NumHeads, HeadDim int64
	StartPos                  int64
	RopeTheta, Scale          float32
}

// RunRope dispatches rope immediately.
func RunRope(deps *Deps, req RopeRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordRope(deps, rec, req)
	})
}

// RecordRope records a rope dispatch into rec without submitting. Rope has
// a single shape-driven variant pair (default/default_f16), so there is no
// separate selector.Rope — the dtype suffix is resolved directly here.
func RecordRope(deps *Deps, rec *recorder.Recorder, req RopeRequest) (tensor.Tensor, error) {
	if err := validateDims("rope", map[string]int64{"seqLen": req.SeqLen, "numHeads": req.NumHeads, "headDim": req.HeadDim}); err != nil {
		return tensor.Tensor{}, err
	}

	variantName := "default"
	if req.Input.DType() == tensor.F16 && deps.Device.HasFeature("f16") {
		variantName = "default_f16"
	}
	key := registry.Key{Operation: "rope", Variant: variantName}

	// Rope rotates Input in place — the returned Tensor wraps the same buffer.
	uniforms := RopeUniforms{
		SeqLen: uint32(req.SeqLen), NumHeads: uint32(req.NumHeads), HeadDim: uint32(req.HeadDim),
		StartPos: uint32(req.StartPos), RopeTheta: req.RopeTheta, Scale: req.Scale,
	}

	wgX, wgY := wrapDispatch1D(uint32(ceilDivI64(req.SeqLen*req.NumHeads, elementwiseWorkgroupSize)))
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "rope:" + variantName,
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.Input.Buffer(), 0)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return req.Input, nil
}
