// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/wgpu"
)

// TopKRequest selects the TopK highest-scoring experts per token from a
// router-logits tensor of shape [NumTokens, NumExperts]. topk and
// scatter_add register only a single "default" variant each, so neither
// goes through package selector.
type TopKRequest struct {
	RouterLogits tensor.Tensor
	NumTokens    int64
	NumExperts   int64
	TopK         int64
	Normalize    bool

	// Output holds packed (expertIdx u32, weight f32) pairs, TopK per
	// token.
	Output *wgpu.Buffer
}

// RunTopK dispatches expert top-k selection immediately.
func RunTopK(deps *Deps, req TopKRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordTopK(deps, rec, req)
	})
}

// RecordTopK records a top-k dispatch into rec without submitting.
func RecordTopK(deps *Deps, rec *recorder.Recorder, req TopKRequest) (tensor.Tensor, error) {
	if err := validateDims("topk", map[string]int64{"numTokens": req.NumTokens, "numExperts": req.NumExperts, "topK": req.TopK}); err != nil {
		return tensor.Tensor{}, err
	}

	key := registry.Key{Operation: "topk", Variant: "default"}
	outSize := uint64(req.NumTokens*req.TopK) * 8 // (u32 expertIdx, f32 weight) pairs
	out, err := resolveOutput(deps, rec, req.Output, outSize, tensor.U32, tensor.Shape{req.NumTokens, req.TopK, 2}, "topk:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := TopKUniforms{NumTokens: uint32(req.NumTokens), NumExperts: uint32(req.NumExperts), TopK: uint32(req.TopK), Normalize: boolU32(req.Normalize)}
	wgX, wgY := wrapDispatch1D(uint32(req.NumTokens))
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "topk:default",
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.RouterLogits.Buffer(), 0), bufEntry(2, out.Buffer(), outSize)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}

// ScatterAddRequest accumulates TopK per-expert outputs back into a single
// per-token hidden-size output, weighted by the router weight from TopK.
type ScatterAddRequest struct {
	ExpertOutputs tensor.Tensor // [NumTokens, TopK, HiddenSize]
	RouterWeights tensor.Tensor // packed (expertIdx, weight) pairs from TopK
	NumTokens     int64
	HiddenSize    int64
	TopK          int64
	NumExperts    int64

	Output *wgpu.Buffer
}

// RunScatterAdd dispatches MoE scatter-add immediately.
func RunScatterAdd(deps *Deps, req ScatterAddRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordScatterAdd(deps, rec, req)
	})
}

// RecordScatterAdd records a scatter-add dispatch into rec without
// submitting.
func RecordScatterAdd(deps *Deps, rec *recorder.Recorder, req ScatterAddRequest) (tensor.Tensor, error) {
	if err := validateDims("scatter_add", map[string]int64{"numTokens": req.NumTokens, "hiddenSize": req.HiddenSize, "topK": req.TopK}); err != nil {
		return tensor.Tensor{}, err
	}

	key := registry.Key{Operation: "scatter_add", Variant: "default"}
	outSize := uint64(req.NumTokens*req.HiddenSize) * tensor.DTypeBytes(req.ExpertOutputs.DType())
	out, err := resolveOutput(deps, rec, req.Output, outSize, req.ExpertOutputs.DType(), tensor.Shape{req.NumTokens, req.HiddenSize}, "scatter_add:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := ScatterAddUniforms{NumTokens: uint32(req.NumTokens), HiddenSize: uint32(req.HiddenSize), TopK: uint32(req.TopK), NumExperts: uint32(req.NumExperts)}
	wgX, wgY := wrapDispatch1D(uint32(ceilDivI64(req.NumTokens*req.HiddenSize, elementwiseWorkgroupSize)))
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "scatter_add:default",
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, true), storageLayoutEntry(3, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.ExpertOutputs.Buffer(), 0), bufEntry(2, req.RouterWeights.Buffer(), 0), bufEntry(3, out.Buffer(), outSize)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}
