// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/selector"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/wgpu"
)

// AttentionRequest is one attention dispatch (prefill or decode).
type AttentionRequest struct {
	Q, K, V tensor.Tensor

	NumHeads, NumKVHeads, HeadDim int
	SeqLen, KVLen                 int64
	Scale                          float32
	Causal                         bool
	StartPos                       int64
	AttnSoftcap                    float32
	SlidingWindow                  int64

	IsDecode bool
	UseF16KV bool

	// Indirect, when set, drives dispatch geometry from a GPU-resident
	// workgroup-count buffer instead of SeqLen/KVLen.
	Indirect *wgpu.Buffer

	Output   *wgpu.Buffer
	Mode     selector.Mode
	Override *selector.Override
}

// RunAttention dispatches attention immediately.
func RunAttention(deps *Deps, req AttentionRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordAttention(deps, rec, req)
	})
}

// RecordAttention records an attention dispatch into rec without
// submitting.
func RecordAttention(deps *Deps, rec *recorder.Recorder, req AttentionRequest) (tensor.Tensor, error) {
	if err := validateDims("attention", map[string]int64{"headDim": int64(req.HeadDim), "numHeads": int64(req.NumHeads), "numKVHeads": int64(req.NumKVHeads)}); err != nil {
		return tensor.Tensor{}, err
	}

	key, err := selector.Attention(deps.Registry, deps.Device.GetKernelCapabilities(), req.Mode, selector.AttentionRequest{
		HeadDim: req.HeadDim, NumHeads: req.NumHeads, IsDecode: req.IsDecode, UseF16KV: req.UseF16KV, KVLen: req.KVLen,
	}, req.Override)
	if err != nil {
		return tensor.Tensor{}, err
	}
	variant, _ := deps.Registry.Lookup(key.Operation, key.Variant)

	outDType := req.Q.DType()
	outSize := uint64(req.SeqLen) * uint64(req.NumHeads) * uint64(req.HeadDim) * tensor.DTypeBytes(outDType)
	outShape := tensor.Shape{req.SeqLen, int64(req.NumHeads), int64(req.HeadDim)}
	out, err := resolveOutput(deps, rec, req.Output, outSize, outDType, outShape, "attention:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := AttentionUniforms{
		NumHeads: uint32(req.NumHeads), NumKVHeads: uint32(req.NumKVHeads), HeadDim: uint32(req.HeadDim),
		KVLen: uint32(req.KVLen), SeqLen: uint32(req.SeqLen), Scale: req.Scale,
		Causal: boolU32(req.Causal), StartPos: uint32(req.StartPos), AttnSoftcap: req.AttnSoftcap,
		SlidingWindow: uint32(req.SlidingWindow),
	}
	if req.Indirect != nil {
		uniforms.KVLenSource = 1
	}

	layoutEntries := []wgpu.BindGroupLayoutEntry{
		storageLayoutEntry(1, true),
		storageLayoutEntry(2, true),
		storageLayoutEntry(3, true),
		storageLayoutEntry(4, false),
	}
	bindEntries := []wgpu.BindGroupEntry{
		bufEntry(1, req.Q.Buffer(), 0),
		bufEntry(2, req.K.Buffer(), 0),
		bufEntry(3, req.V.Buffer(), 0),
		bufEntry(4, out.Buffer(), outSize),
	}

	wg := attentionWorkgroups(variant.Variant, req)
	spec := launchSpec{
		Key: key, Label: "attention:" + key.Variant,
		LayoutEntries: layoutEntries, BindEntries: bindEntries,
		UniformBytes: uniforms.Bytes(),
		Workgroups:   wg,
		Indirect:     req.Indirect,
	}
	if err := dispatch(deps, rec, spec); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}

// attentionWorkgroups computes dispatch geometry per variant family:
// tiled_large prefill: ceil(seqLen/64) * numHeads; subgroup decode:
// numHeads; streaming: seqLen * numHeads.
func attentionWorkgroups(variantName string, req AttentionRequest) [3]uint32 {
	switch {
	case variantName == "prefill_tiled_large":
		total := uint32(ceilDivI64(req.SeqLen, 64)) * uint32(req.NumHeads)
		x, y := wrapDispatch1D(total)
		return [3]uint32{x, y, 1}
	case variantName == "decode_subgroup":
		return [3]uint32{uint32(req.NumHeads), 1, 1}
	default:
		total := uint32(req.SeqLen) * uint32(req.NumHeads)
		if total == 0 {
			total = uint32(req.NumHeads)
		}
		x, y := wrapDispatch1D(total)
		return [3]uint32{x, y, 1}
	}
}
