// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"encoding/binary"

	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/wgpu"
)

// SampleRequest is one next-token sampling dispatch over a logits row.
// The sample operation registers three variants (default, gpu_argmax,
// gpu_sample) and there is no package selector for it — the caller names
// the variant it wants directly.
type SampleRequest struct {
	Logits       tensor.Tensor
	VocabSize    int64
	TopK         int64
	Temperature  float32
	RandomValue  float32
	PadTokenID   int64
	LogitSoftcap float32

	// Variant selects "default" (writes full softmax-weighted
	// distribution), "gpu_argmax" (writes the single argmax token id), or
	// "gpu_sample" (writes one sampled token id). Defaults to "default".
	Variant string

	Output *wgpu.Buffer
}

// RunSample dispatches sampling immediately.
func RunSample(deps *Deps, req SampleRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordSample(deps, rec, req)
	})
}

// RecordSample records a sampling dispatch into rec without submitting.
func RecordSample(deps *Deps, rec *recorder.Recorder, req SampleRequest) (tensor.Tensor, error) {
	if err := validateDims("sample", map[string]int64{"vocabSize": req.VocabSize}); err != nil {
		return tensor.Tensor{}, err
	}
	variantName := req.Variant
	if variantName == "" {
		variantName = "default"
	}
	key := registry.Key{Operation: "sample", Variant: variantName}
	variant, ok := deps.Registry.Lookup(key.Operation, key.Variant)
	if !ok {
		variant = registry.Variant{}
	}

	outDType := tensor.F32
	outSize := uint64(req.VocabSize) * 4
	outShape := tensor.Shape{req.VocabSize}
	if variant.OutputDType == "u32" {
		outDType = tensor.U32
		outSize = 4
		outShape = tensor.Shape{1}
	}
	out, err := resolveOutput(deps, rec, req.Output, outSize, outDType, outShape, "sample:"+variantName+":output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := SampleUniforms{
		VocabSize: uint32(req.VocabSize), TopK: uint32(req.TopK),
		Temperature: req.Temperature, RandomValue: req.RandomValue,
		PadTokenID: uint32(req.PadTokenID), LogitSoftcap: req.LogitSoftcap,
	}
	wgX, wgY := wrapDispatch1D(uint32(ceilDivI64(req.VocabSize, elementwiseWorkgroupSize)))
	if variantName != "default" {
		// argmax/sample reduce to one workgroup's worth of shared-memory
		// reduction regardless of vocab size.
		wgX, wgY = 1, 1
	}
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "sample:" + variantName,
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.Logits.Buffer(), 0), bufEntry(2, out.Buffer(), outSize)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}

// RunArgmax dispatches the gpu_argmax variant over req.Logits, waits for
// completion, and reads the winning token id back to the host. The readback is
// gated by the device's perf guard.
func RunArgmax(deps *Deps, req SampleRequest) (uint32, error) {
	req.Variant = "gpu_argmax"
	tok, err := RunSample(deps, req)
	if err != nil {
		return 0, err
	}
	return ReadSampledTokenID(deps, tok)
}

// RunGPUSample dispatches the gpu_sample variant (temperature plus top-k
// weighted draw using req.RandomValue), waits for completion, and reads the
// sampled token id back to the host.
func RunGPUSample(deps *Deps, req SampleRequest) (uint32, error) {
	req.Variant = "gpu_sample"
	tok, err := RunSample(deps, req)
	if err != nil {
		return 0, err
	}
	return ReadSampledTokenID(deps, tok)
}

// ReadSampledTokenID pulls a single sampled token id back to the host
// after a gpu_argmax/gpu_sample dispatch.
// Submit (or the enclosing recorder's Submit) must have completed before
// this is called, since the binding's Submit is itself synchronous.
func ReadSampledTokenID(deps *Deps, tok tensor.Tensor) (uint32, error) {
	buf := make([]byte, 4)
	if err := deps.Device.Queue().ReadBuffer(tok.Buffer(), 0, buf, "sample:readback"); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}
