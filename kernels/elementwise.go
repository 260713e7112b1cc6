// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Elementwise-family launchers (silu, gelu, gather, residual, bias_add)
// share selector.ElementwiseRequest's base/suffix selection. silu and
// gelu share one record helper (recordActivation) below; residual,
// bias_add and gather record their own dispatch. All but gather write a
// `u32 size` uniform; gather writes GatherUniforms.
package kernels

import (
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/selector"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/wgpu"
)

// ActivationRequest is one SiLU/GeLU dispatch, optionally gated (gated
// base variant reads a second "gate" operand).
type ActivationRequest struct {
	Input, Gate tensor.Tensor // Gate is ignored unless Base == "gated"
	Base        string        // "plain", "gated", "rowsplit", or "vec4"
	Size        int64

	Output   *wgpu.Buffer
	Mode     selector.Mode
	Override *selector.Override
}

type elementwiseSelectFn func(*registry.Registry, llmkernel.Capability, selector.Mode, selector.ElementwiseRequest, *selector.Override) (registry.Key, error)

func runActivation(deps *Deps, operation string, selectFn elementwiseSelectFn, req ActivationRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return recordActivation(deps, rec, operation, selectFn, req)
	})
}

func recordActivation(deps *Deps, rec *recorder.Recorder, operation string, selectFn elementwiseSelectFn, req ActivationRequest) (tensor.Tensor, error) {
	if err := validateDims(operation, map[string]int64{"size": req.Size}); err != nil {
		return tensor.Tensor{}, err
	}
	key, err := selectFn(deps.Registry, deps.Device.GetKernelCapabilities(), req.Mode, selector.ElementwiseRequest{
		Base: req.Base, TensorF16: req.Input.DType() == tensor.F16,
	}, req.Override)
	if err != nil {
		return tensor.Tensor{}, err
	}

	outSize := uint64(req.Size) * tensor.DTypeBytes(req.Input.DType())
	out, err := resolveOutput(deps, rec, req.Output, outSize, req.Input.DType(), tensor.Shape{req.Size}, operation+":output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	layoutEntries := []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true)}
	bindEntries := []wgpu.BindGroupEntry{bufEntry(1, req.Input.Buffer(), 0)}
	nextBinding := uint32(2)
	if req.Base == "gated" {
		layoutEntries = append(layoutEntries, storageLayoutEntry(nextBinding, true))
		bindEntries = append(bindEntries, bufEntry(nextBinding, req.Gate.Buffer(), 0))
		nextBinding++
	}
	layoutEntries = append(layoutEntries, storageLayoutEntry(nextBinding, false))
	bindEntries = append(bindEntries, bufEntry(nextBinding, out.Buffer(), outSize))

	uniforms := SizeUniforms{Size: uint32(req.Size)}
	wgX, wgY := wrapDispatch1D(uint32(ceilDivI64(req.Size, elementwiseWorkgroupSize)))
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: operation + ":" + key.Variant,
		LayoutEntries: layoutEntries, BindEntries: bindEntries,
		UniformBytes: uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}

// RunSiLU dispatches SiLU immediately.
func RunSiLU(deps *Deps, req ActivationRequest) (tensor.Tensor, error) {
	return runActivation(deps, "silu", selector.SiLU, req)
}

// RecordSiLU records a SiLU dispatch into rec without submitting.
func RecordSiLU(deps *Deps, rec *recorder.Recorder, req ActivationRequest) (tensor.Tensor, error) {
	return recordActivation(deps, rec, "silu", selector.SiLU, req)
}

// RunGeLU dispatches GeLU immediately.
func RunGeLU(deps *Deps, req ActivationRequest) (tensor.Tensor, error) {
	return runActivation(deps, "gelu", selector.GeLU, req)
}

// RecordGeLU records a GeLU dispatch into rec without submitting.
func RecordGeLU(deps *Deps, rec *recorder.Recorder, req ActivationRequest) (tensor.Tensor, error) {
	return recordActivation(deps, rec, "gelu", selector.GeLU, req)
}

// ResidualRequest is one residual-add dispatch: output = A + B.
type ResidualRequest struct {
	A, B tensor.Tensor
	Size int64

	Output   *wgpu.Buffer
	Mode     selector.Mode
	Override *selector.Override
}

// RunResidual dispatches a residual add immediately.
func RunResidual(deps *Deps, req ResidualRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordResidual(deps, rec, req)
	})
}

// RecordResidual records a residual-add dispatch into rec without
// submitting.
func RecordResidual(deps *Deps, rec *recorder.Recorder, req ResidualRequest) (tensor.Tensor, error) {
	if err := validateDims("residual", map[string]int64{"size": req.Size}); err != nil {
		return tensor.Tensor{}, err
	}
	key, err := selector.Residual(deps.Registry, deps.Device.GetKernelCapabilities(), req.Mode, selector.ElementwiseRequest{
		Base: "plain", TensorF16: req.A.DType() == tensor.F16 && req.B.DType() == tensor.F16,
	}, req.Override)
	if err != nil {
		return tensor.Tensor{}, err
	}

	outSize := uint64(req.Size) * tensor.DTypeBytes(req.A.DType())
	out, err := resolveOutput(deps, rec, req.Output, outSize, req.A.DType(), tensor.Shape{req.Size}, "residual:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := SizeUniforms{Size: uint32(req.Size)}
	wgX, wgY := wrapDispatch1D(uint32(ceilDivI64(req.Size, elementwiseWorkgroupSize)))
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "residual:" + key.Variant,
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, true), storageLayoutEntry(3, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.A.Buffer(), 0), bufEntry(2, req.B.Buffer(), 0), bufEntry(3, out.Buffer(), outSize)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}

// BiasAddRequest is one bias-add dispatch: output = Input + Bias
// (broadcast over rows).
type BiasAddRequest struct {
	Input, Bias tensor.Tensor
	Size        int64
	Vec4        bool

	Output   *wgpu.Buffer
	Mode     selector.Mode
	Override *selector.Override
}

// RunBiasAdd dispatches bias-add immediately.
func RunBiasAdd(deps *Deps, req BiasAddRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordBiasAdd(deps, rec, req)
	})
}

// RecordBiasAdd records a bias-add dispatch into rec without submitting.
func RecordBiasAdd(deps *Deps, rec *recorder.Recorder, req BiasAddRequest) (tensor.Tensor, error) {
	if err := validateDims("bias_add", map[string]int64{"size": req.Size}); err != nil {
		return tensor.Tensor{}, err
	}
	base := "plain"
	if req.Vec4 {
		base = "vec4"
	}
	key, err := selector.BiasAdd(deps.Registry, deps.Device.GetKernelCapabilities(), req.Mode, selector.ElementwiseRequest{
		Base: base, TensorF16: req.Input.DType() == tensor.F16,
	}, req.Override)
	if err != nil {
		return tensor.Tensor{}, err
	}

	outSize := uint64(req.Size) * tensor.DTypeBytes(req.Input.DType())
	out, err := resolveOutput(deps, rec, req.Output, outSize, req.Input.DType(), tensor.Shape{req.Size}, "bias_add:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := SizeUniforms{Size: uint32(req.Size)}
	wgX, wgY := wrapDispatch1D(uint32(ceilDivI64(req.Size, elementwiseWorkgroupSize)))
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "bias_add:" + key.Variant,
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, true), storageLayoutEntry(3, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.Input.Buffer(), 0), bufEntry(2, req.Bias.Buffer(), 0), bufEntry(3, out.Buffer(), outSize)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}

// GatherRequest is one embedding-table gather dispatch: output[i] =
// Table[Indices[i]].
type GatherRequest struct {
	Table, Indices tensor.Tensor
	NumTokens      int64
	HiddenSize     int64
	VocabSize      int64
	Transpose      bool
	RowSplit       bool

	// Indirect drives NumTokens from a GPU-resident count.
	Indirect *wgpu.Buffer

	Output   *wgpu.Buffer
	Mode     selector.Mode
	Override *selector.Override
}

// RunGather dispatches a gather immediately.
func RunGather(deps *Deps, req GatherRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordGather(deps, rec, req)
	})
}

// RecordGather records a gather dispatch into rec without submitting.
func RecordGather(deps *Deps, rec *recorder.Recorder, req GatherRequest) (tensor.Tensor, error) {
	if err := validateDims("gather", map[string]int64{"hiddenSize": req.HiddenSize, "vocabSize": req.VocabSize}); err != nil {
		return tensor.Tensor{}, err
	}
	base := "plain"
	if req.RowSplit {
		base = "rowsplit"
	}
	key, err := selector.Gather(deps.Registry, deps.Device.GetKernelCapabilities(), req.Mode, selector.ElementwiseRequest{
		Base: base, TensorF16: req.Table.DType() == tensor.F16,
	}, req.Override)
	if err != nil {
		return tensor.Tensor{}, err
	}

	outSize := uint64(req.NumTokens*req.HiddenSize) * tensor.DTypeBytes(req.Table.DType())
	out, err := resolveOutput(deps, rec, req.Output, outSize, req.Table.DType(), tensor.Shape{req.NumTokens, req.HiddenSize}, "gather:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := GatherUniforms{NumTokens: uint32(req.NumTokens), HiddenSize: uint32(req.HiddenSize), VocabSize: uint32(req.VocabSize), Transpose: boolU32(req.Transpose)}
	wgX, wgY := wrapDispatch1D(uint32(ceilDivI64(req.NumTokens, 1)))
	spec := launchSpec{
		Key: key, Label: "gather:" + key.Variant,
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, true), storageLayoutEntry(3, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.Table.Buffer(), 0), bufEntry(2, req.Indices.Buffer(), 0), bufEntry(3, out.Buffer(), outSize)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
		Indirect: req.Indirect,
	}
	if err := dispatch(deps, rec, spec); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}
