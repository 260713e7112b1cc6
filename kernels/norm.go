// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/selector"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/wgpu"
)

const elementwiseWorkgroupSize = 256

// RMSNormRequest is one RMSNorm dispatch, optionally fused with a residual
// add.
type RMSNormRequest struct {
	Input, Weight tensor.Tensor
	Residual      *tensor.Tensor // optional
	HiddenSize    int64
	BatchSize     int64
	Eps           float32

	Output   *wgpu.Buffer
	Mode     selector.Mode
	Override *selector.Override
}

// RunRMSNorm dispatches RMSNorm immediately.
func RunRMSNorm(deps *Deps, req RMSNormRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordRMSNorm(deps, rec, req)
	})
}

// RecordRMSNorm records an RMSNorm dispatch into rec without submitting.
func RecordRMSNorm(deps *Deps, rec *recorder.Recorder, req RMSNormRequest) (tensor.Tensor, error) {
	if err := validateDims("rmsnorm", map[string]int64{"hiddenSize": req.HiddenSize, "batchSize": req.BatchSize}); err != nil {
		return tensor.Tensor{}, err
	}

	key, err := selector.RMSNorm(deps.Registry, deps.Device.GetKernelCapabilities(), req.Mode, selector.RMSNormRequest{
		HiddenSize: req.HiddenSize, HasResidual: req.Residual != nil,
		InputIsF16: req.Input.DType() == tensor.F16,
		ResidualIsF16: req.Residual != nil && req.Residual.DType() == tensor.F16,
	}, req.Override)
	if err != nil {
		return tensor.Tensor{}, err
	}

	outSize := uint64(req.HiddenSize*req.BatchSize) * tensor.DTypeBytes(req.Input.DType())
	out, err := resolveOutput(deps, rec, req.Output, outSize, req.Input.DType(), tensor.Shape{req.BatchSize, req.HiddenSize}, "rmsnorm:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	layoutEntries := []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, true)}
	bindEntries := []wgpu.BindGroupEntry{bufEntry(1, req.Input.Buffer(), 0), bufEntry(2, req.Weight.Buffer(), 0)}
	nextBinding := uint32(3)
	if req.Residual != nil {
		layoutEntries = append(layoutEntries, storageLayoutEntry(nextBinding, true))
		bindEntries = append(bindEntries, bufEntry(nextBinding, req.Residual.Buffer(), 0))
		nextBinding++
	}
	layoutEntries = append(layoutEntries, storageLayoutEntry(nextBinding, false))
	bindEntries = append(bindEntries, bufEntry(nextBinding, out.Buffer(), outSize))

	uniforms := RMSNormUniforms{HiddenSize: uint32(req.HiddenSize), BatchSize: uint32(req.BatchSize), Eps: req.Eps, HasResidual: boolU32(req.Residual != nil)}

	total := uint32(ceilDivI64(req.BatchSize, 1))
	wgX, wgY := wrapDispatch1D(total)
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "rmsnorm:" + key.Variant,
		LayoutEntries: layoutEntries, BindEntries: bindEntries,
		UniformBytes: uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}

// SoftmaxRequest is one softmax dispatch over rows of InnerSize.
type SoftmaxRequest struct {
	Input       tensor.Tensor
	InnerSize   int64
	OuterSize   int64
	Temperature float32

	Output   *wgpu.Buffer
	Mode     selector.Mode
	Override *selector.Override
}

// RunSoftmax dispatches softmax immediately.
func RunSoftmax(deps *Deps, req SoftmaxRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordSoftmax(deps, rec, req)
	})
}

// RecordSoftmax records a softmax dispatch into rec without submitting.
func RecordSoftmax(deps *Deps, rec *recorder.Recorder, req SoftmaxRequest) (tensor.Tensor, error) {
	if err := validateDims("softmax", map[string]int64{"innerSize": req.InnerSize, "outerSize": req.OuterSize}); err != nil {
		return tensor.Tensor{}, err
	}

	key, err := selector.Softmax(deps.Registry, deps.Device.GetKernelCapabilities(), req.Mode, selector.SoftmaxRequest{
		InnerSize: req.InnerSize, InputIsF16: req.Input.DType() == tensor.F16,
	}, req.Override)
	if err != nil {
		return tensor.Tensor{}, err
	}

	outSize := uint64(req.InnerSize*req.OuterSize) * tensor.DTypeBytes(req.Input.DType())
	out, err := resolveOutput(deps, rec, req.Output, outSize, req.Input.DType(), tensor.Shape{req.OuterSize, req.InnerSize}, "softmax:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	uniforms := SoftmaxUniforms{InnerSize: uint32(req.InnerSize), OuterSize: uint32(req.OuterSize), Temperature: req.Temperature}
	wgX, wgY := wrapDispatch1D(uint32(req.OuterSize))
	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "softmax:" + key.Variant,
		LayoutEntries: []wgpu.BindGroupLayoutEntry{storageLayoutEntry(1, true), storageLayoutEntry(2, false)},
		BindEntries:   []wgpu.BindGroupEntry{bufEntry(1, req.Input.Buffer(), 0), bufEntry(2, out.Buffer(), outSize)},
		UniformBytes:  uniforms.Bytes(), Workgroups: [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}
