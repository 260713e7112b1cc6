// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"strings"

	"github.com/gogpu/llmkernel/recorder"
	"github.com/gogpu/llmkernel/selector"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/gogpu/wgpu"
)

// MatmulRequest is one matmul dispatch: output = alpha * (A @ B), A being
// the weight operand (possibly quantized) and B the activation operand.
type MatmulRequest struct {
	A, B    tensor.Tensor
	M, K, N int64
	Alpha   float32

	TransposeB       bool
	PreferF16        bool
	Vec4Requested    bool
	FusedQ4KDisabled bool

	Output   *wgpu.Buffer // optional: reuse when large enough
	Mode     selector.Mode
	Override *selector.Override
}

// RunMatmul resolves and dispatches a matmul immediately.
func RunMatmul(deps *Deps, req MatmulRequest) (tensor.Tensor, error) {
	return runImmediate(deps, func(rec *recorder.Recorder) (tensor.Tensor, error) {
		return RecordMatmul(deps, rec, req)
	})
}

// RecordMatmul records a matmul dispatch into rec without submitting.
func RecordMatmul(deps *Deps, rec *recorder.Recorder, req MatmulRequest) (tensor.Tensor, error) {
	if err := validateDims("matmul", map[string]int64{"M": req.M, "K": req.K, "N": req.N}); err != nil {
		return tensor.Tensor{}, err
	}

	key, err := selector.Matmul(deps.Registry, deps.Device.GetKernelCapabilities(), req.Mode, selector.MatmulRequest{
		M: req.M, K: req.K, N: req.N,
		WeightDType: req.A.DType(), ActDType: req.B.DType(),
		PreferF16: req.PreferF16, Vec4Requested: req.Vec4Requested, FusedQ4KDisabled: req.FusedQ4KDisabled,
	}, req.Override)
	if err != nil {
		return tensor.Tensor{}, err
	}
	variant, _ := deps.Registry.Lookup(key.Operation, key.Variant)

	outDType := tensor.F32
	if variant.OutputDType == "f16" {
		outDType = tensor.F16
	}
	outSize := uint64(req.M*req.N) * tensor.DTypeBytes(outDType)
	outShape := tensor.Shape{req.M, req.N}
	out, err := resolveOutput(deps, rec, req.Output, outSize, outDType, outShape, "matmul:output")
	if err != nil {
		return tensor.Tensor{}, err
	}

	outputBinding := uint32(variant.MetaIntOr("outputBinding", 3))

	aux0 := uint32(0)
	if strings.HasPrefix(variant.Variant, "q4_fused") {
		aux0 = uint32((req.K + 255) / 256) // numBlocksPerRow for q4k-fused variants
	} else if req.TransposeB {
		aux0 = 1
	}

	wgX, wgY := matmulWorkgroups(variant.Variant, variant, req)

	uniforms := MatmulUniforms{M: uint32(req.M), N: uint32(req.N), K: uint32(req.K), Alpha: req.Alpha, Aux0: aux0, UniformWorkgroupsX: wgX}

	layoutEntries := []wgpu.BindGroupLayoutEntry{
		storageLayoutEntry(1, true),
		storageLayoutEntry(2, true),
		storageLayoutEntry(outputBinding, false),
	}
	bindEntries := []wgpu.BindGroupEntry{
		bufEntry(1, req.A.Buffer(), 0),
		bufEntry(2, req.B.Buffer(), 0),
		bufEntry(outputBinding, out.Buffer(), outSize),
	}

	if err := dispatch(deps, rec, launchSpec{
		Key: key, Label: "matmul:" + key.Variant,
		LayoutEntries: layoutEntries, BindEntries: bindEntries,
		UniformBytes: uniforms.Bytes(),
		Workgroups:   [3]uint32{wgX, wgY, 1},
	}); err != nil {
		return tensor.Tensor{}, err
	}
	return out, nil
}

// matmulWorkgroups computes dispatch geometry per variant family.
func matmulWorkgroups(name string, variant interface {
	MetaIntOr(string, int) int
}, req MatmulRequest) (uint32, uint32) {
	switch {
	case name == "gemv_subgroup_multicol":
		colsPerWg := variant.MetaIntOr("colsPerWg", 8)
		total := uint32(ceilDivI64(req.N, int64(colsPerWg)))
		x, y := wrapDispatch1D(total)
		return x, y
	case name == "q4_fused_multicol" || name == "q4_fused_multicol_f16":
		colsPerWg := variant.MetaIntOr("colsPerWg", 4)
		total := uint32(ceilDivI64(req.N, int64(colsPerWg)))
		x, y := wrapDispatch1D(total)
		return x, y
	case name == "q4_fused_batched" || name == "q4_fused_batched_f16":
		tileM := variant.MetaIntOr("tileM", 4)
		return uint32(req.N), uint32(ceilDivI64(req.M, int64(tileM)))
	case name == "gemv" || name == "gemv_subgroup":
		return uint32(req.N), 1
	default:
		// Generic tiled path: x = ceil(M/wgX), y = ceil(N/(wgY*colsPerThread)).
		colsPerThread := variant.MetaIntOr("colsPerThread", 1)
		const wgX, wgY = 16, 16
		return uint32(ceilDivI64(req.M, wgX)), uint32(ceilDivI64(req.N, int64(wgY*colsPerThread)))
	}
}
