// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package selector

import (
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/tensor"
)

// DefaultMulticolThreshold is the GEMV N-dimension cutoff above which the
// multi-column subgroup variant is preferred.
const DefaultMulticolThreshold = 256

// MatmulRequest describes one matmul dispatch's shape and dtype class for
// variant selection.
type MatmulRequest struct {
	M, K, N int64

	WeightDType tensor.DType
	ActDType    tensor.DType

	// PreferF16 requests an f16 output/accumulation path when available.
	PreferF16 bool
	// Vec4Requested asks for the vectorized-load variant where one exists.
	Vec4Requested bool
	// FusedQ4KDisabled forces the reduce-to-f32-shape path even when
	// weights are q4k and subgroups are available.
	FusedQ4KDisabled bool
	// MulticolThreshold overrides DefaultMulticolThreshold; zero means use
	// the default.
	MulticolThreshold int64
}

func (r MatmulRequest) multicolThreshold() int64 {
	if r.MulticolThreshold > 0 {
		return r.MulticolThreshold
	}
	return DefaultMulticolThreshold
}

// Matmul resolves the matmul variant for req, consulting override first
// and falling back to the built-in heuristics (step
// 2) otherwise.
func Matmul(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req MatmulRequest, override *Override) (registry.Key, error) {
	if key, ok, err := resolveOverride(reg, cap, mode, "matmul", override, noExtraCheck); err != nil {
		return registry.Key{}, err
	} else if ok {
		return key, nil
	}
	return registry.Key{Operation: "matmul", Variant: matmulHeuristic(cap, req)}, nil
}

func matmulHeuristic(cap llmkernel.Capability, req MatmulRequest) string {
	if req.WeightDType == tensor.Q4K && cap.Subgroups && !req.FusedQ4KDisabled {
		if req.M == 1 {
			return "q4_fused_multicol" + f16Suffix(req.PreferF16)
		}
		return "q4_fused_batched" + f16Suffix(req.PreferF16)
	}

	// Quantized weights without a fused path reduce to f32 for shape
	// purposes: the effective weight dtype for the remaining
	// heuristics is never a quantized one.
	weightDType := req.WeightDType
	if weightDType.IsQuantized() {
		weightDType = tensor.F32
	}

	if req.M == 1 && weightDType == tensor.F16 && req.ActDType == tensor.F32 {
		if cap.Subgroups {
			if req.N > req.multicolThreshold() {
				return "gemv_subgroup_multicol"
			}
			return "gemv_subgroup"
		}
		return "gemv"
	}

	bothF16 := weightDType == tensor.F16 && req.ActDType == tensor.F16
	switch {
	case bothF16 && cap.F16 && req.Vec4Requested:
		return "f16_vec4"
	case bothF16 && cap.F16:
		return "f16"
	case weightDType == tensor.F16 && req.ActDType == tensor.F32 && cap.F16:
		return "f16w_f32a"
	default:
		return "f32"
	}
}
