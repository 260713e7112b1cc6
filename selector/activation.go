// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package selector

import (
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/registry"
)

// ElementwiseRequest describes the base-variant pick shared by
// SiLU/GeLU/Gather/Residual/BiasAdd.
type ElementwiseRequest struct {
	Base      string // "plain", "gated", "rowsplit", or "vec4"
	TensorF16 bool
}

func (r ElementwiseRequest) wantF16(cap llmkernel.Capability) bool {
	return r.TensorF16 && cap.F16
}

func elementwise(reg *registry.Registry, cap llmkernel.Capability, mode Mode, operation string, req ElementwiseRequest, override *Override) (registry.Key, error) {
	if key, ok, err := resolveOverride(reg, cap, mode, operation, override, noExtraCheck); err != nil {
		return registry.Key{}, err
	} else if ok {
		return key, nil
	}
	return registry.Key{Operation: operation, Variant: req.Base + f16Suffix(req.wantF16(cap))}, nil
}

// SiLU resolves the silu activation variant for req.
func SiLU(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req ElementwiseRequest, override *Override) (registry.Key, error) {
	return elementwise(reg, cap, mode, "silu", req, override)
}

// GeLU resolves the gelu activation variant for req.
func GeLU(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req ElementwiseRequest, override *Override) (registry.Key, error) {
	return elementwise(reg, cap, mode, "gelu", req, override)
}

// Gather resolves the gather variant for req. Only "plain" and
// "rowsplit" bases are registered for this operation.
func Gather(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req ElementwiseRequest, override *Override) (registry.Key, error) {
	return elementwise(reg, cap, mode, "gather", req, override)
}

// Residual resolves the residual-add variant for req. Only "plain" is
// registered for this operation.
func Residual(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req ElementwiseRequest, override *Override) (registry.Key, error) {
	return elementwise(reg, cap, mode, "residual", req, override)
}

// BiasAdd resolves the bias-add variant for req. "plain" and "vec4" bases
// are registered for this operation.
func BiasAdd(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req ElementwiseRequest, override *Override) (registry.Key, error) {
	return elementwise(reg, cap, mode, "bias_add", req, override)
}
