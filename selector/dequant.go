// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package selector

import (
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/registry"
)

// DequantRequest describes one dequantization dispatch's shape/dtype
// class.
type DequantRequest struct {
	Vec4Requested bool
	WantF16Out    bool
}

// Dequant resolves the dequant variant for req: (subgroups, vec4,
// wantF16Out) → {subgroup, subgroup_vec4, subgroup_*_f16out, shared,
// shared_vec4, shared_*_f16out}.
func Dequant(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req DequantRequest, override *Override) (registry.Key, error) {
	if key, ok, err := resolveOverride(reg, cap, mode, "dequant", override, noExtraCheck); err != nil {
		return registry.Key{}, err
	} else if ok {
		return key, nil
	}

	base := "shared"
	if cap.Subgroups {
		base = "subgroup"
	}
	if req.Vec4Requested {
		base += "_vec4"
	}
	if req.WantF16Out && cap.F16 {
		base += "_f16out"
	}
	return registry.Key{Operation: "dequant", Variant: base}, nil
}
