// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package selector

import (
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/registry"
)

// DefaultSmallThreshold is the hiddenSize/innerSize cutoff below which the
// "small" variant is preferred over "default".
const DefaultSmallThreshold = 256

// RMSNormRequest describes one RMSNorm dispatch's shape/dtype class.
type RMSNormRequest struct {
	HiddenSize      int64
	HasResidual     bool
	InputIsF16      bool
	ResidualIsF16   bool // ignored when HasResidual is false
	SmallThreshold  int64
}

func (r RMSNormRequest) smallThreshold() int64 {
	if r.SmallThreshold > 0 {
		return r.SmallThreshold
	}
	return DefaultSmallThreshold
}

func (r RMSNormRequest) wantF16() bool {
	if r.HasResidual {
		return r.InputIsF16 && r.ResidualIsF16
	}
	return r.InputIsF16
}

// RMSNorm resolves the RMSNorm variant for req: residual* when a
// residual input is supplied; else *_subgroup when subgroups are
// available; else small when hiddenSize ≤ 256; else default. The _f16
// suffix applies iff input and (optional) residual are both f16.
func RMSNorm(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req RMSNormRequest, override *Override) (registry.Key, error) {
	if key, ok, err := resolveOverride(reg, cap, mode, "rmsnorm", override, noExtraCheck); err != nil {
		return registry.Key{}, err
	} else if ok {
		return key, nil
	}

	base := "default"
	switch {
	case req.HasResidual:
		base = "residual"
	case cap.Subgroups:
		base = "subgroup"
	case req.HiddenSize <= req.smallThreshold():
		base = "small"
	}
	return registry.Key{Operation: "rmsnorm", Variant: base + f16Suffix(req.wantF16())}, nil
}
