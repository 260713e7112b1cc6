// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package selector

import (
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/registry"
)

// SoftmaxRequest describes one softmax dispatch's shape/dtype class.
type SoftmaxRequest struct {
	InnerSize      int64
	InputIsF16     bool
	SmallThreshold int64
}

func (r SoftmaxRequest) smallThreshold() int64 {
	if r.SmallThreshold > 0 {
		return r.SmallThreshold
	}
	return DefaultSmallThreshold
}

// Softmax resolves the softmax variant for req: the same small/subgroup
// rules as RMSNorm, applied over innerSize (small threshold 256).
func Softmax(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req SoftmaxRequest, override *Override) (registry.Key, error) {
	if key, ok, err := resolveOverride(reg, cap, mode, "softmax", override, noExtraCheck); err != nil {
		return registry.Key{}, err
	} else if ok {
		return key, nil
	}

	base := "default"
	switch {
	case cap.Subgroups:
		base = "subgroup"
	case req.InnerSize <= req.smallThreshold():
		base = "small"
	}
	return registry.Key{Operation: "softmax", Variant: base + f16Suffix(req.InputIsF16 && cap.F16)}, nil
}
