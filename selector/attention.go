// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package selector

import (
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/registry"
)

// Tier is the attention shared-memory/capability tier computed before
// resolving a concrete variant name.
type Tier int

const (
	TierTiledLarge Tier = iota
	TierTiledSmall
	TierSubgroup
	TierStreaming
)

func (t Tier) String() string {
	switch t {
	case TierTiledLarge:
		return "tiled_large"
	case TierTiledSmall:
		return "tiled_small"
	case TierSubgroup:
		return "subgroup"
	default:
		return "streaming"
	}
}

// AttentionRequest describes one attention dispatch's shape/phase class.
type AttentionRequest struct {
	HeadDim  int
	NumHeads int
	IsDecode bool
	UseF16KV bool
	KVLen    int64
}

// attentionTier computes the tier from headDim and available workgroup
// shared memory: tiled_large (headDim ≤ 64, shared ≥ 48 KiB) >
// tiled_small (≤ 256, ≥ 4-8 KiB depending on KV dtype) > subgroup (decode
// only, subgroups available, ≥ 8 KiB) > streaming (fallback).
//
// This ignores any caller-supplied tier hint in ModeAuto: the decision
// here is that tier is a capability/shape-derived fact, not something a
// caller should be able to second-guess outside of an explicit strict
// kernel path, where Attention replaces this function's result with the
// tier named by override.TierHint.
func attentionTier(cap llmkernel.Capability, req AttentionRequest) Tier {
	sharedKiB := int(cap.Limits.MaxComputeWorkgroupStorageSize / 1024)
	kvThresholdKiB := 8
	if req.UseF16KV {
		kvThresholdKiB = 4
	}
	switch {
	case req.HeadDim <= 64 && sharedKiB >= 48:
		return TierTiledLarge
	case req.HeadDim <= 256 && sharedKiB >= kvThresholdKiB:
		return TierTiledSmall
	case req.IsDecode && cap.Subgroups && sharedKiB >= 8:
		return TierSubgroup
	default:
		return TierStreaming
	}
}

// Attention resolves the attention variant for req. When mode is
// ModeStrict and override.TierHint is set, the hinted tier is used
// directly instead of attentionTier's computation — the one place a
// caller can override tier selection, and only under a strict kernel
// path.
func Attention(reg *registry.Registry, cap llmkernel.Capability, mode Mode, req AttentionRequest, override *Override) (registry.Key, error) {
	if key, ok, err := resolveOverride(reg, cap, mode, "attention", override, func(v registry.Variant) string {
		return attentionDtypeCheck(v, req)
	}); err != nil {
		return registry.Key{}, err
	} else if ok {
		return key, nil
	}

	tier := attentionTier(cap, req)
	if mode == ModeStrict && override != nil && override.TierHint != "" {
		tier = parseTier(override.TierHint)
	}
	return registry.Key{Operation: "attention", Variant: attentionVariantForTier(tier, cap.Subgroups, req)}, nil
}

// attentionDtypeCheck enforces the phase (decode vs prefill) and dtype
// constraints of an override: the _f16kv suffix iff the KV cache is f16.
func attentionDtypeCheck(v registry.Variant, req AttentionRequest) string {
	wantF16KV := req.UseF16KV
	hasF16KVSuffix := hasSuffix(v.Variant, "_f16kv")
	if wantF16KV != hasF16KVSuffix {
		return "f16kv suffix does not match KV cache dtype"
	}
	isDecodeVariant := hasPrefix(v.Variant, "decode_")
	if isDecodeVariant != req.IsDecode {
		return "variant phase does not match decode/prefill request"
	}
	return ""
}

func attentionVariantForTier(tier Tier, subgroupsAvailable bool, req AttentionRequest) string {
	if !req.IsDecode {
		switch tier {
		case TierTiledLarge:
			return "prefill_tiled_large"
		case TierTiledSmall:
			return "prefill_tiled_small"
		default:
			return "prefill_streaming"
		}
	}

	// Concrete decode variants are named directly off
	// (useF16KV, headDim, kvLen, subgroup availability) rather than off
	// tier, since "subgroup" tier as computed above is a shared-memory
	// threshold check while the decode_subgroup *variant* additionally
	// requires the subgroups feature itself.
	switch {
	case req.UseF16KV && req.HeadDim >= 128 && req.KVLen <= 2048:
		return "decode_chunked_f16kv"
	case !req.UseF16KV && subgroupsAvailable && req.HeadDim <= 256 && req.KVLen <= 2048:
		return "decode_subgroup"
	case req.UseF16KV:
		return "decode_streaming_f16kv"
	default:
		return "decode_streaming"
	}
}

func parseTier(s string) Tier {
	switch s {
	case "tiled_large":
		return TierTiledLarge
	case "tiled_small":
		return TierTiledSmall
	case "subgroup":
		return TierSubgroup
	default:
		return TierStreaming
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
