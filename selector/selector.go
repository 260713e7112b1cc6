// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package selector implements the variant selection heuristics: one
// function per operation family, each mapping capabilities, operand
// dtypes, and shape class to a concrete registry.Key. Selector
// functions never reference a shader file directly — they resolve down to
// a registry.Key and leave loading to package kernels via package
// registry.
package selector

import (
	"fmt"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/registry"
)

// Mode is the active kernel path's validation mode: a bad override is
// either an error (strict) or a logged fallback to heuristics (auto). It
// is a property of the whole active kernel path, not of a single
// override.
type Mode int

const (
	// ModeAuto is the default: no kernel path is active, or the active
	// one allows falling back to heuristics on a bad override.
	ModeAuto Mode = iota
	// ModeStrict requires every override to be valid; a bad override is
	// an error rather than a silent fallback.
	ModeStrict
)

// Override is a kernel-path-supplied variant choice for one (operation,
// section) pair.
type Override struct {
	Variant string
	// TierHint optionally names a tier the kernel path wants honored.
	// Only Attention consults this, and only in ModeStrict — see
	// attention.go for why auto mode ignores it.
	TierHint string
}

// UnsupportedOverrideError reports an override that failed validation
// under ModeStrict.
type UnsupportedOverrideError struct {
	Operation string
	Variant   string
	Reason    string
}

func (e *UnsupportedOverrideError) Error() string {
	return fmt.Sprintf("selector: %s: override variant %q rejected: %s", e.Operation, e.Variant, e.Reason)
}

// resolveOverride implements override validation generically: look up the
// override's variant, check its required features against cap, and
// return it if valid. dtypeOK additionally checks operation-specific
// dtype/phase constraints (e.g. "_f16kv suffix iff KV cache is f16");
// pass a func that always returns "" when there is nothing op-specific to
// check.
//
// ok=false with err=nil means "no override supplied, proceed to
// heuristics." ok=false with err!=nil means ModeStrict rejected a bad
// override. ok=false, err=nil in ModeAuto after a failed validation means
// "fell back to heuristics, already logged."
func resolveOverride(reg *registry.Registry, cap llmkernel.Capability, mode Mode, operation string, override *Override, dtypeOK func(registry.Variant) string) (registry.Key, bool, error) {
	if override == nil || override.Variant == "" {
		return registry.Key{}, false, nil
	}
	v, found := reg.Lookup(operation, override.Variant)
	reason := ""
	switch {
	case !found:
		reason = "not present in registry"
	default:
		if missing := cap.MissingFeatures(v.Requires); len(missing) > 0 {
			reason = fmt.Sprintf("missing required features %v", missing)
		} else if msg := dtypeOK(v); msg != "" {
			reason = msg
		}
	}
	if reason == "" {
		return v.Key(), true, nil
	}
	if mode == ModeStrict {
		return registry.Key{}, false, &UnsupportedOverrideError{Operation: operation, Variant: override.Variant, Reason: reason}
	}
	llmkernel.Logger().Warn("selector: kernel path override rejected, falling back to heuristic",
		"operation", operation, "variant", override.Variant, "reason", reason)
	return registry.Key{}, false, nil
}

func noExtraCheck(registry.Variant) string { return "" }

// f16Suffix returns "_f16" when wantF16 is true, else "". Shared by every
// selector that picks a base variant name and then flips an _f16 suffix.
func f16Suffix(wantF16 bool) string {
	if wantF16 {
		return "_f16"
	}
	return ""
}
