// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package llmkernel

import (
	"strings"

	"github.com/gogpu/wgpu"
)

// DeviceSignature derives the sanitized `<vendor>_<architecture>_<device>`
// fragment that keys persisted tuning results
// (`kernel_tune_<vendor>_<arch>_<device>`) and per-device
// platform-override matching. Adapter-info strings may contain spaces,
// slashes, or mixed case; this is the rule that makes them a safe key
// fragment. This binding's AdapterInfo carries no architecture string,
// so the backend name (Vulkan, Metal, DX12, ...) stands in for it — the
// closest stable analogue, and it keeps tuning results from leaking
// across backends on dual-backend hosts.
func DeviceSignature(info wgpu.AdapterInfo) string {
	return sanitizeKeyFragment(info.Vendor) + "_" + sanitizeKeyFragment(info.Backend.String()) + "_" + sanitizeKeyFragment(info.Name)
}

func sanitizeKeyFragment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	b.Grow(len(s))
	prevUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
