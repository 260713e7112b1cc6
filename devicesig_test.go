// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package llmkernel_test

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/wgpu"
	"github.com/stretchr/testify/require"
)

func TestDeviceSignatureSanitizes(t *testing.T) {
	sig := llmkernel.DeviceSignature(wgpu.AdapterInfo{
		Vendor:  "NVIDIA Corp.",
		Backend: gputypes.BackendVulkan,
		Name:    "GeForce RTX 4090",
	})
	require.Equal(t, "nvidia_corp_vulkan_geforce_rtx_4090", sig)
}

func TestDeviceSignatureEmptyFieldsBecomeUnknown(t *testing.T) {
	sig := llmkernel.DeviceSignature(wgpu.AdapterInfo{})
	require.Equal(t, "unknown_empty_unknown", sig)
}

func TestDeviceSignatureCollapsesRuns(t *testing.T) {
	sig := llmkernel.DeviceSignature(wgpu.AdapterInfo{
		Vendor:  "Apple  Inc.",
		Backend: gputypes.BackendMetal,
		Name:    "Apple M2 (Max)",
	})
	require.Equal(t, "apple_inc_metal_apple_m2_max", sig)
}
