// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/llmkernel/registry"
	"github.com/stretchr/testify/require"
)

func applePlatform() registry.Platform {
	return registry.Platform{
		ID:        "apple-m-series",
		Name:      "Apple M-series",
		Detection: registry.PlatformDetection{Vendor: "apple", Architecture: "metal"},
		KernelOverrides: map[string]string{
			"matmul": "gemv_subgroup_multicol",
		},
	}
}

func genericPlatform() registry.Platform {
	return registry.Platform{ID: "generic", Name: "Generic", IsGeneric: true}
}

func TestMatchPlatformFirstNonGenericWins(t *testing.T) {
	platforms := []registry.Platform{
		genericPlatform(),
		applePlatform(),
		{ID: "apple-broad", Detection: registry.PlatformDetection{Vendor: "apple"}},
	}
	p, ok := registry.MatchPlatform(platforms, registry.AdapterStrings{
		Vendor: "Apple Inc.", Architecture: "Metal 3", Device: "Apple M2 Max",
	})
	require.True(t, ok)
	require.Equal(t, "apple-m-series", p.ID)
}

func TestMatchPlatformFallsBackToGeneric(t *testing.T) {
	platforms := []registry.Platform{applePlatform(), genericPlatform()}
	p, ok := registry.MatchPlatform(platforms, registry.AdapterStrings{
		Vendor: "NVIDIA", Architecture: "Ada", Device: "RTX 4090",
	})
	require.True(t, ok)
	require.Equal(t, "generic", p.ID)
}

func TestMatchPlatformNoGenericNoMatch(t *testing.T) {
	_, ok := registry.MatchPlatform([]registry.Platform{applePlatform()}, registry.AdapterStrings{Vendor: "intel"})
	require.False(t, ok)
}

func TestMatchesIsCaseInsensitiveSubstring(t *testing.T) {
	p := registry.Platform{
		ID:        "nvidia",
		Detection: registry.PlatformDetection{Device: "rtx"},
	}
	require.True(t, p.Matches(registry.AdapterStrings{Device: "NVIDIA GeForce RTX 4090"}))
	require.False(t, p.Matches(registry.AdapterStrings{Device: "Radeon RX 7900"}))
}

func TestEmptyDetectionNonGenericNeverMatches(t *testing.T) {
	p := registry.Platform{ID: "oops"}
	require.False(t, p.Matches(registry.AdapterStrings{Vendor: "anything"}))
}

func TestLoadPlatformJSONRoundTrips(t *testing.T) {
	doc := []byte(`{
		"id": "adreno",
		"name": "Qualcomm Adreno",
		"detection": {"vendor": "qualcomm"},
		"kernelOverrides": {"attention": "decode_streaming"},
		"memoryHints": {"maxPooledBytes": 16777216}
	}`)
	p, err := registry.LoadPlatformJSON(doc)
	require.NoError(t, err)
	require.Equal(t, "adreno", p.ID)
	require.Equal(t, "decode_streaming", p.KernelOverrides["attention"])
	require.Equal(t, uint64(16777216), p.MemoryHints["maxPooledBytes"])
}

func TestLoadPlatformJSONRejectsEmptyDetection(t *testing.T) {
	_, err := registry.LoadPlatformJSON([]byte(`{"id": "bad", "name": "Bad"}`))
	require.Error(t, err)
}

func TestLoadPlatformFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "platform.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: mali\nname: ARM Mali\ndetection:\n  vendor: arm\n"), 0o644))
	p, err := registry.LoadPlatformFile(path)
	require.NoError(t, err)
	require.Equal(t, "mali", p.ID)
	require.True(t, p.Matches(registry.AdapterStrings{Vendor: "ARM Ltd."}))
}
