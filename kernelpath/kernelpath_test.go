// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernelpath_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/llmkernel/kernelpath"
	"github.com/stretchr/testify/require"
)

func TestResolveBuiltinPreset(t *testing.T) {
	r := kernelpath.NewResolver()
	p, err := r.Resolve("q4k-fused")
	require.NoError(t, err)
	require.Equal(t, "q4k-fused", p.ID)
	require.NotEmpty(t, p.Decode.Steps)
}

func TestResolveSemanticAlias(t *testing.T) {
	r := kernelpath.NewResolver()
	aliased, err := r.Resolve("q4k-safe")
	require.NoError(t, err)
	direct, err := r.Resolve("q4k-dequant-f32")
	require.NoError(t, err)
	require.Equal(t, direct.ID, aliased.ID)
}

func TestResolveUnknownIdentifierErrors(t *testing.T) {
	r := kernelpath.NewResolver()
	_, err := r.Resolve("not-a-real-path")
	require.Error(t, err)
}

func TestSetActiveHonorsSourcePriority(t *testing.T) {
	r := kernelpath.NewResolver()
	fused, _ := r.Resolve("q4k-fused")
	f16native, _ := r.Resolve("f16-native")

	require.True(t, r.SetActive(fused, kernelpath.SourceManifest))
	// A lower-priority auto source must not displace a manifest-set path.
	require.False(t, r.SetActive(f16native, kernelpath.SourceAuto))
	active, source, ok := r.Active()
	require.True(t, ok)
	require.Equal(t, "q4k-fused", active.ID)
	require.Equal(t, kernelpath.SourceManifest, source)

	// An equal-or-higher priority source may override.
	require.True(t, r.SetActive(f16native, kernelpath.SourceManifest))
	active, _, _ = r.Active()
	require.Equal(t, "f16-native", active.ID)
}

func TestSourceStrictness(t *testing.T) {
	require.False(t, kernelpath.SourceNone.Strict())
	require.False(t, kernelpath.SourceAuto.Strict())
	require.True(t, kernelpath.SourceRuntime.Strict())
	require.True(t, kernelpath.SourceProfile.Strict())
	require.True(t, kernelpath.SourceManifest.Strict())
}

func TestGetLayerStepsAppliesOverride(t *testing.T) {
	p := kernelpath.Path{
		ID:     "test",
		Decode: kernelpath.Section{Steps: []kernelpath.Step{{Op: "q_proj", Kernel: "matmul", Entry: "f32"}}},
		LayerOverrides: []kernelpath.LayerOverride{
			{Layers: []int{0, 1}, Steps: []kernelpath.Step{{Op: "q_proj", Kernel: "matmul", Entry: "f16"}}},
		},
	}
	overridden := p.GetLayerSteps(0, kernelpath.PhaseDecode)
	require.Equal(t, "f16", overridden[0].Entry)

	normal := p.GetLayerSteps(2, kernelpath.PhaseDecode)
	require.Equal(t, "f32", normal[0].Entry)
}

func TestFindStepForRoleTriesAliasesInOrder(t *testing.T) {
	steps := []kernelpath.Step{{Op: "q_proj", Kernel: "matmul", Entry: "f32"}}
	step, ok := kernelpath.FindStepForRole(steps, "qkv_proj")
	require.True(t, ok, "qkv_proj should fall back to q_proj when no fused step exists")
	require.Equal(t, "q_proj", step.Op)

	_, ok = kernelpath.FindStepForRole(steps, "ffn_up")
	require.False(t, ok)
}

func TestLoadFileJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"id":"custom","name":"Custom","decode":{"steps":[{"op":"q_proj","kernel":"matmul","entry":"f32"}]}}`), 0o644))

	p, err := kernelpath.LoadFile(file)
	require.NoError(t, err)
	require.Equal(t, "custom", p.ID)
	require.Len(t, p.Decode.Steps, 1)
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	content := "id: custom-yaml\nname: Custom YAML\ndecode:\n  steps:\n    - op: q_proj\n      kernel: matmul\n      entry: f32\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	p, err := kernelpath.LoadFile(file)
	require.NoError(t, err)
	require.Equal(t, "custom-yaml", p.ID)
	require.Len(t, p.Decode.Steps, 1)
	require.Equal(t, "f32", p.Decode.Steps[0].Entry)
}

func TestLoadFileMissingIDErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"name":"no id"}`), 0o644))
	_, err := kernelpath.LoadFile(file)
	require.Error(t, err)
}
