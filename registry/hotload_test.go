// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package registry_test

import (
	"testing"

	"github.com/gogpu/llmkernel/registry"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "variants": [
    {"operation": "matmul", "variant": "custom_f32", "shaderFile": "custom.wgsl", "entryPoint": "main",
     "workgroupSize": [16, 16, 1], "requires": ["f16"], "metadata": {"tileM": 2}}
  ]
}`

const sampleYAML = `
variants:
  - operation: matmul
    variant: custom_f32
    shaderFile: custom.wgsl
    entryPoint: main
    workgroupSize: [16, 16, 1]
    requires: [f16]
    metadata:
      tileM: 2
`

func TestLoadJSONRoundTrips(t *testing.T) {
	r, err := registry.LoadJSON([]byte(sampleJSON))
	require.NoError(t, err)
	v, ok := r.Lookup("matmul", "custom_f32")
	require.True(t, ok)
	require.Equal(t, "custom.wgsl", v.ShaderFile)
	require.Equal(t, []string{"f16"}, v.Requires)
	n, ok := v.MetaInt("tileM")
	require.True(t, ok)
	require.Equal(t, 2, n)
}

func TestLoadYAMLMatchesJSON(t *testing.T) {
	r, err := registry.LoadYAML([]byte(sampleYAML))
	require.NoError(t, err)
	v, ok := r.Lookup("matmul", "custom_f32")
	require.True(t, ok)
	require.Equal(t, "custom.wgsl", v.ShaderFile)
}

func TestLoadJSONRejectsIncompleteEntry(t *testing.T) {
	_, err := registry.LoadJSON([]byte(`{"variants":[{"operation":"matmul"}]}`))
	require.Error(t, err)
}

func TestOverlayMergedOverStaticLosesToStatic(t *testing.T) {
	overlay, err := registry.LoadJSON([]byte(`{
		"variants": [
			{"operation": "matmul", "variant": "f32", "shaderFile": "overlay_wins_if_merged_last.wgsl", "entryPoint": "main"}
		]
	}`))
	require.NoError(t, err)

	effective := registry.New()
	effective.Merge(overlay)
	effective.Merge(registry.NewStatic())

	v, ok := effective.Lookup("matmul", "f32")
	require.True(t, ok)
	require.Equal(t, "matmul_f32.wgsl", v.ShaderFile)
}

func TestMarshalJSONProducesLoadableDocument(t *testing.T) {
	r := registry.New()
	r.MustRegister(registry.Variant{Operation: "matmul", Variant: "f32", ShaderFile: "matmul_f32.wgsl", EntryPoint: "main"})
	data, err := r.MarshalJSON()
	require.NoError(t, err)

	reloaded, err := registry.LoadJSON(data)
	require.NoError(t, err)
	v, ok := reloaded.Lookup("matmul", "f32")
	require.True(t, ok)
	require.Equal(t, "matmul_f32.wgsl", v.ShaderFile)
}
