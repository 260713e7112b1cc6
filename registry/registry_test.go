// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package registry_test

import (
	"testing"

	"github.com/gogpu/llmkernel/registry"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsIncompleteVariant(t *testing.T) {
	r := registry.New()
	require.Error(t, r.Register(registry.Variant{Operation: "matmul", Variant: "f32"}))
	require.Error(t, r.Register(registry.Variant{Operation: "", Variant: "f32", ShaderFile: "x.wgsl", EntryPoint: "main"}))
}

func TestMustRegisterPanicsOnInvalid(t *testing.T) {
	r := registry.New()
	require.Panics(t, func() {
		r.MustRegister(registry.Variant{Operation: "matmul"})
	})
}

func TestLookupRoundTrips(t *testing.T) {
	r := registry.New()
	v := registry.Variant{Operation: "matmul", Variant: "f32", ShaderFile: "matmul_f32.wgsl", EntryPoint: "main"}
	r.MustRegister(v)

	got, ok := r.Lookup("matmul", "f32")
	require.True(t, ok)
	require.Equal(t, v, got)

	_, ok = r.Lookup("matmul", "missing")
	require.False(t, ok)
}

func TestVariantsPreservesInsertionOrder(t *testing.T) {
	r := registry.New()
	r.MustRegister(registry.Variant{Operation: "softmax", Variant: "small", ShaderFile: "a.wgsl", EntryPoint: "main"})
	r.MustRegister(registry.Variant{Operation: "softmax", Variant: "default", ShaderFile: "b.wgsl", EntryPoint: "main"})
	require.Equal(t, []string{"small", "default"}, r.Variants("softmax"))
}

func TestRegisterOverwritesOnSameKey(t *testing.T) {
	r := registry.New()
	r.MustRegister(registry.Variant{Operation: "softmax", Variant: "small", ShaderFile: "a.wgsl", EntryPoint: "main"})
	r.MustRegister(registry.Variant{Operation: "softmax", Variant: "small", ShaderFile: "b.wgsl", EntryPoint: "main"})
	require.Equal(t, []string{"small"}, r.Variants("softmax"))
	got, _ := r.Lookup("softmax", "small")
	require.Equal(t, "b.wgsl", got.ShaderFile)
}

func TestMergeOverwritesOnCollision(t *testing.T) {
	base := registry.New()
	base.MustRegister(registry.Variant{Operation: "matmul", Variant: "f32", ShaderFile: "a.wgsl", EntryPoint: "main"})

	overlay := registry.New()
	overlay.MustRegister(registry.Variant{Operation: "matmul", Variant: "f32", ShaderFile: "b.wgsl", EntryPoint: "main"})
	overlay.MustRegister(registry.Variant{Operation: "matmul", Variant: "f16", ShaderFile: "c.wgsl", EntryPoint: "main"})

	base.Merge(overlay)
	got, _ := base.Lookup("matmul", "f32")
	require.Equal(t, "b.wgsl", got.ShaderFile)
	require.ElementsMatch(t, []string{"f32", "f16"}, base.Variants("matmul"))
}

func TestMetaIntHandlesNumericKinds(t *testing.T) {
	v := registry.Variant{Metadata: map[string]any{
		"a": 4, "b": int32(5), "c": int64(6), "d": float64(7), "e": "nope",
	}}
	for key, want := range map[string]int{"a": 4, "b": 5, "c": 6, "d": 7} {
		got, ok := v.MetaInt(key)
		require.True(t, ok, key)
		require.Equal(t, want, got, key)
	}
	_, ok := v.MetaInt("e")
	require.False(t, ok)
	_, ok = v.MetaInt("missing")
	require.False(t, ok)
	require.Equal(t, 99, v.MetaIntOr("missing", 99))
}

func TestNewStaticCoversEveryOperation(t *testing.T) {
	r := registry.NewStatic()
	for _, op := range []string{
		"matmul", "attention", "rmsnorm", "softmax", "silu", "gelu",
		"gather", "residual", "bias_add", "rope", "dequant",
		"topk", "scatter_add", "sample", "bf16_to_f32", "bf16_to_f16", "cast",
	} {
		variants := r.Variants(op)
		require.NotEmptyf(t, variants, "operation %s has no registered variants", op)
		for _, name := range variants {
			v, ok := r.Lookup(op, name)
			require.True(t, ok)
			require.NotEmpty(t, v.ShaderFile)
			require.NotEmpty(t, v.EntryPoint)
		}
	}
}

func TestNewStaticGatesSubgroupVariantsOnFeature(t *testing.T) {
	r := registry.NewStatic()
	v, ok := r.Lookup("matmul", "gemv_subgroup")
	require.True(t, ok)
	require.Contains(t, v.Requires, "subgroups")
}

func TestDescribeListsEveryVariant(t *testing.T) {
	r := registry.NewStatic()
	out := r.Describe("softmax")
	for _, name := range r.Variants("softmax") {
		require.Contains(t, out, name)
	}
}
