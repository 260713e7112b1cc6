// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package registry

// NewStatic returns the registry pre-populated with this core's built-in
// kernel variants. The static in-code table is authoritative at runtime;
// a hot-loaded JSON registry (see hotload.go) may be merged in ahead of
// it for profile-driven deployments, but NewStatic's entries always win
// on key collision when merged last.
//
// Shader file paths are this package's sole responsibility to know
// about — no other package in this module names a .wgsl file directly.
func NewStatic() *Registry {
	r := New()
	registerMatmul(r)
	registerAttention(r)
	registerRMSNorm(r)
	registerSoftmax(r)
	registerActivation(r)
	registerGather(r)
	registerResidual(r)
	registerBiasAdd(r)
	registerRope(r)
	registerDequant(r)
	registerMoE(r)
	registerSample(r)
	registerCast(r)
	return r
}

func registerMatmul(r *Registry) {
	const op = "matmul"
	// Fused q4k variants: dequantize-and-multiply in one shader, gated on
	// subgroup support.
	r.MustRegister(Variant{Operation: op, Variant: "q4_fused_multicol",
		ShaderFile: "matmul_q4_fused_multicol.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{64, 1, 1}, Requires: []string{"subgroups"},
		Metadata: map[string]any{"colsPerWg": 4, "outputBinding": 3}})
	r.MustRegister(Variant{Operation: op, Variant: "q4_fused_multicol_f16",
		ShaderFile: "matmul_q4_fused_multicol_f16.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{64, 1, 1}, Requires: []string{"subgroups", "f16"},
		OutputDType: "f16", Metadata: map[string]any{"colsPerWg": 4, "outputBinding": 4}})
	r.MustRegister(Variant{Operation: op, Variant: "q4_fused_batched",
		ShaderFile: "matmul_q4_fused_batched.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{32, 4, 1}, Requires: []string{"subgroups"},
		Metadata: map[string]any{"tileM": 4, "outputBinding": 3}})
	r.MustRegister(Variant{Operation: op, Variant: "q4_fused_batched_f16",
		ShaderFile: "matmul_q4_fused_batched_f16.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{32, 4, 1}, Requires: []string{"subgroups", "f16"},
		OutputDType: "f16", Metadata: map[string]any{"tileM": 4, "outputBinding": 4}})

	// Generic (non-fused) tiled variants, operating on f32-materialized
	// shapes (quantized weights reduced to f32 for shape purposes).
	r.MustRegister(Variant{Operation: op, Variant: "f16",
		ShaderFile: "matmul_f16.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{16, 16, 1}, Requires: []string{"f16"}, OutputDType: "f16"})
	r.MustRegister(Variant{Operation: op, Variant: "f16_vec4",
		ShaderFile: "matmul_f16_vec4.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{16, 16, 1}, Requires: []string{"f16"}, OutputDType: "f16",
		Metadata: map[string]any{"colsPerThread": 4}})
	r.MustRegister(Variant{Operation: op, Variant: "f16w_f32a",
		ShaderFile: "matmul_f16w_f32a.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{16, 16, 1}, Requires: []string{"f16"}, OutputDType: "f32"})
	r.MustRegister(Variant{Operation: op, Variant: "f32",
		ShaderFile: "matmul_f32.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{16, 16, 1}, OutputDType: "f32"})

	// M=1 GEMV special case (GLOSSARY: GEMV).
	r.MustRegister(Variant{Operation: op, Variant: "gemv_subgroup_multicol",
		ShaderFile: "gemv_subgroup_multicol.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{64, 1, 1}, Requires: []string{"subgroups"},
		Metadata: map[string]any{"colsPerWg": 8}})
	r.MustRegister(Variant{Operation: op, Variant: "gemv_subgroup",
		ShaderFile: "gemv_subgroup.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{64, 1, 1}, Requires: []string{"subgroups"}})
	r.MustRegister(Variant{Operation: op, Variant: "gemv",
		ShaderFile: "gemv.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{64, 1, 1}})
}

func registerAttention(r *Registry) {
	const op = "attention"
	r.MustRegister(Variant{Operation: op, Variant: "prefill_tiled_large",
		ShaderFile: "attention_tiled_large.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{64, 1, 1}, Metadata: map[string]any{"tier": "tiled_large", "minSharedBytes": 48 * 1024}})
	r.MustRegister(Variant{Operation: op, Variant: "prefill_tiled_small",
		ShaderFile: "attention_tiled_small.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{32, 1, 1}, Metadata: map[string]any{"tier": "tiled_small"}})
	r.MustRegister(Variant{Operation: op, Variant: "prefill_streaming",
		ShaderFile: "attention_streaming.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{1, 1, 1}, Metadata: map[string]any{"tier": "streaming"}})
	r.MustRegister(Variant{Operation: op, Variant: "decode_subgroup",
		ShaderFile: "attention_decode_subgroup.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{32, 1, 1}, Requires: []string{"subgroups"},
		Metadata: map[string]any{"tier": "subgroup", "maxKVLen": 2048}})
	r.MustRegister(Variant{Operation: op, Variant: "decode_chunked_f16kv",
		ShaderFile: "attention_decode_chunked_f16kv.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{32, 1, 1}, Requires: []string{"f16"},
		Metadata: map[string]any{"tier": "tiled_small", "maxKVLen": 2048}})
	r.MustRegister(Variant{Operation: op, Variant: "decode_streaming_f16kv",
		ShaderFile: "attention_decode_streaming_f16kv.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{1, 1, 1}, Requires: []string{"f16"},
		Metadata: map[string]any{"tier": "streaming"}})
	r.MustRegister(Variant{Operation: op, Variant: "decode_streaming",
		ShaderFile: "attention_decode_streaming.wgsl", EntryPoint: "main",
		WorkgroupSize: [3]uint32{1, 1, 1}, Metadata: map[string]any{"tier": "streaming"}})
}

func registerRMSNorm(r *Registry) {
	const op = "rmsnorm"
	for _, v := range []struct{ name, shader string; req []string }{
		{"residual", "rmsnorm_residual.wgsl", nil},
		{"residual_f16", "rmsnorm_residual_f16.wgsl", []string{"f16"}},
		{"subgroup", "rmsnorm_subgroup.wgsl", []string{"subgroups"}},
		{"subgroup_f16", "rmsnorm_subgroup_f16.wgsl", []string{"subgroups", "f16"}},
		{"small", "rmsnorm_small.wgsl", nil},
		{"small_f16", "rmsnorm_small_f16.wgsl", []string{"f16"}},
		{"default", "rmsnorm_default.wgsl", nil},
		{"default_f16", "rmsnorm_default_f16.wgsl", []string{"f16"}},
	} {
		r.MustRegister(Variant{Operation: op, Variant: v.name, ShaderFile: v.shader, EntryPoint: "main",
			WorkgroupSize: [3]uint32{256, 1, 1}, Requires: v.req})
	}
}

func registerSoftmax(r *Registry) {
	const op = "softmax"
	for _, v := range []struct{ name, shader string; req []string }{
		{"small", "softmax_small.wgsl", nil},
		{"small_f16", "softmax_small_f16.wgsl", []string{"f16"}},
		{"subgroup", "softmax_subgroup.wgsl", []string{"subgroups"}},
		{"subgroup_f16", "softmax_subgroup_f16.wgsl", []string{"subgroups", "f16"}},
		{"default", "softmax_default.wgsl", nil},
		{"default_f16", "softmax_default_f16.wgsl", []string{"f16"}},
	} {
		r.MustRegister(Variant{Operation: op, Variant: v.name, ShaderFile: v.shader, EntryPoint: "main",
			WorkgroupSize: [3]uint32{256, 1, 1}, Requires: v.req})
	}
}

// registerActivation covers silu and gelu, which share an identical
// base/suffix pattern: pick a base variant, then flip to the _f16 suffix.
func registerActivation(r *Registry) {
	for _, op := range []string{"silu", "gelu"} {
		for _, base := range []string{"plain", "gated", "rowsplit", "vec4"} {
			r.MustRegister(Variant{Operation: op, Variant: base,
				ShaderFile: op + "_" + base + ".wgsl", EntryPoint: "main",
				WorkgroupSize: [3]uint32{256, 1, 1}})
			r.MustRegister(Variant{Operation: op, Variant: base + "_f16",
				ShaderFile: op + "_" + base + "_f16.wgsl", EntryPoint: "main",
				WorkgroupSize: [3]uint32{256, 1, 1}, Requires: []string{"f16"}})
		}
	}
}

func registerGather(r *Registry) {
	const op = "gather"
	for _, base := range []string{"plain", "rowsplit"} {
		r.MustRegister(Variant{Operation: op, Variant: base,
			ShaderFile: "gather_" + base + ".wgsl", EntryPoint: "main",
			WorkgroupSize: [3]uint32{256, 1, 1}})
		r.MustRegister(Variant{Operation: op, Variant: base + "_f16",
			ShaderFile: "gather_" + base + "_f16.wgsl", EntryPoint: "main",
			WorkgroupSize: [3]uint32{256, 1, 1}, Requires: []string{"f16"}})
	}
}

func registerResidual(r *Registry) {
	const op = "residual"
	r.MustRegister(Variant{Operation: op, Variant: "plain", ShaderFile: "residual_plain.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}})
	r.MustRegister(Variant{Operation: op, Variant: "plain_f16", ShaderFile: "residual_plain_f16.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}, Requires: []string{"f16"}})
}

func registerBiasAdd(r *Registry) {
	const op = "bias_add"
	for _, base := range []string{"plain", "vec4"} {
		r.MustRegister(Variant{Operation: op, Variant: base,
			ShaderFile: "bias_add_" + base + ".wgsl", EntryPoint: "main",
			WorkgroupSize: [3]uint32{256, 1, 1}})
		r.MustRegister(Variant{Operation: op, Variant: base + "_f16",
			ShaderFile: "bias_add_" + base + "_f16.wgsl", EntryPoint: "main",
			WorkgroupSize: [3]uint32{256, 1, 1}, Requires: []string{"f16"}})
	}
}

func registerRope(r *Registry) {
	const op = "rope"
	r.MustRegister(Variant{Operation: op, Variant: "default", ShaderFile: "rope_default.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{64, 1, 1}})
	r.MustRegister(Variant{Operation: op, Variant: "default_f16", ShaderFile: "rope_default_f16.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{64, 1, 1}, Requires: []string{"f16"}})
}

func registerDequant(r *Registry) {
	const op = "dequant"
	for _, v := range []struct{ name, shader string; req []string; outDType string }{
		{"subgroup", "dequant_subgroup.wgsl", []string{"subgroups"}, ""},
		{"subgroup_vec4", "dequant_subgroup_vec4.wgsl", []string{"subgroups"}, ""},
		{"subgroup_f16out", "dequant_subgroup_f16out.wgsl", []string{"subgroups", "f16"}, "f16"},
		{"subgroup_vec4_f16out", "dequant_subgroup_vec4_f16out.wgsl", []string{"subgroups", "f16"}, "f16"},
		{"shared", "dequant_shared.wgsl", nil, ""},
		{"shared_vec4", "dequant_shared_vec4.wgsl", nil, ""},
		{"shared_f16out", "dequant_shared_f16out.wgsl", []string{"f16"}, "f16"},
		{"shared_vec4_f16out", "dequant_shared_vec4_f16out.wgsl", []string{"f16"}, "f16"},
	} {
		r.MustRegister(Variant{Operation: op, Variant: v.name, ShaderFile: v.shader, EntryPoint: "main",
			WorkgroupSize: [3]uint32{256, 1, 1}, Requires: v.req, OutputDType: v.outDType})
	}
}

func registerMoE(r *Registry) {
	r.MustRegister(Variant{Operation: "topk", Variant: "default", ShaderFile: "topk_default.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{32, 1, 1}})
	r.MustRegister(Variant{Operation: "scatter_add", Variant: "default", ShaderFile: "scatter_add_default.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}})
}

func registerSample(r *Registry) {
	const op = "sample"
	r.MustRegister(Variant{Operation: op, Variant: "default", ShaderFile: "sample_default.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}})
	r.MustRegister(Variant{Operation: op, Variant: "gpu_argmax", ShaderFile: "sample_argmax.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}, OutputDType: "u32"})
	r.MustRegister(Variant{Operation: op, Variant: "gpu_sample", ShaderFile: "sample_gpu.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}, OutputDType: "u32"})
}

func registerCast(r *Registry) {
	r.MustRegister(Variant{Operation: "bf16_to_f32", Variant: "default", ShaderFile: "bf16_to_f32.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}, OutputDType: "f32"})
	r.MustRegister(Variant{Operation: "bf16_to_f16", Variant: "default", ShaderFile: "bf16_to_f16.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}, Requires: []string{"f16"}, OutputDType: "f16"})
	r.MustRegister(Variant{Operation: "cast", Variant: "f32_to_f16", ShaderFile: "cast_f32_to_f16.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}, Requires: []string{"f16"}, OutputDType: "f16"})
	r.MustRegister(Variant{Operation: "cast", Variant: "f16_to_f32", ShaderFile: "cast_f16_to_f32.wgsl", EntryPoint: "main", WorkgroupSize: [3]uint32{256, 1, 1}, Requires: []string{"f16"}, OutputDType: "f32"})
}
