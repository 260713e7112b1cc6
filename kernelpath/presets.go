// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernelpath

// builtinPresets returns the built-in named presets: q4k-fused,
// q4k-dequant-f32, q4k-dequant-f16, f16-native". Each is a minimal but
// complete decode-section plan naming the matmul/attention/norm variants
// that give the preset its name; hosts layer in the rest of a model's
// steps (sampling, MoE routing, etc.) by extending these via
// RegisterPreset or a loaded file.
func builtinPresets() []Path {
	return []Path{
		{
			ID:          "q4k-fused",
			Name:        "Q4_K fused dequant-multiply",
			Description: "Fused Q4_K dequantize-and-multiply matmul; lowest memory traffic, requires subgroups.",
			Decode: Section{Steps: []Step{
				{Op: "q_proj", Kernel: "matmul", Entry: "q4_fused_multicol"},
				{Op: "k_proj", Kernel: "matmul", Entry: "q4_fused_multicol"},
				{Op: "v_proj", Kernel: "matmul", Entry: "q4_fused_multicol"},
				{Op: "o_proj", Kernel: "matmul", Entry: "q4_fused_multicol"},
				{Op: "ffn_up", Kernel: "matmul", Entry: "q4_fused_multicol"},
				{Op: "ffn_gate", Kernel: "matmul", Entry: "q4_fused_multicol"},
				{Op: "ffn_down", Kernel: "matmul", Entry: "q4_fused_multicol"},
				{Op: "attention", Kernel: "attention", Entry: "decode_subgroup"},
				{Op: "norm", Kernel: "rmsnorm", Entry: "subgroup"},
			}},
			Prefill: &Section{Steps: []Step{
				{Op: "q_proj", Kernel: "matmul", Entry: "q4_fused_batched"},
				{Op: "attention", Kernel: "attention", Entry: "prefill_tiled_large"},
				{Op: "norm", Kernel: "rmsnorm", Entry: "subgroup"},
			}},
			Sampling: []Step{
				{Op: "sample", Kernel: "sample", Entry: "gpu_sample"},
			},
		},
		{
			ID:          "q4k-dequant-f32",
			Name:        "Q4_K dequantize-then-f32-matmul",
			Description: "Dequantizes Q4_K weights to f32 before a standard f32 matmul; widest device compatibility, highest memory traffic.",
			Decode: Section{Steps: []Step{
				{Op: "q_proj", Kernel: "matmul", Entry: "f32"},
				{Op: "k_proj", Kernel: "matmul", Entry: "f32"},
				{Op: "v_proj", Kernel: "matmul", Entry: "f32"},
				{Op: "o_proj", Kernel: "matmul", Entry: "f32"},
				{Op: "ffn_up", Kernel: "matmul", Entry: "f32"},
				{Op: "ffn_gate", Kernel: "matmul", Entry: "f32"},
				{Op: "ffn_down", Kernel: "matmul", Entry: "f32"},
				{Op: "dequant", Kernel: "dequant", Entry: "shared"},
				{Op: "attention", Kernel: "attention", Entry: "decode_streaming"},
				{Op: "norm", Kernel: "rmsnorm", Entry: "default"},
			}},
			Sampling: []Step{
				{Op: "sample", Kernel: "sample", Entry: "default"},
			},
		},
		{
			ID:          "q4k-dequant-f16",
			Name:        "Q4_K dequantize-then-f16-matmul",
			Description: "Dequantizes Q4_K weights to f16 before an f16 matmul; halves bandwidth versus the f32 dequant path on f16-capable devices.",
			Decode: Section{Steps: []Step{
				{Op: "q_proj", Kernel: "matmul", Entry: "f16"},
				{Op: "k_proj", Kernel: "matmul", Entry: "f16"},
				{Op: "v_proj", Kernel: "matmul", Entry: "f16"},
				{Op: "o_proj", Kernel: "matmul", Entry: "f16"},
				{Op: "ffn_up", Kernel: "matmul", Entry: "f16"},
				{Op: "ffn_gate", Kernel: "matmul", Entry: "f16"},
				{Op: "ffn_down", Kernel: "matmul", Entry: "f16"},
				{Op: "dequant", Kernel: "dequant", Entry: "shared_f16out"},
				{Op: "attention", Kernel: "attention", Entry: "decode_chunked_f16kv"},
				{Op: "norm", Kernel: "rmsnorm", Entry: "residual_f16"},
			}},
			Sampling: []Step{
				{Op: "sample", Kernel: "sample", Entry: "gpu_argmax"},
			},
		},
		{
			ID:          "f16-native",
			Name:        "Native f16 weights",
			Description: "Weights already stored as f16; no dequantization step.",
			Decode: Section{Steps: []Step{
				{Op: "q_proj", Kernel: "matmul", Entry: "f16_vec4"},
				{Op: "k_proj", Kernel: "matmul", Entry: "f16_vec4"},
				{Op: "v_proj", Kernel: "matmul", Entry: "f16_vec4"},
				{Op: "o_proj", Kernel: "matmul", Entry: "f16_vec4"},
				{Op: "ffn_up", Kernel: "matmul", Entry: "f16_vec4"},
				{Op: "ffn_gate", Kernel: "matmul", Entry: "f16_vec4"},
				{Op: "ffn_down", Kernel: "matmul", Entry: "f16_vec4"},
				{Op: "attention", Kernel: "attention", Entry: "decode_chunked_f16kv"},
				{Op: "norm", Kernel: "rmsnorm", Entry: "residual_f16"},
			}},
			Sampling: []Step{
				{Op: "sample", Kernel: "sample", Entry: "gpu_sample"},
			},
		},
	}
}

// builtinAliases returns the semantic aliases ("q4k-safe,
// q4k-fast, q4k-balanced") mapped onto the concrete presets above: safe
// favors the widest device compatibility, fast favors the least memory
// traffic, balanced sits in the middle.
func builtinAliases() map[string]string {
	return map[string]string{
		"q4k-safe":     "q4k-dequant-f32",
		"q4k-fast":     "q4k-fused",
		"q4k-balanced": "q4k-dequant-f16",
	}
}
