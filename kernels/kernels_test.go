// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"testing"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/tensor"
	"github.com/stretchr/testify/require"
)

func TestWrapDispatch1DBoundary(t *testing.T) {
	x, y := wrapDispatch1D(MaxWorkgroups)
	require.Equal(t, MaxWorkgroups, x)
	require.Equal(t, uint32(1), y)

	x, y = wrapDispatch1D(MaxWorkgroups + 1)
	require.Equal(t, MaxWorkgroups, x)
	require.Equal(t, uint32(2), y)

	x, y = wrapDispatch1D(1)
	require.Equal(t, uint32(1), x)
	require.Equal(t, uint32(1), y)
}

func TestCheckDispatchLimit(t *testing.T) {
	require.NoError(t, checkDispatchLimit("matmul", [3]uint32{MaxWorkgroups, 1, 1}, ""))

	err := checkDispatchLimit("attention", [3]uint32{MaxWorkgroups + 1, 1, 1}, "reduce prompt")
	require.Error(t, err)
	require.True(t, llmkernel.IsExceedsDispatchLimit(err))
	require.Contains(t, err.Error(), "reduce prompt")
}

func TestValidateDimsRejectsNonPositive(t *testing.T) {
	err := validateDims("matmul", map[string]int64{"M": 0})
	require.True(t, llmkernel.IsInvalidDimensions(err))
	err = validateDims("matmul", map[string]int64{"K": -3})
	require.True(t, llmkernel.IsInvalidDimensions(err))
	require.NoError(t, validateDims("matmul", map[string]int64{"M": 1, "K": 64, "N": 4096}))
}

func TestValidateOffsetAlignment(t *testing.T) {
	require.NoError(t, validateOffset("gather", 0))
	require.NoError(t, validateOffset("gather", 512))
	err := validateOffset("gather", 100)
	require.True(t, llmkernel.IsInvalidOffset(err))
	err = validateOffset("gather", -256)
	require.True(t, llmkernel.IsInvalidOffset(err))
}

func TestQ4KRowBytes(t *testing.T) {
	// ceil(K/256) * 144: one super-block for K<=256.
	require.Equal(t, uint64(144), q4kRowBytes(1))
	require.Equal(t, uint64(144), q4kRowBytes(256))
	require.Equal(t, uint64(288), q4kRowBytes(257))
	require.Equal(t, uint64(16*144), q4kRowBytes(4096))
}

func TestMatmulWorkgroupsGeometry(t *testing.T) {
	reg := registry.NewStatic()

	// GEMV-multicol: workgroups.x = ceil(N / colsPerWg).
	v, ok := reg.Lookup("matmul", "gemv_subgroup_multicol")
	require.True(t, ok)
	x, y := matmulWorkgroups("gemv_subgroup_multicol", v, MatmulRequest{M: 1, K: 4096, N: 4096})
	require.Equal(t, uint32(512), x) // 4096 / 8 colsPerWg
	require.Equal(t, uint32(1), y)

	// Fused q4k batched: x = N, y = ceil(M / tileM).
	v, ok = reg.Lookup("matmul", "q4_fused_batched")
	require.True(t, ok)
	x, y = matmulWorkgroups("q4_fused_batched", v, MatmulRequest{M: 9, K: 4096, N: 128})
	require.Equal(t, uint32(128), x)
	require.Equal(t, uint32(3), y) // ceil(9/4)

	// Generic tiled: x = ceil(M/16), y = ceil(N/(16*colsPerThread)).
	v, ok = reg.Lookup("matmul", "f32")
	require.True(t, ok)
	x, y = matmulWorkgroups("f32", v, MatmulRequest{M: 64, K: 64, N: 64})
	require.Equal(t, uint32(4), x)
	require.Equal(t, uint32(4), y)
}

func TestMatmulWorkgroupsMulticolWrapsTo2D(t *testing.T) {
	reg := registry.NewStatic()
	v, _ := reg.Lookup("matmul", "gemv_subgroup_multicol")
	// N / colsPerWg = 1<<19 > 65535 must wrap into y.
	x, y := matmulWorkgroups("gemv_subgroup_multicol", v, MatmulRequest{M: 1, K: 64, N: 8 << 19})
	require.Equal(t, MaxWorkgroups, x)
	require.Greater(t, y, uint32(1))
}

func TestAttentionWorkgroupsGeometry(t *testing.T) {
	// tiled_large prefill: ceil(seqLen/64) * numHeads.
	wg := attentionWorkgroups("prefill_tiled_large", AttentionRequest{SeqLen: 128, NumHeads: 4})
	require.Equal(t, [3]uint32{8, 1, 1}, wg)

	// subgroup decode: numHeads.
	wg = attentionWorkgroups("decode_subgroup", AttentionRequest{SeqLen: 1, NumHeads: 32})
	require.Equal(t, [3]uint32{32, 1, 1}, wg)

	// streaming: seqLen * numHeads.
	wg = attentionWorkgroups("prefill_streaming", AttentionRequest{SeqLen: 16, NumHeads: 4})
	require.Equal(t, [3]uint32{64, 1, 1}, wg)
}

func TestRecordMatmulRejectsInvalidDims(t *testing.T) {
	deps := &Deps{Registry: registry.NewStatic()}
	_, err := RecordMatmul(deps, nil, MatmulRequest{M: 0, K: 64, N: 64})
	require.True(t, llmkernel.IsInvalidDimensions(err))
}

func TestRecordAttentionRejectsInvalidDims(t *testing.T) {
	deps := &Deps{Registry: registry.NewStatic()}
	_, err := RecordAttention(deps, nil, AttentionRequest{NumHeads: 4, NumKVHeads: 0, HeadDim: 64})
	require.True(t, llmkernel.IsInvalidDimensions(err))
}

func TestRecordSampleRejectsInvalidVocab(t *testing.T) {
	deps := &Deps{Registry: registry.NewStatic()}
	_, err := RecordSample(deps, nil, SampleRequest{VocabSize: 0})
	require.True(t, llmkernel.IsInvalidDimensions(err))
}

func TestCastKeyRouting(t *testing.T) {
	key, err := castKey(tensor.BF16, tensor.F32)
	require.NoError(t, err)
	require.Equal(t, registry.Key{Operation: "bf16_to_f32", Variant: "default"}, key)

	key, err = castKey(tensor.F32, tensor.F16)
	require.NoError(t, err)
	require.Equal(t, registry.Key{Operation: "cast", Variant: "f32_to_f16"}, key)

	_, err = castKey(tensor.Q4K, tensor.F32)
	require.Error(t, err)
}

func TestIsZeroDispatch(t *testing.T) {
	require.True(t, isZeroDispatch([3]uint32{0, 1, 1}))
	require.True(t, isZeroDispatch([3]uint32{1, 0, 1}))
	require.False(t, isZeroDispatch([3]uint32{1, 1, 1}))
}
