// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func u32At(t *testing.T, b []byte, off int) uint32 {
	t.Helper()
	return binary.LittleEndian.Uint32(b[off : off+4])
}

func f32At(t *testing.T, b []byte, off int) float32 {
	t.Helper()
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
}

func TestMatmulUniformsLayout(t *testing.T) {
	b := MatmulUniforms{M: 1, N: 4096, K: 4096, Alpha: 1.5, Aux0: 16, UniformWorkgroupsX: 512}.Bytes()
	require.Len(t, b, 32)
	require.Equal(t, uint32(1), u32At(t, b, 0))
	require.Equal(t, uint32(4096), u32At(t, b, 4))
	require.Equal(t, uint32(4096), u32At(t, b, 8))
	require.Equal(t, float32(1.5), f32At(t, b, 12))
	require.Equal(t, uint32(16), u32At(t, b, 16))
	require.Equal(t, uint32(512), u32At(t, b, 20))
}

func TestAttentionUniformsLayout(t *testing.T) {
	u := AttentionUniforms{
		NumHeads: 32, NumKVHeads: 8, HeadDim: 128, KVLen: 2048, SeqLen: 1,
		Scale: 0.088, Causal: 1, StartPos: 2047, AttnSoftcap: 50, SlidingWindow: 4096, KVLenSource: 1,
	}
	b := u.Bytes()
	require.Len(t, b, 48)
	require.Equal(t, uint32(32), u32At(t, b, 0))
	require.Equal(t, uint32(8), u32At(t, b, 4))
	require.Equal(t, uint32(128), u32At(t, b, 8))
	require.Equal(t, uint32(2048), u32At(t, b, 12))
	require.Equal(t, uint32(1), u32At(t, b, 16))
	require.Equal(t, float32(0.088), f32At(t, b, 20))
	require.Equal(t, uint32(1), u32At(t, b, 24))
	require.Equal(t, uint32(2047), u32At(t, b, 28))
	require.Equal(t, float32(50), f32At(t, b, 32))
	require.Equal(t, uint32(4096), u32At(t, b, 36))
	require.Equal(t, uint32(1), u32At(t, b, 40))
}

func TestRMSNormUniformsLayout(t *testing.T) {
	b := RMSNormUniforms{HiddenSize: 4096, BatchSize: 2, Eps: 1e-5, HasResidual: 1}.Bytes()
	require.Len(t, b, 16)
	require.Equal(t, uint32(4096), u32At(t, b, 0))
	require.Equal(t, uint32(2), u32At(t, b, 4))
	require.Equal(t, float32(1e-5), f32At(t, b, 8))
	require.Equal(t, uint32(1), u32At(t, b, 12))
}

func TestSoftmaxUniformsLayout(t *testing.T) {
	b := SoftmaxUniforms{InnerSize: 32000, OuterSize: 1, Temperature: 0.7}.Bytes()
	require.Len(t, b, 16)
	require.Equal(t, uint32(32000), u32At(t, b, 0))
	require.Equal(t, uint32(1), u32At(t, b, 4))
	require.Equal(t, float32(0.7), f32At(t, b, 8))
	require.Equal(t, uint32(0), u32At(t, b, 12)) // _pad
}

func TestRopeUniformsLayout(t *testing.T) {
	b := RopeUniforms{SeqLen: 16, NumHeads: 4, HeadDim: 64, StartPos: 8, RopeTheta: 10000, Scale: 1}.Bytes()
	require.Len(t, b, 32)
	require.Equal(t, uint32(16), u32At(t, b, 0))
	require.Equal(t, uint32(4), u32At(t, b, 4))
	require.Equal(t, uint32(64), u32At(t, b, 8))
	require.Equal(t, uint32(8), u32At(t, b, 12))
	require.Equal(t, float32(10000), f32At(t, b, 16))
	require.Equal(t, float32(1), f32At(t, b, 20))
	require.Equal(t, uint32(0), u32At(t, b, 24)) // _pad0
	require.Equal(t, uint32(0), u32At(t, b, 28)) // _pad1
}

func TestSampleUniformsLayout(t *testing.T) {
	b := SampleUniforms{VocabSize: 32000, TopK: 40, Temperature: 0.8, RandomValue: 0.5, PadTokenID: 2, LogitSoftcap: 30}.Bytes()
	require.Len(t, b, 32)
	require.Equal(t, uint32(32000), u32At(t, b, 0))
	require.Equal(t, uint32(40), u32At(t, b, 4))
	require.Equal(t, float32(0.8), f32At(t, b, 8))
	require.Equal(t, float32(0.5), f32At(t, b, 12))
	require.Equal(t, uint32(2), u32At(t, b, 16))
	require.Equal(t, float32(30), f32At(t, b, 20))
}

func TestSmallUniformsPaddedTo16(t *testing.T) {
	require.Len(t, SizeUniforms{Size: 11008}.Bytes(), 16)
	require.Len(t, NumElementsUniforms{NumElements: 1024}.Bytes(), 16)
	require.Len(t, GatherUniforms{NumTokens: 1, HiddenSize: 4096, VocabSize: 32000, Transpose: 1}.Bytes(), 16)
	require.Len(t, TopKUniforms{NumTokens: 4, NumExperts: 8, TopK: 2, Normalize: 1}.Bytes(), 16)
	require.Len(t, ScatterAddUniforms{NumTokens: 4, HiddenSize: 4096, TopK: 2, NumExperts: 8}.Bytes(), 16)
}

func TestUniformBytesDeterministic(t *testing.T) {
	a := MatmulUniforms{M: 3, N: 5, K: 7, Alpha: 1}.Bytes()
	b := MatmulUniforms{M: 3, N: 5, K: 7, Alpha: 1}.Bytes()
	require.Equal(t, a, b)
}
