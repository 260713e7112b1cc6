// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"encoding/binary"
	"math"
)

// The structs below encode the little-endian, 16-byte-aligned uniform
// layouts the shaders consume. Each layout gets a fixed Go struct and a
// Bytes() method instead of an ad hoc byte-writer closure at every call
// site; uniform.HashBytes then hashes the result deterministically.

func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:off+4], v) }
func putF32(b []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(b[off:off+4], math.Float32bits(v))
}

// MatmulUniforms is `u32 M, u32 N, u32 K, f32 alpha, u32 aux0, u32
// uniformWorkgroupsX`. aux0 means numBlocksPerRow for q4k-fused
// variants, else the transposeB flag.
type MatmulUniforms struct {
	M, N, K            uint32
	Alpha              float32
	Aux0               uint32
	UniformWorkgroupsX uint32
}

func (u MatmulUniforms) Bytes() []byte {
	b := make([]byte, 32) // 6 x 4B fields rounded to 16B alignment
	putU32(b, 0, u.M)
	putU32(b, 4, u.N)
	putU32(b, 8, u.K)
	putF32(b, 12, u.Alpha)
	putU32(b, 16, u.Aux0)
	putU32(b, 20, u.UniformWorkgroupsX)
	return b
}

// AttentionUniforms is the 11-field attention layout.
type AttentionUniforms struct {
	NumHeads, NumKVHeads, HeadDim, KVLen, SeqLen uint32
	Scale                                        float32
	Causal                                       uint32
	StartPos                                     uint32
	AttnSoftcap                                  float32
	SlidingWindow                                uint32
	KVLenSource                                  uint32
}

func (u AttentionUniforms) Bytes() []byte {
	b := make([]byte, 48) // 11 x 4B fields rounded to 16B alignment
	putU32(b, 0, u.NumHeads)
	putU32(b, 4, u.NumKVHeads)
	putU32(b, 8, u.HeadDim)
	putU32(b, 12, u.KVLen)
	putU32(b, 16, u.SeqLen)
	putF32(b, 20, u.Scale)
	putU32(b, 24, u.Causal)
	putU32(b, 28, u.StartPos)
	putF32(b, 32, u.AttnSoftcap)
	putU32(b, 36, u.SlidingWindow)
	putU32(b, 40, u.KVLenSource)
	return b
}

// RMSNormUniforms is `u32 hiddenSize, u32 batchSize, f32 eps, u32
// hasResidual`.
type RMSNormUniforms struct {
	HiddenSize, BatchSize uint32
	Eps                   float32
	HasResidual           uint32
}

func (u RMSNormUniforms) Bytes() []byte {
	b := make([]byte, 16)
	putU32(b, 0, u.HiddenSize)
	putU32(b, 4, u.BatchSize)
	putF32(b, 8, u.Eps)
	putU32(b, 12, boolU32(u.HasResidual != 0))
	return b
}

// SoftmaxUniforms is `u32 innerSize, u32 outerSize, f32 temperature, u32
// _pad`.
type SoftmaxUniforms struct {
	InnerSize, OuterSize uint32
	Temperature          float32
}

func (u SoftmaxUniforms) Bytes() []byte {
	b := make([]byte, 16)
	putU32(b, 0, u.InnerSize)
	putU32(b, 4, u.OuterSize)
	putF32(b, 8, u.Temperature)
	return b
}

// RopeUniforms is the 8-field rope layout.
type RopeUniforms struct {
	SeqLen, NumHeads, HeadDim, StartPos uint32
	RopeTheta, Scale                    float32
}

func (u RopeUniforms) Bytes() []byte {
	b := make([]byte, 32)
	putU32(b, 0, u.SeqLen)
	putU32(b, 4, u.NumHeads)
	putU32(b, 8, u.HeadDim)
	putU32(b, 12, u.StartPos)
	putF32(b, 16, u.RopeTheta)
	putF32(b, 20, u.Scale)
	return b
}

// SizeUniforms is the shared `u32 size` layout used by silu/gelu and
// residual.
type SizeUniforms struct {
	Size uint32
}

func (u SizeUniforms) Bytes() []byte {
	b := make([]byte, 16)
	putU32(b, 0, u.Size)
	return b
}

// GatherUniforms is `u32 numTokens, u32 hiddenSize, u32 vocabSize, u32
// transpose`.
type GatherUniforms struct {
	NumTokens, HiddenSize, VocabSize uint32
	Transpose                        uint32
}

func (u GatherUniforms) Bytes() []byte {
	b := make([]byte, 16)
	putU32(b, 0, u.NumTokens)
	putU32(b, 4, u.HiddenSize)
	putU32(b, 8, u.VocabSize)
	putU32(b, 12, boolU32(u.Transpose != 0))
	return b
}

// TopKUniforms is `u32 numTokens, u32 numExperts, u32 topK, u32
// normalize`.
type TopKUniforms struct {
	NumTokens, NumExperts, TopK uint32
	Normalize                   uint32
}

func (u TopKUniforms) Bytes() []byte {
	b := make([]byte, 16)
	putU32(b, 0, u.NumTokens)
	putU32(b, 4, u.NumExperts)
	putU32(b, 8, u.TopK)
	putU32(b, 12, boolU32(u.Normalize != 0))
	return b
}

// ScatterAddUniforms is `u32 numTokens, u32 hiddenSize, u32 topK, u32
// numExperts`.
type ScatterAddUniforms struct {
	NumTokens, HiddenSize, TopK, NumExperts uint32
}

func (u ScatterAddUniforms) Bytes() []byte {
	b := make([]byte, 16)
	putU32(b, 0, u.NumTokens)
	putU32(b, 4, u.HiddenSize)
	putU32(b, 8, u.TopK)
	putU32(b, 12, u.NumExperts)
	return b
}

// SampleUniforms is the 6-field sample layout.
type SampleUniforms struct {
	VocabSize, TopK          uint32
	Temperature, RandomValue float32
	PadTokenID               uint32
	LogitSoftcap             float32
}

func (u SampleUniforms) Bytes() []byte {
	b := make([]byte, 32)
	putU32(b, 0, u.VocabSize)
	putU32(b, 4, u.TopK)
	putF32(b, 8, u.Temperature)
	putF32(b, 12, u.RandomValue)
	putU32(b, 16, u.PadTokenID)
	putF32(b, 20, u.LogitSoftcap)
	return b
}

// NumElementsUniforms is the shared `u32 numElements` layout for
// bf16_to_f32/bf16_to_f16/cast.
type NumElementsUniforms struct {
	NumElements uint32
}

func (u NumElementsUniforms) Bytes() []byte {
	b := make([]byte, 16)
	putU32(b, 0, u.NumElements)
	return b
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
