// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package tensor_test

import (
	"testing"

	"github.com/gogpu/llmkernel/tensor"
	"github.com/stretchr/testify/require"
)

func TestShapeValidate(t *testing.T) {
	cases := []struct {
		name    string
		shape   tensor.Shape
		wantErr bool
	}{
		{"empty", tensor.Shape{}, true},
		{"zero dim", tensor.Shape{4, 0}, true},
		{"negative dim", tensor.Shape{4, -1}, true},
		{"ok", tensor.Shape{4, 64, 4096}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.shape.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNumElements(t *testing.T) {
	require.Equal(t, int64(64*4096), tensor.Shape{64, 4096}.NumElements())
}

func TestNewRejectsInvalidShape(t *testing.T) {
	_, err := tensor.New(nil, tensor.F32, tensor.Shape{0}, "bad")
	require.Error(t, err)
}

func TestDTypeBytes(t *testing.T) {
	require.Equal(t, uint64(2), tensor.DTypeBytes(tensor.F16))
	require.Equal(t, uint64(2), tensor.DTypeBytes(tensor.BF16))
	require.Equal(t, uint64(4), tensor.DTypeBytes(tensor.F32))
	require.Equal(t, uint64(4), tensor.DTypeBytes(tensor.Q4K))
}

func TestInferOutputDType(t *testing.T) {
	require.Equal(t, tensor.F16, tensor.InferOutputDType(tensor.F16, tensor.F16))
	require.Equal(t, tensor.F32, tensor.InferOutputDType(tensor.F16, tensor.F32))
	require.Equal(t, tensor.F32, tensor.InferOutputDType(tensor.F32, tensor.F32))
}

func TestWithLabelClonesCheaply(t *testing.T) {
	tn := tensor.MustNew(nil, tensor.F32, tensor.Shape{2, 2}, "a")
	tn2 := tn.WithLabel("b")
	require.Equal(t, "a", tn.Label())
	require.Equal(t, "b", tn2.Label())
	require.Equal(t, tn.Shape(), tn2.Shape())
}

func TestQ4KRowBytes(t *testing.T) {
	require.Equal(t, uint64(144), tensor.Q4KRowBytes(1))
	require.Equal(t, uint64(144), tensor.Q4KRowBytes(256))
	require.Equal(t, uint64(288), tensor.Q4KRowBytes(257))
	require.Equal(t, uint32(1), tensor.Q4KBlocksPerRow(256))
	require.Equal(t, uint32(2), tensor.Q4KBlocksPerRow(257))
}

func TestIsQuantized(t *testing.T) {
	require.True(t, tensor.Q4K.IsQuantized())
	require.True(t, tensor.Q6K.IsQuantized())
	require.True(t, tensor.Q8_0.IsQuantized())
	require.False(t, tensor.F32.IsQuantized())
}
