// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package tensor implements the lightweight Tensor/WeightBuffer handle
// a pure value type binding a GPU buffer
// to (dtype, shape, label), cheap to clone because it carries a
// non-owning reference to its buffer.
//
// This is the typed handle that
// replaces maps keyed by opaque GPU handles — metadata always travels
// with the handle, and there is deliberately no way to recover dtype or
// shape from a raw buffer.
package tensor

import (
	"fmt"

	"github.com/gogpu/wgpu"
)

// DType enumerates the on-device dtypes this core dispatches kernels
// over.
type DType int

const (
	F32 DType = iota
	F16
	BF16
	Q4K
	Q6K
	Q8_0
	U32
	I32
)

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case F16:
		return "f16"
	case BF16:
		return "bf16"
	case Q4K:
		return "q4k"
	case Q6K:
		return "q6k"
	case Q8_0:
		return "q8_0"
	case U32:
		return "u32"
	case I32:
		return "i32"
	default:
		return "unknown"
	}
}

// IsQuantized reports whether d is one of the block-quantized dtypes.
func (d DType) IsQuantized() bool {
	switch d {
	case Q4K, Q6K, Q8_0:
		return true
	default:
		return false
	}
}

// DTypeBytes returns the per-element byte width for unquantized dtypes:
// f16 and bf16 are 2 bytes, everything else 4. Quantized dtypes are
// sized in blocks, not per-element; callers
// must use Q4KRowBytes for those.
func DTypeBytes(d DType) uint64 {
	switch d {
	case F16, BF16:
		return 2
	default:
		return 4
	}
}

// InferOutputDType implements the output-dtype inference rule for
// binary operations: f16 iff both operands are f16, else f32.
func InferOutputDType(a, b DType) DType {
	if a == F16 && b == F16 {
		return F16
	}
	return F32
}

// Layout describes a WeightBuffer's memory layout.
type Layout int

const (
	RowMajor Layout = iota
	ColumnMajor
)

func (l Layout) String() string {
	if l == ColumnMajor {
		return "column"
	}
	return "row"
}

// Shape is a frozen, ordered sequence of positive dimension sizes.
type Shape []int64

// Validate checks that the shape is non-empty and every dimension is
// positive.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("tensor: shape must not be empty")
	}
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("tensor: shape dimension %d is not positive: %d", i, dim)
		}
	}
	return nil
}

// NumElements returns the product of all dimensions.
func (s Shape) NumElements() int64 {
	n := int64(1)
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Clone returns an independent copy of the shape (shapes are otherwise
// treated as immutable once a Tensor is constructed).
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

func (s Shape) String() string {
	return fmt.Sprint([]int64(s))
}

// Tensor is a pure value type: a dtype- and shape-tagged, non-owning
// reference to a GPU buffer. A Tensor does not own its
// buffer's lifetime — ownership is a policy of whichever launcher produced
// it (normally: the caller releases the buffer back to the buffer pool).
type Tensor struct {
	buffer *wgpu.Buffer
	dtype  DType
	shape  Shape
	label  string
}

// New constructs a Tensor, validating the shape.
func New(buffer *wgpu.Buffer, dtype DType, shape Shape, label string) (Tensor, error) {
	if err := shape.Validate(); err != nil {
		return Tensor{}, err
	}
	return Tensor{buffer: buffer, dtype: dtype, shape: shape.Clone(), label: label}, nil
}

// MustNew is New but panics on an invalid shape; intended for call sites
// constructing tensors from statically-known shapes (tests, constants).
func MustNew(buffer *wgpu.Buffer, dtype DType, shape Shape, label string) Tensor {
	t, err := New(buffer, dtype, shape, label)
	if err != nil {
		panic(err)
	}
	return t
}

// Buffer returns the underlying GPU buffer. The Tensor retains no claim on
// its lifetime; callers must not assume it outlives a pool release.
func (t Tensor) Buffer() *wgpu.Buffer { return t.buffer }

// DType returns the tensor's element dtype.
func (t Tensor) DType() DType { return t.dtype }

// Shape returns the tensor's shape. The returned slice must be treated as
// read-only; use Shape.Clone if you need to mutate a copy.
func (t Tensor) Shape() Shape { return t.shape }

// Label returns the tensor's debug label.
func (t Tensor) Label() string { return t.label }

// Rank returns the number of dimensions.
func (t Tensor) Rank() int { return len(t.shape) }

// Dim returns the size of dimension i.
func (t Tensor) Dim(i int) int64 { return t.shape[i] }

// NumElements returns the total element count.
func (t Tensor) NumElements() int64 { return t.shape.NumElements() }

// WithLabel returns a copy of t carrying a different debug label. Cheap:
// it clones only the label, sharing the same buffer reference and shape.
func (t Tensor) WithLabel(label string) Tensor {
	t.label = label
	return t
}

// WeightBuffer extends a Tensor with a row/column layout.
// Produced by a (not-in-scope) loader; this core only consumes it.
type WeightBuffer struct {
	Tensor
	Layout Layout
}

// NewWeightBuffer constructs a WeightBuffer with the default row layout
// unless layout is explicitly ColumnMajor.
func NewWeightBuffer(buffer *wgpu.Buffer, dtype DType, shape Shape, label string, layout Layout) (WeightBuffer, error) {
	t, err := New(buffer, dtype, shape, label)
	if err != nil {
		return WeightBuffer{}, err
	}
	return WeightBuffer{Tensor: t, Layout: layout}, nil
}
