// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package llmkernel

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the core's caller/programmer- and environment-class
// failures.
var (
	// ErrDeviceUnavailable is returned when RequestAdapter finds no adapter
	// under any power-preference fallback.
	ErrDeviceUnavailable = errors.New("llmkernel: no GPU adapter available")

	// ErrDeviceLost is returned once the device has observed a device-lost
	// signal; every subsequent call against it fails with this error.
	ErrDeviceLost = errors.New("llmkernel: device lost")

	// ErrReadbackDisallowed is returned by PerfGuard.AllowReadback when
	// AllowGPUReadback is false and StrictMode is true, and by the device
	// queue's ReadBuffer whenever the guard denies a readback.
	ErrReadbackDisallowed = errors.New("llmkernel: GPU readback disallowed by perf guard policy")

	// ErrAlreadySubmitted is returned by recorder.Recorder.Submit when called
	// a second time on the same recorder.
	ErrAlreadySubmitted = errors.New("llmkernel: command recorder already submitted")

	// ErrPassOpen is returned by recorder.Recorder.Submit when a compute pass
	// opened with BeginComputePass has not been ended.
	ErrPassOpen = errors.New("llmkernel: a compute pass is still open on this recorder")

	// ErrEngineReleased names use of an Engine after Release. The methods
	// of runtime.Engine do not check for release and never return it.
	ErrEngineReleased = errors.New("llmkernel: engine released")
)

// DeviceCreationFailedError reports that device creation failed on both the
// feature-requesting attempt and the no-optional-features retry.
type DeviceCreationFailedError struct {
	FirstAttempt error
	RetryAttempt error
}

func (e *DeviceCreationFailedError) Error() string {
	return fmt.Sprintf("llmkernel: device creation failed (first attempt: %v; retry without optional features: %v)",
		e.FirstAttempt, e.RetryAttempt)
}

func (e *DeviceCreationFailedError) Unwrap() error { return e.RetryAttempt }

// IsDeviceCreationFailed reports whether err is a *DeviceCreationFailedError.
func IsDeviceCreationFailed(err error) bool {
	var d *DeviceCreationFailedError
	return errors.As(err, &d)
}

// MissingFeaturesError reports that a kernel variant requires device
// features the current device did not enable.
type MissingFeaturesError struct {
	Operation string
	Variant   string
	Missing   []string
}

func (e *MissingFeaturesError) Error() string {
	return fmt.Sprintf("llmkernel: %s/%s requires missing feature(s): %s",
		e.Operation, e.Variant, strings.Join(e.Missing, ", "))
}

// IsMissingFeatures reports whether err is a *MissingFeaturesError.
func IsMissingFeatures(err error) bool {
	var m *MissingFeaturesError
	return errors.As(err, &m)
}

// InvalidDimensionsError reports a non-finite, zero, or negative dispatch
// dimension passed to a kernel launcher.
type InvalidDimensionsError struct {
	Operation string
	Field     string
	Value     float64
}

func (e *InvalidDimensionsError) Error() string {
	return fmt.Sprintf("llmkernel: %s: invalid dimension %s=%v (must be finite and positive)",
		e.Operation, e.Field, e.Value)
}

// IsInvalidDimensions reports whether err is a *InvalidDimensionsError.
func IsInvalidDimensions(err error) bool {
	var d *InvalidDimensionsError
	return errors.As(err, &d)
}

// InvalidOffsetError reports a buffer offset that is negative, non-finite,
// or not aligned to the required byte boundary (256 bytes for uniform
// binding offsets).
type InvalidOffsetError struct {
	Operation string
	Offset    int64
	Alignment uint64
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("llmkernel: %s: offset %d is not a multiple of the required %d-byte alignment",
		e.Operation, e.Offset, e.Alignment)
}

// IsInvalidOffset reports whether err is a *InvalidOffsetError.
func IsInvalidOffset(err error) bool {
	var o *InvalidOffsetError
	return errors.As(err, &o)
}

// BufferTooSmallError reports that a caller-supplied output buffer is
// smaller than the size a launcher requires.
type BufferTooSmallError struct {
	Operation string
	Required  uint64
	Actual    uint64
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("llmkernel: %s: buffer too small (need %d bytes, have %d)",
		e.Operation, e.Required, e.Actual)
}

// IsBufferTooSmall reports whether err is a *BufferTooSmallError.
func IsBufferTooSmall(err error) bool {
	var b *BufferTooSmallError
	return errors.As(err, &b)
}

// BufferTooLargeError reports that a requested buffer size exceeds the
// device's maximum buffer size or, when the usage includes Storage, its
// maximum storage binding size.
type BufferTooLargeError struct {
	Requested uint64
	Limit     uint64
	LimitName string
}

func (e *BufferTooLargeError) Error() string {
	return fmt.Sprintf("llmkernel: requested buffer size %d exceeds device limit %s (%d)",
		e.Requested, e.LimitName, e.Limit)
}

// IsBufferTooLarge reports whether err is a *BufferTooLargeError.
func IsBufferTooLarge(err error) bool {
	var b *BufferTooLargeError
	return errors.As(err, &b)
}

// ExceedsDispatchLimitError reports a dispatch geometry that overflows
// MaxWorkgroups in every dimension it tried, with a concrete suggestion.
type ExceedsDispatchLimitError struct {
	Operation  string
	Requested  [3]uint32
	Limit      uint32
	Suggestion string
}

func (e *ExceedsDispatchLimitError) Error() string {
	return fmt.Sprintf("llmkernel: %s: dispatch (%d,%d,%d) exceeds device dispatch limit %d per dimension; %s",
		e.Operation, e.Requested[0], e.Requested[1], e.Requested[2], e.Limit, e.Suggestion)
}

// IsExceedsDispatchLimit reports whether err is a *ExceedsDispatchLimitError.
func IsExceedsDispatchLimit(err error) bool {
	var x *ExceedsDispatchLimitError
	return errors.As(err, &x)
}

// ShaderCompileFailedError reports a WGSL compile error surfaced by the
// shader/pipeline cache.
type ShaderCompileFailedError struct {
	ShaderFile string
	Messages   []string
}

func (e *ShaderCompileFailedError) Error() string {
	return fmt.Sprintf("llmkernel: shader compile failed for %q: %s",
		e.ShaderFile, strings.Join(e.Messages, "; "))
}

// IsShaderCompileFailed reports whether err is a *ShaderCompileFailedError.
func IsShaderCompileFailed(err error) bool {
	var s *ShaderCompileFailedError
	return errors.As(err, &s)
}
