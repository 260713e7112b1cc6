// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package recorder

import (
	"testing"
	"time"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/bufpool"
	"github.com/gogpu/llmkernel/internal/fakegpu"
	"github.com/gogpu/llmkernel/uniform"
	"github.com/gogpu/wgpu"
	"github.com/stretchr/testify/require"
)

// newTestRecorder builds a Recorder against a fresh initialized device,
// skipping when the platform has no HAL-backed encoder (mock adapter).
func newTestRecorder(t *testing.T, opts Options) (*Recorder, *llmkernel.Device) {
	t.Helper()
	device := fakegpu.NewEngineDevice(t, nil)
	limits := device.GetDeviceLimits()
	pool := bufpool.New(bufpool.DefaultConfig(), bufpool.Limits{
		MaxBufferSize:               limits.MaxBufferSize,
		MaxStorageBufferBindingSize: limits.MaxStorageBufferBindingSize,
	})
	rec, err := New(device, pool, uniform.New(uniform.DefaultConfig()), opts)
	if err != nil {
		t.Skipf("skipping: no HAL command encoder on this platform: %v", err)
	}
	return rec, device
}

func TestSubmitTwiceFails(t *testing.T) {
	rec, _ := newTestRecorder(t, Options{})
	require.NoError(t, rec.Submit())
	require.ErrorIs(t, rec.Submit(), llmkernel.ErrAlreadySubmitted)
}

func TestSubmitAfterAbortFails(t *testing.T) {
	rec, _ := newTestRecorder(t, Options{})
	require.NoError(t, rec.Abort())
	require.ErrorIs(t, rec.Submit(), llmkernel.ErrAlreadySubmitted)
}

func TestBeginComputePassAfterSubmitFails(t *testing.T) {
	rec, _ := newTestRecorder(t, Options{})
	require.NoError(t, rec.Submit())
	_, err := rec.BeginComputePass("late")
	require.ErrorIs(t, err, llmkernel.ErrAlreadySubmitted)
}

func TestSubmitWithOpenPassFails(t *testing.T) {
	rec, _ := newTestRecorder(t, Options{})
	pass, err := rec.BeginComputePass("open")
	if err != nil {
		t.Skipf("skipping: compute pass unavailable: %v", err)
	}
	require.ErrorIs(t, rec.Submit(), llmkernel.ErrPassOpen)
	require.NoError(t, pass.End())
	require.NoError(t, rec.Submit())
}

func TestOnlyOnePassOpenAtATime(t *testing.T) {
	rec, _ := newTestRecorder(t, Options{})
	pass, err := rec.BeginComputePass("first")
	if err != nil {
		t.Skipf("skipping: compute pass unavailable: %v", err)
	}
	_, err = rec.BeginComputePass("second")
	require.ErrorIs(t, err, llmkernel.ErrPassOpen)
	require.NoError(t, pass.End())
}

// A buffer passed to TrackTemporaryBuffer is destroyed iff submit or
// abort runs exactly once.
func TestTrackedBuffersReleasedOnAbort(t *testing.T) {
	rec, _ := newTestRecorder(t, Options{})

	released := 0
	rec.trackWithRelease(nil, func(*wgpu.Buffer) { released++ })
	require.Zero(t, released)

	require.NoError(t, rec.Abort())
	require.Equal(t, 1, released)

	// A second abort must not release again.
	require.Error(t, rec.Abort())
	require.Equal(t, 1, released)
}

func TestTrackedBuffersReleasedOnSubmit(t *testing.T) {
	rec, _ := newTestRecorder(t, Options{})
	released := 0
	rec.trackWithRelease(nil, func(*wgpu.Buffer) { released++ })
	require.NoError(t, rec.Submit())
	require.Equal(t, 1, released)
}

func TestOpCountIncrements(t *testing.T) {
	rec, _ := newTestRecorder(t, Options{})
	require.Zero(t, rec.OpCount())
	pass, err := rec.BeginComputePass("a")
	if err != nil {
		t.Skipf("skipping: compute pass unavailable: %v", err)
	}
	require.NoError(t, pass.End())
	require.Equal(t, 1, rec.OpCount())
}

func TestResolveProfileTimingsAggregatesByLabel(t *testing.T) {
	r := &Recorder{timings: []Timing{
		{Label: "matmul", Ms: 2},
		{Label: "matmul", Ms: 4},
		{Label: "softmax", Ms: 1},
		{Label: "bogus", Ms: -5},        // dropped
		{Label: "bogus", Ms: 1_000_000}, // dropped: > 60000 ms
	}}
	entries := r.ResolveProfileTimings()
	require.Len(t, entries, 2)
	require.Equal(t, "matmul", entries[0].Label)
	require.Equal(t, 2, entries[0].Count)
	require.Equal(t, 6.0, entries[0].TotalMs)
	require.Equal(t, 3.0, entries[0].AvgMs)
	require.Equal(t, "softmax", entries[1].Label)
	require.Equal(t, 1, entries[1].Count)
}

func TestProfileTimingsUseInjectedClock(t *testing.T) {
	base := time.Unix(0, 0)
	current := base
	orig := now
	now = func() time.Time { return current }
	defer func() { now = orig }()

	rec, _ := newTestRecorder(t, Options{Profile: true})
	pass, err := rec.BeginComputePass("timed")
	if err != nil {
		t.Skipf("skipping: compute pass unavailable: %v", err)
	}
	current = base.Add(5 * time.Millisecond)
	require.NoError(t, pass.End())

	entries := rec.ResolveProfileTimings()
	require.Len(t, entries, 1)
	require.Equal(t, "timed", entries[0].Label)
	require.InDelta(t, 5.0, entries[0].TotalMs, 1e-9)
}
