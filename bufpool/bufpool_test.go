// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package bufpool_test

import (
	"testing"

	"github.com/gogpu/llmkernel/bufpool"
	"github.com/gogpu/wgpu"
	"github.com/stretchr/testify/require"
)

// newTestDevice mirrors gogpu/wgpu's own wgpu_test.go newDevice helper:
// CreateInstance/RequestAdapter/RequestDevice always succeed, falling back
// to a mock adapter when no real GPU backend is registered.
func newTestDevice(t *testing.T) *wgpu.Device {
	t.Helper()
	inst, err := wgpu.CreateInstance(nil)
	require.NoError(t, err)
	adapter, err := inst.RequestAdapter(nil)
	require.NoError(t, err)
	device, err := adapter.RequestDevice(nil)
	require.NoError(t, err)
	return device
}

// requireHAL skips the test if device has no real HAL-backed queue (mock
// adapter; no GPU backend registered), mirroring gogpu/wgpu's own
// wgpu_test.go helper of the same name — CreateBuffer and friends need
// real HAL integration, which is environment-dependent.
func requireHAL(t *testing.T, device *wgpu.Device) {
	t.Helper()
	if device.Queue() == nil {
		t.Skip("skipping: device has no HAL integration (mock adapter; no real GPU backend available)")
	}
}

func testLimits() bufpool.Limits {
	return bufpool.Limits{MaxBufferSize: 1 << 30, MaxStorageBufferBindingSize: 1 << 28}
}

func TestAcquireReusesReleasedBuffer(t *testing.T) {
	device := newTestDevice(t)
	requireHAL(t, device)
	p := bufpool.New(bufpool.DefaultConfig(), testLimits())

	buf1, err := p.Acquire(device, 1024, wgpu.BufferUsageStorage, "a")
	require.NoError(t, err)
	p.Release(buf1)

	buf2, err := p.Acquire(device, 1024, wgpu.BufferUsageStorage, "b")
	require.NoError(t, err)
	require.Same(t, buf1, buf2)
}

func TestAcquireBucketsDifferentSizesSeparately(t *testing.T) {
	device := newTestDevice(t)
	requireHAL(t, device)
	p := bufpool.New(bufpool.DefaultConfig(), testLimits())

	small, err := p.Acquire(device, 100, wgpu.BufferUsageStorage, "small")
	require.NoError(t, err)
	p.Release(small)

	large, err := p.Acquire(device, 1<<20, wgpu.BufferUsageStorage, "large")
	require.NoError(t, err)
	require.NotSame(t, small, large)
}

func TestAcquireRejectsOversizeRequest(t *testing.T) {
	device := newTestDevice(t)
	requireHAL(t, device)
	p := bufpool.New(bufpool.DefaultConfig(), bufpool.Limits{MaxBufferSize: 1024})
	_, err := p.Acquire(device, 1<<20, wgpu.BufferUsageStorage, "too-big")
	require.Error(t, err)
}

func TestReleaseDeferredWhenPoolingDisabled(t *testing.T) {
	device := newTestDevice(t)
	cfg := bufpool.DefaultConfig()
	cfg.PoolingEnabled = false
	p := bufpool.New(cfg, testLimits())

	scheduled := false
	p.SetCompletionScheduler(func(onDone func()) {
		scheduled = true
		onDone()
	})

	buf, err := p.Acquire(device, 1024, wgpu.BufferUsageStorage, "x")
	require.NoError(t, err)
	p.Release(buf)
	require.True(t, scheduled, "deferred destroy should schedule a completion continuation")

	buf2, err := p.Acquire(device, 1024, wgpu.BufferUsageStorage, "y")
	require.NoError(t, err)
	require.NotSame(t, buf, buf2, "pooling disabled: released buffer must not be reused")
}

func TestReleaseRespectsPerBucketCap(t *testing.T) {
	device := newTestDevice(t)
	cfg := bufpool.DefaultConfig()
	cfg.MaxPerBucket = 1
	p := bufpool.New(cfg, testLimits())
	p.SetCompletionScheduler(func(onDone func()) { onDone() })

	a, err := p.Acquire(device, 1024, wgpu.BufferUsageStorage, "a")
	require.NoError(t, err)
	b, err := p.Acquire(device, 1024, wgpu.BufferUsageStorage, "b")
	require.NoError(t, err)

	p.Release(a)
	p.Release(b) // bucket already has 1 free entry, must be deferred-destroyed instead

	reused, err := p.Acquire(device, 1024, wgpu.BufferUsageStorage, "c")
	require.NoError(t, err)
	require.Same(t, a, reused)
}

func TestReleaseOfUnknownBufferIsNoop(t *testing.T) {
	device := newTestDevice(t)
	requireHAL(t, device)
	p := bufpool.New(bufpool.DefaultConfig(), testLimits())
	buf, err := p.Acquire(device, 1024, wgpu.BufferUsageStorage, "a")
	require.NoError(t, err)
	p.Release(buf)
	require.NotPanics(t, func() { p.Release(buf) })
}

func TestLeakCheckDisabledByZeroThreshold(t *testing.T) {
	cfg := bufpool.DefaultConfig()
	cfg.LeakThreshold = 0
	p := bufpool.New(cfg, testLimits())
	require.Nil(t, p.LeakCheck())
}

func TestCreateHelpersSetExpectedUsage(t *testing.T) {
	device := newTestDevice(t)
	requireHAL(t, device)
	p := bufpool.New(bufpool.DefaultConfig(), testLimits())

	staging, err := p.CreateStagingBuffer(device, 256, "staging")
	require.NoError(t, err)
	require.NotZero(t, staging.Usage()&wgpu.BufferUsageMapRead)

	uniform, err := p.CreateUniformBuffer(device, 256, "uniform")
	require.NoError(t, err)
	require.NotZero(t, uniform.Usage()&wgpu.BufferUsageUniform)
}
