// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package fakegpu centralizes the mock-adapter test helpers every
// package in this module needs: gogpu/wgpu always succeeds at
// CreateInstance/RequestAdapter/RequestDevice, falling back to
// an internal mock adapter when no real GPU backend is registered for the
// host platform (see gogpu/wgpu's own wgpu_test.go). That makes this
// module's tests runnable without a GPU, at the cost of HAL-dependent
// calls (CreateBuffer, CreateShaderModule, ...) being no-ops on the mock
// path — RequireHAL skips a test rather than asserting against a mock
// that cannot do real work.
//
// Mirrors gogpu/wgpu's own newInstance/newAdapter/newDevice/requireHAL
// test helpers. The bufpool and uniform tests keep their own inline
// copies of that pattern rather than importing this package.
package fakegpu

import (
	"context"
	"testing"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/wgpu"
)

// NewInstance creates a fresh *wgpu.Instance, failing the test on error.
func NewInstance(t testing.TB) *wgpu.Instance {
	t.Helper()
	inst, err := wgpu.CreateInstance(nil)
	if err != nil {
		t.Fatalf("fakegpu: CreateInstance: %v", err)
	}
	return inst
}

// NewAdapter requests an adapter from a fresh instance.
func NewAdapter(t testing.TB) (*wgpu.Instance, *wgpu.Adapter) {
	t.Helper()
	inst := NewInstance(t)
	adapter, err := inst.RequestAdapter(nil)
	if err != nil {
		t.Fatalf("fakegpu: RequestAdapter: %v", err)
	}
	return inst, adapter
}

// NewDevice requests a device from a fresh adapter — the raw *wgpu.Device,
// for tests that only need the narrow gogpu/wgpu surface rather than a
// fully initialized llmkernel.Device.
func NewDevice(t testing.TB) (*wgpu.Instance, *wgpu.Adapter, *wgpu.Device) {
	t.Helper()
	inst, adapter := NewAdapter(t)
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		t.Fatalf("fakegpu: RequestDevice: %v", err)
	}
	return inst, adapter, device
}

// RequireHAL skips the test unless device has a real HAL-backed queue.
// The mock adapter path (no GPU backend registered, common in CI) has a
// nil Queue; CreateBuffer/CreateShaderModule/etc. are not meaningfully
// testable against it.
func RequireHAL(t testing.TB, device *wgpu.Device) {
	t.Helper()
	if device.Queue() == nil {
		t.Skip("skipping: device has no HAL integration (mock adapter; no real GPU backend available)")
	}
}

// NewEngineDevice builds a ready *llmkernel.Device for tests (the recorder
// tests) that consume the higher-level handle rather than a raw
// *wgpu.Device. InitDevice's own adapter-request fallback sequence
// already lands on the mock adapter when no real backend is registered,
// so this is just that path driven directly — callers still need
// RequireHAL for HAL-dependent assertions against the result.
func NewEngineDevice(t testing.TB, guard *llmkernel.PerfGuard) *llmkernel.Device {
	t.Helper()
	d := llmkernel.NewDevice(guard)
	if err := d.InitDevice(context.Background()); err != nil {
		t.Fatalf("fakegpu: InitDevice: %v", err)
	}
	return d
}
