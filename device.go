// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package llmkernel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

// DeviceState is the lifecycle state of a Device.
type DeviceState int32

const (
	DeviceUninitialized DeviceState = iota
	DeviceInitializing
	DeviceReady
	DeviceLost
)

func (s DeviceState) String() string {
	switch s {
	case DeviceUninitialized:
		return "uninitialized"
	case DeviceInitializing:
		return "initializing"
	case DeviceReady:
		return "ready"
	case DeviceLost:
		return "lost"
	default:
		return "unknown"
	}
}

// DeviceLimits is a snapshot of the adapter/device resource limits this
// core cares about. It intentionally carries a subset of
// gputypes.Limits, named the way kernel launchers reason about them.
type DeviceLimits struct {
	MaxStorageBufferBindingSize       uint64
	MaxBufferSize                     uint64
	MaxComputeWorkgroupSizeX          uint32
	MaxComputeWorkgroupSizeY          uint32
	MaxComputeWorkgroupSizeZ          uint32
	MaxComputeInvocationsPerWorkgroup uint32
	MaxComputeWorkgroupStorageSize    uint32
	MaxComputeWorkgroupsPerDimension  uint32
	MaxUniformBufferBindingSize       uint64
}

func deviceLimitsFromGPU(l gputypes.Limits) DeviceLimits {
	return DeviceLimits{
		MaxStorageBufferBindingSize:       uint64(l.MaxStorageBufferBindingSize),
		MaxBufferSize:                     l.MaxBufferSize,
		MaxComputeWorkgroupSizeX:          l.MaxComputeWorkgroupSizeX,
		MaxComputeWorkgroupSizeY:          l.MaxComputeWorkgroupSizeY,
		MaxComputeWorkgroupSizeZ:          l.MaxComputeWorkgroupSizeZ,
		MaxComputeInvocationsPerWorkgroup: l.MaxComputeInvocationsPerWorkgroup,
		MaxComputeWorkgroupStorageSize:    l.MaxComputeWorkgroupStorageSize,
		MaxComputeWorkgroupsPerDimension:  l.MaxComputeWorkgroupsPerDimension,
		MaxUniformBufferBindingSize:       uint64(l.MaxUniformBufferBindingSize),
	}
}

// Capability is the immutable, read-only record derived from a Device once
// it reaches DeviceReady. Every other component
// treats this as a value, never mutating it.
type Capability struct {
	F16            bool
	Subgroups      bool
	SubgroupsF16   bool
	TimestampQuery bool
	Limits         DeviceLimits
}

// HasFeature reports whether the named capability flag is set. Accepts
// the canonical flag names ("f16", "subgroups", "subgroups_f16",
// "timestamp_query") so callers driven by registry metadata (string
// feature lists) can check without a switch at every call site.
func (c Capability) HasFeature(name string) bool {
	switch name {
	case "f16":
		return c.F16
	case "subgroups":
		return c.Subgroups
	case "subgroups_f16":
		return c.SubgroupsF16
	case "timestamp_query":
		return c.TimestampQuery
	default:
		return false
	}
}

// MissingFeatures returns the subset of names not satisfied by c, in input
// order, for use in a MissingFeaturesError.
func (c Capability) MissingFeatures(names []string) []string {
	var missing []string
	for _, n := range names {
		if !c.HasFeature(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

var optionalFeatureNames = []string{"f16", "subgroups", "subgroups_f16", "timestamp_query"}

// powerPreferenceFallbacks is the adapter-request fallback sequence:
// high-performance, then low-power, then the backend's default choice.
var powerPreferenceFallbacks = []wgpu.PowerPreference{
	wgpu.PowerPreferenceHighPerformance,
	wgpu.PowerPreferenceLowPower,
	wgpu.PowerPreferenceNone,
}

// Device is the per-process GPU device handle. It is not a hidden
// process-wide global: it is held by an Engine and threaded through
// calls. A package
// level Default Engine (see package runtime) gives call sites the old singleton
// ergonomics when they want it.
type Device struct {
	mu       sync.RWMutex
	state    atomic.Int32
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	gpu      *wgpu.Device
	queue    *guardedQueue
	info     wgpu.AdapterInfo
	cap      Capability
	guard    *PerfGuard

	lostOnce sync.Once
	onLost   []func()
}

// NewDevice constructs an unitialized Device. Call InitDevice before use.
func NewDevice(guard *PerfGuard) *Device {
	if guard == nil {
		guard = NewPerfGuard(PerfGuardConfig{})
	}
	d := &Device{guard: guard}
	d.state.Store(int32(DeviceUninitialized))
	return d
}

// State returns the device's current lifecycle state.
func (d *Device) State() DeviceState {
	return DeviceState(d.state.Load())
}

// InitDevice acquires an adapter and device. It is idempotent: once the
// device reaches DeviceReady, subsequent calls return immediately. Failure
// to transition out of DeviceUninitialized resets the state so a caller
// may retry.
func (d *Device) InitDevice(ctx context.Context) error {
	if d.State() == DeviceReady {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.State() == DeviceReady {
		return nil
	}
	d.state.Store(int32(DeviceInitializing))

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		d.state.Store(int32(DeviceUninitialized))
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	adapter, info, err := requestAdapterWithFallback(instance)
	if err != nil {
		instance.Release()
		d.state.Store(int32(DeviceUninitialized))
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	gpu, capability, firstErr := requestDeviceWithOptionalFeatures(adapter)
	if firstErr != nil {
		// Retry with no optional features and default limits.
		var retryErr error
		gpu, capability, retryErr = requestDeviceNoFeatures(adapter)
		if retryErr != nil {
			adapter.Release()
			instance.Release()
			d.state.Store(int32(DeviceUninitialized))
			return &DeviceCreationFailedError{FirstAttempt: firstErr, RetryAttempt: retryErr}
		}
		Logger().Warn("llmkernel: device created without optional features after first attempt failed",
			"first_error", firstErr)
	}

	d.instance = instance
	d.adapter = adapter
	d.gpu = gpu
	d.info = info
	d.cap = capability
	d.queue = newGuardedQueue(gpu.Queue(), d.guard)
	d.state.Store(int32(DeviceReady))
	Logger().Info("llmkernel: device ready", "vendor", info.Vendor, "device", info.Name)
	return nil
}

func requestAdapterWithFallback(instance *wgpu.Instance) (*wgpu.Adapter, wgpu.AdapterInfo, error) {
	var lastErr error
	for _, pref := range powerPreferenceFallbacks {
		adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{PowerPreference: pref})
		if err == nil {
			return adapter, adapter.Info(), nil
		}
		lastErr = err
	}
	return nil, wgpu.AdapterInfo{}, lastErr
}

func requestDeviceWithOptionalFeatures(adapter *wgpu.Adapter) (*wgpu.Device, Capability, error) {
	features := adapter.Features()
	requested := gputypes.Features(0)
	for _, name := range optionalFeatureNames {
		if f, ok := featureBitFor(name); ok && features.Contains(gputypes.Feature(f)) {
			requested.Insert(gputypes.Feature(f))
		}
	}
	gpu, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "llmkernel",
		RequiredFeatures: requested,
		RequiredLimits:   adapter.Limits(),
	})
	if err != nil {
		return nil, Capability{}, err
	}
	return gpu, capabilityFromDevice(gpu, requested), nil
}

func requestDeviceNoFeatures(adapter *wgpu.Adapter) (*wgpu.Device, Capability, error) {
	gpu, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "llmkernel",
		RequiredLimits: wgpu.DefaultLimits(),
	})
	if err != nil {
		return nil, Capability{}, err
	}
	return gpu, capabilityFromDevice(gpu, 0), nil
}

func capabilityFromDevice(gpu *wgpu.Device, requested gputypes.Features) Capability {
	enabled := gpu.Features()
	return Capability{
		F16:            enabled.Contains(mustFeatureBit("f16")),
		Subgroups:      enabled.Contains(mustFeatureBit("subgroups")),
		SubgroupsF16:   enabled.Contains(mustFeatureBit("subgroups_f16")) && enabled.Contains(mustFeatureBit("f16")),
		TimestampQuery: enabled.Contains(mustFeatureBit("timestamp_query")),
		Limits:         deviceLimitsFromGPU(gpu.Limits()),
	}
}

// featureBitFor maps the canonical feature names to the underlying
// gputypes.Feature bit this binding's adapter exposes for it. Centralized
// here so capability derivation and the request-device call agree on what
// "f16" etc. mean.
func featureBitFor(name string) (gputypes.Feature, bool) {
	switch name {
	case "f16":
		return gputypes.FeatureShaderF16, true
	case "timestamp_query":
		return gputypes.FeatureTimestampQuery, true
	case "subgroups":
		// gputypes models subgroup support as a single operations bit;
		// subgroups_f16 layers shader-f16 on top of it (see
		// capabilityFromDevice).
		return gputypes.FeatureSubgroupOperations, true
	case "subgroups_f16":
		return gputypes.FeatureSubgroupOperations, true
	default:
		return 0, false
	}
}

func mustFeatureBit(name string) gputypes.Feature {
	bit, _ := featureBitFor(name)
	return bit
}

// GetDevice returns the underlying *wgpu.Device, or nil if not ready.
func (d *Device) GetDevice() *wgpu.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.State() != DeviceReady {
		return nil
	}
	return d.gpu
}

// Queue returns the perf-guard-wrapped submission queue.
func (d *Device) Queue() *guardedQueue {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queue
}

// GetKernelCapabilities returns the capability snapshot.
func (d *Device) GetKernelCapabilities() Capability {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cap
}

// HasFeature reports a single capability flag by name.
func (d *Device) HasFeature(name string) bool {
	return d.GetKernelCapabilities().HasFeature(name)
}

// GetDeviceLimits returns the limit snapshot.
func (d *Device) GetDeviceLimits() DeviceLimits {
	return d.GetKernelCapabilities().Limits
}

// AdapterInfo returns the adapter metadata captured at InitDevice time.
func (d *Device) AdapterInfo() wgpu.AdapterInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info
}

// OnLost registers a callback invoked exactly once when the device
// transitions to DeviceLost. Intended for outstanding CommandRecorders and
// caches to abort/clear themselves.
func (d *Device) OnLost(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onLost = append(d.onLost, fn)
}

// NotifyLost transitions the device to DeviceLost and invokes every
// registered OnLost callback exactly once. Safe to call multiple times;
// only the first call has an effect. Intended to be driven by the
// underlying binding's async device-lost signal once gogpu/wgpu exposes
// one; exposed directly here so tests and hosts that detect loss out of
// band (e.g. a failed Submit) can drive it manually.
func (d *Device) NotifyLost() {
	d.lostOnce.Do(func() {
		d.state.Store(int32(DeviceLost))
		d.mu.RLock()
		callbacks := append([]func(){}, d.onLost...)
		d.mu.RUnlock()
		Logger().Error("llmkernel: device lost")
		for _, cb := range callbacks {
			cb()
		}
	})
}

// Release tears down the device and its adapter/instance.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		d.gpu.Release()
		d.gpu = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
	d.state.Store(int32(DeviceUninitialized))
}
