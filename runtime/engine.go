// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package runtime is the composition root: it replaces what would
// otherwise be process-wide singletons (device, caches, perf guards,
// active kernel path, tuner) with an explicit Engine context threaded
// through calls, instead of hidden globals.
//
// Engine lives above every subsystem package (llmkernel, bufpool,
// uniform, pipecache, registry, selector, kernels, recorder, autotune,
// kernelpath, profiler) rather than inside the llmkernel root package,
// because pipecache and selector both import llmkernel for Capability and
// the error types — a root-package Engine holding a *pipecache.Cache
// would close an import cycle (llmkernel -> pipecache -> llmkernel).
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/autotune"
	"github.com/gogpu/llmkernel/bufpool"
	"github.com/gogpu/llmkernel/kernelpath"
	"github.com/gogpu/llmkernel/kernels"
	"github.com/gogpu/llmkernel/pipecache"
	"github.com/gogpu/llmkernel/profiler"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/selector"
	"github.com/gogpu/llmkernel/uniform"
)

// Engine bundles every per-process component this core needs. One Engine is
// normally constructed per host process; Default/SetDefault below give
// call sites that want the old singleton ergonomics a way to get one
// without threading it through every call explicitly.
type Engine struct {
	id uuid.UUID

	Device    *llmkernel.Device
	Guard     *llmkernel.PerfGuard
	Registry  *registry.Registry
	Pipelines *pipecache.Cache
	Pool      *bufpool.Pool
	Uniforms  *uniform.Cache
	Tuner     *autotune.Tuner
	Paths     *kernelpath.Resolver
	Profiler  *profiler.Profiler

	// Platform is the platform-override document matched against the
	// adapter at construction, or nil when no WithPlatforms documents
	// were supplied or none matched.
	Platform *registry.Platform

	mu      sync.Mutex
	closers []func() error
}

// ID returns a debug-visible identifier for this Engine instance, logged
// with the device-lost error.
func (e *Engine) ID() uuid.UUID { return e.id }

// Deps returns the kernels.Deps bundle every launcher in package kernels
// takes as its first argument.
func (e *Engine) Deps() *kernels.Deps {
	return &kernels.Deps{
		Device:    e.Device,
		Registry:  e.Registry,
		Pipelines: e.Pipelines,
		Pool:      e.Pool,
		Uniforms:  e.Uniforms,
	}
}

// PlatformOverride returns the matched platform's kernel override for
// operation as a selector override, or nil when no platform matched or the
// platform names no variant for this operation. The override carries no
// validation mode of its own; it is checked under whichever selector.Mode
// the caller passes to the selector.
func (e *Engine) PlatformOverride(operation string) *selector.Override {
	if e.Platform == nil {
		return nil
	}
	variant, ok := e.Platform.KernelOverrides[operation]
	if !ok {
		return nil
	}
	return &selector.Override{Variant: variant}
}

// NewEngine constructs and initializes an Engine: it acquires a device
//, builds the static kernel registry, and wires
// the buffer pool, uniform cache, pipeline cache, auto-tuner, kernel-path
// resolver, and profiler against it.
func NewEngine(ctx context.Context, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	guard := llmkernel.NewPerfGuard(cfg.perfGuard)
	device := llmkernel.NewDevice(guard)
	if err := device.InitDevice(ctx); err != nil {
		return nil, fmt.Errorf("runtime: init device: %w", err)
	}

	limits := device.GetDeviceLimits()
	pool := bufpool.New(cfg.bufpool, bufpool.Limits{
		MaxBufferSize:               limits.MaxBufferSize,
		MaxStorageBufferBindingSize: limits.MaxStorageBufferBindingSize,
	})
	uniforms := uniform.New(cfg.uniform)

	reg := registry.NewStatic()
	if cfg.hotloadRegistry != nil {
		reg.Merge(cfg.hotloadRegistry)
		// Re-apply the static table so it still wins on key collision.
		reg.Merge(registry.NewStatic())
	}

	loader := cfg.sourceLoader
	if loader == nil {
		loader = missingSourceLoader
	}
	pipelines := pipecache.New(loader)

	store := cfg.tuneStore
	var closers []func() error
	if store == nil {
		if cfg.tuneStorePath != "" {
			boltStore, err := autotune.OpenBoltStore(cfg.tuneStorePath)
			if err != nil {
				device.Release()
				return nil, fmt.Errorf("runtime: open tuning store: %w", err)
			}
			store = boltStore
			closers = append(closers, boltStore.Close)
		} else {
			store = autotune.NewMemStore()
		}
	}
	deviceSig := llmkernel.DeviceSignature(device.AdapterInfo())
	tuner := autotune.New(store, deviceSig, device.AdapterInfo().Name)

	var platform *registry.Platform
	if len(cfg.platforms) > 0 {
		info := device.AdapterInfo()
		// This binding's AdapterInfo has no architecture/description
		// strings; the backend name and driver info are the stable
		// analogues platform files match against (see DeviceSignature).
		if p, ok := registry.MatchPlatform(cfg.platforms, registry.AdapterStrings{
			Vendor:       info.Vendor,
			Architecture: info.Backend.String(),
			Device:       info.Name,
			Description:  info.DriverInfo,
		}); ok {
			platform = &p
			llmkernel.Logger().Info("runtime: platform matched", "platform", p.ID, "generic", p.IsGeneric)
		}
	}

	paths := kernelpath.NewResolver()
	if cfg.activePath != "" {
		if _, err := paths.SetActiveByID(cfg.activePath, cfg.activePathSource); err != nil {
			device.Release()
			return nil, fmt.Errorf("runtime: set active kernel path: %w", err)
		}
	}

	e := &Engine{
		id:        uuid.New(),
		Device:    device,
		Guard:     guard,
		Registry:  reg,
		Pipelines: pipelines,
		Pool:      pool,
		Uniforms:  uniforms,
		Tuner:     tuner,
		Paths:     paths,
		Profiler:  profiler.New(),
		Platform:  platform,
		closers:   closers,
	}

	device.OnLost(func() {
		llmkernel.Logger().Error("runtime: device lost, engine unusable until rebuilt", "engine", e.id)
	})

	return e, nil
}

func missingSourceLoader(path string) (string, error) {
	return "", fmt.Errorf("runtime: no shader source loader configured (requested %q); pass WithSourceLoader", path)
}

// Release tears down the engine's device and closes any persisted stores
// it opened (e.g. a file-backed autotune.BoltStore).
func (e *Engine) Release() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, closer := range e.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.closers = nil
	e.Device.Release()
	return firstErr
}

var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Default returns the package-level default Engine, or nil if none has
// been set via SetDefault. This exists purely for call sites that want
// the pre-redesign singleton ergonomics; new code should prefer
// threading an *Engine explicitly.
func Default() *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultEngine
}

// SetDefault installs e as the package-level default Engine.
func SetDefault(e *Engine) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = e
}
