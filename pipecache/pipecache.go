// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pipecache implements four layered caches: shader source text
// (by file path), compiled shader module (by file path), bind-group
// layout (by label), and compute pipeline (by "operation:variant") —
// gogpu/wgpu's CreateShaderModule/CreateBindGroupLayout/
// CreateComputePipeline sequence generalized into idempotent, cached
// constructors.
//
// Shader source TEXT itself — the WGSL programs a real deployment would
// load for "matmul_f32.wgsl" and friends — is outside this module's
// scope: authoring the kernel programs is a shader-asset concern, not a
// dispatch-orchestration one (this core's own non-goals already exclude
// quantization format design; shader program bodies are adjacent external
// assets in the same sense model weights are). SourceLoader is the seam a
// host wires a real asset loader (embed.FS, network fetch, etc.) into.
package pipecache

import (
	"fmt"
	"sync"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/wgpu"
)

// SourceLoader reads the WGSL source text for a shader file path.
type SourceLoader func(path string) (string, error)

// Device is the narrow device surface pipecache needs.
type Device interface {
	CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (*wgpu.ShaderModule, error)
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error)
	CreatePipelineLayout(desc *wgpu.PipelineLayoutDescriptor) (*wgpu.PipelineLayout, error)
	CreateComputePipeline(desc *wgpu.ComputePipelineDescriptor) (*wgpu.ComputePipeline, error)
}

// ShaderCompileError wraps compiler diagnostics surfaced for a shader
// file, mirroring llmkernel.ShaderCompileFailedError's shape at the
// pipecache layer before it is returned to the caller.
type ShaderCompileError = llmkernel.ShaderCompileFailedError

type moduleEntry struct {
	module   *wgpu.ShaderModule
	err      error
	resolved bool
}

type layoutEntry struct {
	layout *wgpu.BindGroupLayout
}

type pipelineEntry struct {
	pipeline *wgpu.ComputePipeline
}

// Cache is the layered shader/pipeline cache. The zero value is not
// usable; construct with New.
type Cache struct {
	loader SourceLoader

	mu        sync.Mutex
	sources   map[string]string
	modules   map[string]*moduleEntry
	layouts   map[string]*layoutEntry
	pipelines map[registry.Key]*pipelineEntry
}

// New constructs an empty Cache using loader to resolve shader source
// text on first reference to a file path.
func New(loader SourceLoader) *Cache {
	return &Cache{
		loader:    loader,
		sources:   make(map[string]string),
		modules:   make(map[string]*moduleEntry),
		layouts:   make(map[string]*layoutEntry),
		pipelines: make(map[registry.Key]*pipelineEntry),
	}
}

// Source returns the cached WGSL text for path, loading it on first use.
func (c *Cache) Source(path string) (string, error) {
	c.mu.Lock()
	if src, ok := c.sources[path]; ok {
		c.mu.Unlock()
		return src, nil
	}
	c.mu.Unlock()

	src, err := c.loader(path)
	if err != nil {
		return "", fmt.Errorf("pipecache: load source %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sources[path]; ok {
		return existing, nil
	}
	c.sources[path] = src
	return src, nil
}

// Module returns the compiled shader module for path, compiling it on
// first use. Compiler diagnostics containing an "error" message fail the
// compile.
func (c *Cache) Module(device Device, path string) (*wgpu.ShaderModule, error) {
	c.mu.Lock()
	if e, ok := c.modules[path]; ok && e.resolved {
		c.mu.Unlock()
		return e.module, e.err
	}
	c.mu.Unlock()

	src, err := c.Source(path)
	if err != nil {
		return nil, err
	}
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{Label: path, WGSL: src})
	if err != nil {
		err = &llmkernel.ShaderCompileFailedError{ShaderFile: path, Messages: []string{err.Error()}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.modules[path]; ok && existing.resolved {
		return existing.module, existing.err
	}
	c.modules[path] = &moduleEntry{module: module, err: err, resolved: true}
	return module, err
}

// BindGroupLayoutDesc names a bind-group layout request; Label is the
// cache key.
type BindGroupLayoutDesc struct {
	Label   string
	Entries []wgpu.BindGroupLayoutEntry
}

// BindGroupLayout returns the cached layout for desc.Label, creating it on
// first use. Idempotent per label — callers must use a label scheme that
// is unique per distinct entry set (kernels derives it from the variant
// key, see package kernels).
func (c *Cache) BindGroupLayout(device Device, desc BindGroupLayoutDesc) (*wgpu.BindGroupLayout, error) {
	c.mu.Lock()
	if e, ok := c.layouts[desc.Label]; ok {
		c.mu.Unlock()
		return e.layout, nil
	}
	c.mu.Unlock()

	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: desc.Label, Entries: desc.Entries})
	if err != nil {
		return nil, fmt.Errorf("pipecache: create bind group layout %s: %w", desc.Label, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.layouts[desc.Label]; ok {
		return existing.layout, nil
	}
	c.layouts[desc.Label] = &layoutEntry{layout: layout}
	return layout, nil
}

// PipelineRequest names one compute pipeline to resolve or create.
type PipelineRequest struct {
	Key        registry.Key
	ShaderFile string
	EntryPoint string
	Layout     *wgpu.BindGroupLayout
}

// CreatePipeline resolves req.Key's variant features against cap and
// either returns the cached pipeline or compiles and links a new one.
// Idempotent per key; a variant whose required features are not enabled
// fails with a MissingFeaturesError.
func (c *Cache) CreatePipeline(device Device, cap llmkernel.Capability, reg *registry.Registry, req PipelineRequest) (*wgpu.ComputePipeline, error) {
	c.mu.Lock()
	if e, ok := c.pipelines[req.Key]; ok {
		c.mu.Unlock()
		return e.pipeline, nil
	}
	c.mu.Unlock()

	v, ok := reg.Lookup(req.Key.Operation, req.Key.Variant)
	if !ok {
		return nil, fmt.Errorf("pipecache: %s: not registered", req.Key)
	}
	if missing := cap.MissingFeatures(v.Requires); len(missing) > 0 {
		return nil, &llmkernel.MissingFeaturesError{Operation: req.Key.Operation, Variant: req.Key.Variant, Missing: missing}
	}

	module, err := c.Module(device, req.ShaderFile)
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            req.Key.String(),
		BindGroupLayouts: []*wgpu.BindGroupLayout{req.Layout},
	})
	if err != nil {
		return nil, fmt.Errorf("pipecache: create pipeline layout %s: %w", req.Key, err)
	}

	pipeline, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:      req.Key.String(),
		Layout:     pipelineLayout,
		Module:     module,
		EntryPoint: req.EntryPoint,
	})
	if err != nil {
		return nil, fmt.Errorf("pipecache: create compute pipeline %s: %w", req.Key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.pipelines[req.Key]; ok {
		return existing.pipeline, nil
	}
	c.pipelines[req.Key] = &pipelineEntry{pipeline: pipeline}
	return pipeline, nil
}

// GetPipelineFast reads the pipeline cache without compiling — the hot
// path for launchers that already created their pipeline once.
func (c *Cache) GetPipelineFast(key registry.Key) (*wgpu.ComputePipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pipelines[key]
	if !ok {
		return nil, false
	}
	return e.pipeline, true
}
