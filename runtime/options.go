// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package runtime

import (
	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/autotune"
	"github.com/gogpu/llmkernel/bufpool"
	"github.com/gogpu/llmkernel/kernelpath"
	"github.com/gogpu/llmkernel/pipecache"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/uniform"
)

type engineConfig struct {
	perfGuard llmkernel.PerfGuardConfig
	bufpool   bufpool.Config
	uniform   uniform.Config

	sourceLoader pipecache.SourceLoader

	tuneStore     autotune.Store
	tuneStorePath string

	hotloadRegistry *registry.Registry

	platforms []registry.Platform

	activePath       string
	activePathSource kernelpath.Source
}

func defaultConfig() engineConfig {
	return engineConfig{
		perfGuard:        llmkernel.DefaultPerfGuardConfig(),
		bufpool:          bufpool.DefaultConfig(),
		uniform:          uniform.DefaultConfig(),
		activePathSource: kernelpath.SourceAuto,
	}
}

// Option configures an Engine at construction time.
type Option func(*engineConfig)

// WithPerfGuardConfig overrides the default performance-guard policy.
func WithPerfGuardConfig(cfg llmkernel.PerfGuardConfig) Option {
	return func(c *engineConfig) { c.perfGuard = cfg }
}

// WithBufpoolConfig overrides the default buffer pool policy.
func WithBufpoolConfig(cfg bufpool.Config) Option {
	return func(c *engineConfig) { c.bufpool = cfg }
}

// WithUniformConfig overrides the default uniform cache policy.
func WithUniformConfig(cfg uniform.Config) Option {
	return func(c *engineConfig) { c.uniform = cfg }
}

// WithSourceLoader installs the function used to resolve a WGSL source
// path into its text. Without one,
// the engine rejects any pipeline compile with a descriptive error rather
// than silently failing on a nil loader.
func WithSourceLoader(loader pipecache.SourceLoader) Option {
	return func(c *engineConfig) { c.sourceLoader = loader }
}

// WithTuneStore installs an explicit autotune.Store, taking precedence
// over WithTuneStorePath.
func WithTuneStore(store autotune.Store) Option {
	return func(c *engineConfig) { c.tuneStore = store }
}

// WithTuneStorePath opens a bbolt-backed autotune.Store at path. Ignored
// if WithTuneStore is also given. Without either, tuning results persist
// only for the Engine's lifetime (autotune.NewMemStore).
func WithTuneStorePath(path string) Option {
	return func(c *engineConfig) { c.tuneStorePath = path }
}

// WithHotloadRegistry merges extra variants from reg into the static
// registry. The static table is always re-applied afterward so it
// remains authoritative on key collision.
func WithHotloadRegistry(reg *registry.Registry) Option {
	return func(c *engineConfig) { c.hotloadRegistry = reg }
}

// WithPlatforms supplies the platform-override documents to match
// against the adapter at engine construction.
// The first non-generic match wins, else the generic entry; the matched
// platform is exposed as Engine.Platform and its per-operation kernel
// overrides through Engine.PlatformOverride.
func WithPlatforms(platforms ...registry.Platform) Option {
	return func(c *engineConfig) { c.platforms = append(c.platforms, platforms...) }
}

// WithActiveKernelPath sets the engine's initial active kernel path by
// identifier (built-in preset id, registered alias, or one registered
// earlier in the option chain), tagged with source.
func WithActiveKernelPath(identifier string, source kernelpath.Source) Option {
	return func(c *engineConfig) {
		c.activePath = identifier
		c.activePathSource = source
	}
}
