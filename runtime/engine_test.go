// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package runtime_test

import (
	"context"
	"testing"

	"github.com/gogpu/llmkernel/autotune"
	"github.com/gogpu/llmkernel/kernelpath"
	"github.com/gogpu/llmkernel/registry"
	"github.com/gogpu/llmkernel/runtime"
	"github.com/stretchr/testify/require"
)

func TestNewEngineWiresEveryComponent(t *testing.T) {
	e, err := runtime.NewEngine(context.Background(), runtime.WithTuneStore(autotune.NewMemStore()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Release()) })

	require.NotNil(t, e.Device)
	require.NotNil(t, e.Registry)
	require.NotNil(t, e.Pipelines)
	require.NotNil(t, e.Pool)
	require.NotNil(t, e.Uniforms)
	require.NotNil(t, e.Tuner)
	require.NotNil(t, e.Paths)
	require.NotNil(t, e.Profiler)

	deps := e.Deps()
	require.Same(t, e.Device, deps.Device)
	require.Same(t, e.Registry, deps.Registry)
}

func TestNewEngineWithActiveKernelPath(t *testing.T) {
	e, err := runtime.NewEngine(context.Background(),
		runtime.WithTuneStore(autotune.NewMemStore()),
		runtime.WithActiveKernelPath("q4k-fast", kernelpath.SourceManifest),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Release()) })

	active, source, ok := e.Paths.Active()
	require.True(t, ok)
	require.Equal(t, "q4k-fused", active.ID)
	require.Equal(t, kernelpath.SourceManifest, source)
}

func TestNewEngineRejectsUnknownActiveKernelPath(t *testing.T) {
	_, err := runtime.NewEngine(context.Background(),
		runtime.WithTuneStore(autotune.NewMemStore()),
		runtime.WithActiveKernelPath("not-a-path", kernelpath.SourceManifest),
	)
	require.Error(t, err)
}

func TestNewEngineMatchesGenericPlatform(t *testing.T) {
	e, err := runtime.NewEngine(context.Background(),
		runtime.WithTuneStore(autotune.NewMemStore()),
		runtime.WithPlatforms(
			registry.Platform{
				ID:              "never-matches",
				Detection:       registry.PlatformDetection{Vendor: "no-such-vendor-string"},
				KernelOverrides: map[string]string{"matmul": "f32"},
			},
			registry.Platform{
				ID:              "generic",
				IsGeneric:       true,
				KernelOverrides: map[string]string{"attention": "prefill_streaming"},
			},
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Release()) })

	require.NotNil(t, e.Platform)
	require.Equal(t, "generic", e.Platform.ID)

	ov := e.PlatformOverride("attention")
	require.NotNil(t, ov)
	require.Equal(t, "prefill_streaming", ov.Variant)
	require.Nil(t, e.PlatformOverride("matmul"))
}

func TestPlatformOverrideNilWithoutPlatforms(t *testing.T) {
	e, err := runtime.NewEngine(context.Background(), runtime.WithTuneStore(autotune.NewMemStore()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Release()) })
	require.Nil(t, e.Platform)
	require.Nil(t, e.PlatformOverride("matmul"))
}

func TestDefaultEngineRoundTrip(t *testing.T) {
	require.Nil(t, runtime.Default())

	e, err := runtime.NewEngine(context.Background(), runtime.WithTuneStore(autotune.NewMemStore()))
	require.NoError(t, err)
	t.Cleanup(func() {
		runtime.SetDefault(nil)
		require.NoError(t, e.Release())
	})

	runtime.SetDefault(e)
	require.Same(t, e, runtime.Default())
}
