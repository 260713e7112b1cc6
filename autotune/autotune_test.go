// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package autotune_test

import (
	"context"
	"testing"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/llmkernel/autotune"
	"github.com/stretchr/testify/require"
)

func testLimits() llmkernel.DeviceLimits {
	return llmkernel.DeviceLimits{
		MaxComputeWorkgroupSizeX:          256,
		MaxComputeWorkgroupSizeY:          256,
		MaxComputeWorkgroupSizeZ:          64,
		MaxComputeInvocationsPerWorkgroup: 256,
	}
}

func TestFilterByLimitsDropsOversizeCandidates(t *testing.T) {
	filtered := autotune.FilterByLimits(autotune.Candidates1D(), testLimits())
	for _, c := range filtered {
		require.LessOrEqual(t, c.Size[0], uint32(256))
	}
	require.Len(t, filtered, 3) // 64,128,256 survive; 512 exceeds MaxComputeWorkgroupSizeX
}

func TestFilterByLimitsDropsOverInvocationCandidates(t *testing.T) {
	filtered := autotune.FilterByLimits(autotune.Candidates2D(), testLimits())
	for _, c := range filtered {
		require.LessOrEqual(t, c.Size[0]*c.Size[1]*c.Size[2], uint32(256))
	}
	// 32x32=1024 and 32x16/16x32=512 all exceed 256 invocations; 8x8,
	// 8x16, 8x32, 16x8, 16x16 and 32x8 (at most 256) survive.
	require.Len(t, filtered, 6)
}

func TestTuneKernelCachesAcrossCalls(t *testing.T) {
	store := autotune.NewMemStore()
	tuner := autotune.New(store, "vendor_arch_device", "test device")

	calls := 0
	bench := func(ctx context.Context, c autotune.WorkgroupCandidate) (float64, error) {
		calls++
		return 1024, nil
	}

	key := autotune.Key{KernelName: "matmul", InputSizes: []int64{64, 64, 64}}
	opts := autotune.Options{Warmup: 1, Iterations: 2}

	first, err := tuner.TuneKernel(context.Background(), key, testLimits(), autotune.Candidates1D, opts, bench)
	require.NoError(t, err)
	require.NotZero(t, first.OptimalWorkgroupSize[0])
	callsAfterFirst := calls

	second, err := tuner.TuneKernel(context.Background(), key, testLimits(), autotune.Candidates1D, opts, bench)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, callsAfterFirst, calls, "second call should be served from cache, not re-benchmark")
}

func TestTuneKernelForceRetuneRebenchmarks(t *testing.T) {
	store := autotune.NewMemStore()
	tuner := autotune.New(store, "vendor_arch_device", "test device")

	bench := func(ctx context.Context, c autotune.WorkgroupCandidate) (float64, error) { return 1, nil }
	key := autotune.Key{KernelName: "rmsnorm", InputSizes: []int64{4096}}
	opts := autotune.Options{Warmup: 0, Iterations: 1}

	_, err := tuner.TuneKernel(context.Background(), key, testLimits(), autotune.Candidates1D, opts, bench)
	require.NoError(t, err)

	opts.ForceRetune = true
	calls := 0
	bench2 := func(ctx context.Context, c autotune.WorkgroupCandidate) (float64, error) {
		calls++
		return 1, nil
	}
	_, err = tuner.TuneKernel(context.Background(), key, testLimits(), autotune.Candidates1D, opts, bench2)
	require.NoError(t, err)
	require.Greater(t, calls, 0, "ForceRetune must re-invoke bench rather than return the cached result")
}

func TestTuneKernelNoCandidatesSurviveLimitsErrors(t *testing.T) {
	store := autotune.NewMemStore()
	tuner := autotune.New(store, "sig", "device")
	tiny := llmkernel.DeviceLimits{MaxComputeWorkgroupSizeX: 1, MaxComputeInvocationsPerWorkgroup: 1}
	bench := func(ctx context.Context, c autotune.WorkgroupCandidate) (float64, error) { return 1, nil }
	_, err := tuner.TuneKernel(context.Background(), autotune.Key{KernelName: "matmul"}, tiny, autotune.Candidates1D, autotune.DefaultOptions(), bench)
	require.Error(t, err)
}
